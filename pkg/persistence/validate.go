package persistence

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
)

// ValidationResult reports whether a snapshot can be resumed.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err returns the result as a *domain.SnapshotValidationError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &domain.SnapshotValidationError{Errors: r.Errors}
}

// ValidatePersistedState checks a restored snapshot against the plain definition:
// the current step must be declared and the snapshot must have the shape the
// reducer relies on. Resolvers and migrations play no part here.
func ValidatePersistedState(state *domain.PersistedFlowState, def *domain.FlowDefinition) ValidationResult {
	var errs []string

	if state == nil {
		return ValidationResult{Errors: []string{"snapshot is empty"}}
	}
	if def == nil {
		return ValidationResult{Errors: []string{"definition is missing"}}
	}

	switch {
	case state.StepID == "":
		errs = append(errs, "stepId is empty")
	case !def.HasStep(state.StepID):
		errs = append(errs, fmt.Sprintf("stepId %q is not a step of flow %q", state.StepID, def.ID))
	}

	if !state.Status.Valid() {
		errs = append(errs, fmt.Sprintf("status %q is not one of active, complete", state.Status))
	}

	if state.Context == nil {
		errs = append(errs, "context is missing")
	}

	if len(state.Path) == 0 {
		errs = append(errs, "path is empty")
	} else if top := state.Path[len(state.Path)-1]; top.StepID != state.StepID {
		errs = append(errs, fmt.Sprintf("path ends at %q but stepId is %q", top.StepID, state.StepID))
	}

	for i, entry := range state.History {
		if entry.StepID == "" {
			errs = append(errs, fmt.Sprintf("history[%d] has no stepId", i))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
