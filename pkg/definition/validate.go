package definition

import (
	"github.com/aretw0/waypoint/pkg/domain"
)

// Validate checks the static references of def and returns a
// *domain.DefinitionError listing every problem, or nil.
// A definition is valid iff its start and every literal next target are
// declared steps. The flow id is not required here; it only names the
// storage key. An empty choice is legal and needs a target or resolver.
func Validate(def *domain.FlowDefinition) error {
	if def == nil {
		return &domain.DefinitionError{Issues: []domain.Issue{{Reason: "definition is nil"}}}
	}

	var issues []domain.Issue

	switch {
	case def.HasStep(def.Start):
	case def.Start == "":
		issues = append(issues, domain.Issue{Reason: "start step is empty"})
	default:
		issues = append(issues, domain.Issue{Target: def.Start, Reason: "start step is not declared"})
	}

	// Sorted iteration keeps the report deterministic.
	for _, id := range def.StepIDs() {
		next := def.Steps[id].Next
		switch next.Kind() {
		case domain.TransitionStep, domain.TransitionChoice:
			for _, target := range next.Targets() {
				if !def.HasStep(target) {
					issues = append(issues, domain.Issue{StepID: id, Target: target, Reason: "next references an undeclared step"})
				}
			}
		}
	}

	if len(issues) > 0 {
		return &domain.DefinitionError{FlowID: def.ID, Issues: issues}
	}
	return nil
}

// Define validates def and returns it ready for use.
func Define(def domain.FlowDefinition) (*domain.FlowDefinition, error) {
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// MustDefine is like Define but panics on an invalid definition.
// It is intended for package-level flow declarations.
func MustDefine(def domain.FlowDefinition) *domain.FlowDefinition {
	d, err := Define(def)
	if err != nil {
		panic(err)
	}
	return d
}
