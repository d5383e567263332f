package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDefinition is matched by every DefinitionError.
var ErrInvalidDefinition = errors.New("invalid flow definition")

// ErrNavigationAmbiguous is returned in strict mode when NEXT/SKIP cannot resolve a destination.
var ErrNavigationAmbiguous = errors.New("navigation destination could not be resolved")

// ErrUnknownAction is returned when the reducer receives an action type it does not handle.
var ErrUnknownAction = errors.New("unknown action")

// ErrSnapshotNotFound is returned by stores when a key holds no snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrVersionMismatch is matched by VersionMismatchError.
var ErrVersionMismatch = errors.New("snapshot version mismatch")

// ErrInvalidSnapshot is matched by SnapshotValidationError.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Issue is a single problem found in a definition.
type Issue struct {
	StepID string // Step holding the bad reference; empty for flow-level issues
	Target string // Offending step id, if any
	Reason string
}

func (i Issue) String() string {
	switch {
	case i.StepID != "" && i.Target != "":
		return fmt.Sprintf("step %q -> %q: %s", i.StepID, i.Target, i.Reason)
	case i.StepID != "":
		return fmt.Sprintf("step %q: %s", i.StepID, i.Reason)
	case i.Target != "":
		return fmt.Sprintf("%q: %s", i.Target, i.Reason)
	default:
		return i.Reason
	}
}

// DefinitionError reports every dangling reference found when defining a flow.
// It is fatal: the author must fix the definition.
type DefinitionError struct {
	FlowID string
	Issues []Issue
}

func (e *DefinitionError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("flow %q: %s", e.FlowID, e.Issues[0])
	}
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = fmt.Sprintf("  %d. %s", i+1, issue)
	}
	return fmt.Sprintf("flow %q: %d definition errors:\n%s", e.FlowID, len(e.Issues), strings.Join(lines, "\n"))
}

func (e *DefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

// NavigationError describes a NEXT/SKIP that found no destination.
type NavigationError struct {
	StepID string
	Kind   TransitionKind
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("step %q (%s transition): %s", e.StepID, e.Kind, ErrNavigationAmbiguous)
}

func (e *NavigationError) Unwrap() error { return ErrNavigationAmbiguous }

// VersionMismatchError is returned when a snapshot was saved under another
// definition version and no migration was supplied.
type VersionMismatchError struct {
	Key     string
	Stored  string
	Current string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("snapshot %q saved with version %q, current version is %q", e.Key, e.Stored, e.Current)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// SnapshotValidationError lists why a restored snapshot cannot be used.
type SnapshotValidationError struct {
	Errors []string
}

func (e *SnapshotValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidSnapshot, strings.Join(e.Errors, "; "))
}

func (e *SnapshotValidationError) Unwrap() error { return ErrInvalidSnapshot }

// ErrDefinitionNotFound is returned by loaders when no definition matches.
var ErrDefinitionNotFound = errors.New("flow definition not found")
