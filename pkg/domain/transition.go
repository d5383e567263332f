package domain

import (
	"encoding/json"
	"fmt"
)

// TransitionKind tells which form of outgoing edge a step declares.
type TransitionKind int

const (
	// TransitionNone marks a terminal step.
	TransitionNone TransitionKind = iota
	// TransitionStep is a single static destination.
	TransitionStep
	// TransitionChoice lists candidate destinations; a target or resolver must pick one.
	TransitionChoice
	// TransitionComputed derives the destination from the context at runtime.
	TransitionComputed
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionStep:
		return "step"
	case TransitionChoice:
		return "choice"
	case TransitionComputed:
		return "computed"
	default:
		return "none"
	}
}

// NextFunc computes a destination step id from the context.
type NextFunc func(Context) string

// Transition is the "next" field of a step: a tagged union of
// nothing, a single step id, a list of step ids, or a function.
//
// Only the literal forms survive JSON encoding. A computed transition is
// dropped on the wire and must be attached locally after loading.
type Transition struct {
	kind    TransitionKind
	targets []string
	fn      NextFunc
}

// To declares a single static destination.
func To(stepID string) Transition {
	return Transition{kind: TransitionStep, targets: []string{stepID}}
}

// OneOf declares a choice between several destinations.
func OneOf(stepIDs ...string) Transition {
	targets := make([]string, len(stepIDs))
	copy(targets, stepIDs)
	return Transition{kind: TransitionChoice, targets: targets}
}

// Computed declares a destination derived from the context.
func Computed(fn NextFunc) Transition {
	if fn == nil {
		return Transition{}
	}
	return Transition{kind: TransitionComputed, fn: fn}
}

// Kind reports the form of the transition.
func (t Transition) Kind() TransitionKind { return t.kind }

// Targets returns the statically declared destinations (empty for none/computed).
func (t Transition) Targets() []string {
	out := make([]string, len(t.targets))
	copy(out, t.targets)
	return out
}

// Func returns the function of a computed transition, or nil.
func (t Transition) Func() NextFunc { return t.fn }

// IsZero reports whether nothing serializable is declared.
// Computed transitions count as zero so that `omitzero` drops them from JSON.
func (t Transition) IsZero() bool {
	return t.kind == TransitionNone || t.kind == TransitionComputed
}

// IsTerminal reports whether the step declares no outgoing edge at all.
func (t Transition) IsTerminal() bool {
	return t.kind == TransitionNone
}

// MarshalJSON encodes a single step as a string and a choice as an array.
func (t Transition) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case TransitionStep:
		return json.Marshal(t.targets[0])
	case TransitionChoice:
		return json.Marshal(t.targets)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an array of strings or null.
func (t *Transition) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTransition(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTransition converts a loosely typed "next" value into a Transition.
// Accepted shapes: nil, string, []string, []any of strings, NextFunc and func(Context) string.
func ParseTransition(raw any) (Transition, error) {
	switch v := raw.(type) {
	case nil:
		return Transition{}, nil
	case Transition:
		return v, nil
	case string:
		if v == "" {
			return Transition{}, nil
		}
		return To(v), nil
	case []string:
		return OneOf(v...), nil
	case []any:
		ids := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return Transition{}, fmt.Errorf("next[%d]: expected string, got %T", i, item)
			}
			ids = append(ids, s)
		}
		return OneOf(ids...), nil
	case NextFunc:
		return Computed(v), nil
	case func(Context) string:
		return Computed(v), nil
	default:
		return Transition{}, fmt.Errorf("next: unsupported type %T", raw)
	}
}

// MarshalYAML mirrors MarshalJSON for YAML encoders.
func (t Transition) MarshalYAML() (any, error) {
	switch t.kind {
	case TransitionStep:
		return t.targets[0], nil
	case TransitionChoice:
		return t.Targets(), nil
	default:
		return nil, nil
	}
}
