// Package runtime implements the transition reducer of the flow engine.
//
// Reduce is a pure function: it never mutates the state it receives and
// performs no I/O. Each call is atomic; ordering dispatches on one state is
// the caller's responsibility.
package runtime

import (
	"fmt"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Options tunes the reducer.
type Options struct {
	// Resolvers are consulted for NEXT/SKIP before a step's static transition.
	Resolvers domain.ResolverMap

	// Clock stamps path and history entries. Defaults to time.Now.
	Clock func() time.Time

	// Strict turns an unresolved NEXT/SKIP into a *domain.NavigationError
	// instead of a silent no-op on the step.
	Strict bool
}

func (o Options) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

// NewInitialState creates the state of a fresh flow instance positioned on the start step.
func NewInitialState(def *domain.FlowDefinition, initial domain.Context, opts Options) *domain.FlowState {
	now := opts.now()
	entry := domain.PathEntry{StepID: def.Start, StartedAt: now}

	return &domain.FlowState{
		StepID:  def.Start,
		Context: initial.Clone(),
		Status:  statusFor(def, opts.Resolvers, def.Start),
		Path:    []domain.PathEntry{entry},
		History: []domain.HistoryEntry{entry},
	}
}

// Reduce applies action to state and returns the resulting state.
// The returned error is non-nil only for unknown actions and, in strict mode,
// for unresolved navigation; in both cases the input state is returned unchanged.
func Reduce(state *domain.FlowState, action domain.Action, def *domain.FlowDefinition, opts Options) (*domain.FlowState, error) {
	switch action.Type {
	case domain.ActionNext, domain.ActionSkip:
		return navigate(state, action, def, opts)
	case domain.ActionBack:
		return back(state, opts), nil
	case domain.ActionSetContext:
		return setContext(state, action.Update), nil
	case domain.ActionRestore:
		if action.State == nil {
			return state, nil
		}
		return action.State.Clone(), nil
	case domain.ActionReset:
		return NewInitialState(def, action.InitialContext, opts), nil
	default:
		return state, fmt.Errorf("%w: %q", domain.ErrUnknownAction, action.Type)
	}
}

func statusFor(def *domain.FlowDefinition, resolvers domain.ResolverMap, stepID string) domain.Status {
	if domain.HasNext(def, resolvers, stepID) {
		return domain.StatusActive
	}
	return domain.StatusComplete
}
