package runtime

import (
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
)

// navigate handles NEXT and SKIP. They share the transition logic and differ
// only in the movement recorded on the entry being left.
func navigate(state *domain.FlowState, action domain.Action, def *domain.FlowDefinition, opts Options) (*domain.FlowState, error) {
	// 1. Update phase
	next := cloneState(state)
	next.Context = next.Context.Apply(action.Update)

	// Completion blocks forward movement only; the update still lands.
	if state.Status == domain.StatusComplete {
		if opts.Strict {
			return state, &domain.NavigationError{StepID: state.StepID, Kind: domain.TransitionNone}
		}
		return next, nil
	}

	// 2. Resolve destination
	target, ok := resolveDestination(def, opts.Resolvers, next.StepID, action.Target, next.Context)
	if !ok {
		if opts.Strict {
			kind := domain.TransitionNone
			if step, found := def.Steps[state.StepID]; found {
				kind = step.Next.Kind()
			}
			return state, &domain.NavigationError{StepID: state.StepID, Kind: kind}
		}
		// Lenient: the step stays, the context update is kept.
		return next, nil
	}

	// 3. Close current entries and open the destination
	return transitionTo(next, def, opts, target, action.Movement()), nil
}

// resolveDestination evaluates the priority-based resolution rules:
// explicit target, then resolver, then the step's static transition.
func resolveDestination(def *domain.FlowDefinition, resolvers domain.ResolverMap, stepID, target string, ctx domain.Context) (string, bool) {
	// Priority 1: explicit target, used verbatim
	if target != "" {
		return target, true
	}

	// Priority 2: resolver attached at runtime
	if resolve := resolvers[stepID]; resolve != nil {
		return known(def, resolve(ctx.Clone()))
	}

	// Priority 3: static transition
	step, ok := def.Steps[stepID]
	if !ok {
		return "", false
	}
	switch step.Next.Kind() {
	case domain.TransitionStep:
		return step.Next.Targets()[0], true
	case domain.TransitionComputed:
		return known(def, step.Next.Func()(ctx.Clone()))
	default:
		// A choice needs a target or a resolver to disambiguate.
		return "", false
	}
}

// known accepts a computed destination only if it names a declared step.
func known(def *domain.FlowDefinition, stepID string) (string, bool) {
	if stepID == "" || !def.HasStep(stepID) {
		return "", false
	}
	return stepID, true
}

func transitionTo(state *domain.FlowState, def *domain.FlowDefinition, opts Options, target string, move domain.Movement) *domain.FlowState {
	now := opts.now()

	closeTop(state.Path, now, move)
	closeLastOpen(state.History, now, move)

	entry := domain.PathEntry{StepID: target, StartedAt: now}
	state.Path = append(state.Path, entry)
	state.History = append(state.History, entry)

	state.StepID = target
	state.Status = statusFor(def, opts.Resolvers, target)
	return state
}

// back pops the path. History keeps every visit: the step being left is closed
// with a back movement and the revisited step gets a fresh entry.
func back(state *domain.FlowState, opts Options) *domain.FlowState {
	if len(state.Path) <= 1 {
		return state
	}

	now := opts.now()
	next := cloneState(state)

	closeLastOpen(next.History, now, domain.MoveBack)

	next.Path = next.Path[:len(next.Path)-1]
	top := &next.Path[len(next.Path)-1]
	top.StartedAt = now
	top.CompletedAt = nil
	top.Action = ""

	next.History = append(next.History, domain.HistoryEntry{StepID: top.StepID, StartedAt: now})
	next.StepID = top.StepID
	next.Status = domain.StatusActive
	return next
}

func closeTop(entries []domain.PathEntry, now time.Time, move domain.Movement) {
	if len(entries) == 0 {
		return
	}
	entries[len(entries)-1] = entries[len(entries)-1].Close(now, move)
}

func closeLastOpen(entries []domain.HistoryEntry, now time.Time, move domain.Movement) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Open() {
			entries[i] = entries[i].Close(now, move)
			return
		}
	}
}
