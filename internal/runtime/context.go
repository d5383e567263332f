package runtime

import (
	"github.com/aretw0/waypoint/pkg/domain"
)

// setContext merges update without touching step, path, history or status.
func setContext(state *domain.FlowState, update domain.ContextUpdate) *domain.FlowState {
	if update == nil {
		return state
	}
	next := cloneState(state)
	next.Context = next.Context.Apply(update)
	return next
}

// cloneState creates a copy of the state safe for mutation by the reducer.
func cloneState(src *domain.FlowState) *domain.FlowState {
	// Clone never yields a nil context, so merges are always safe.
	return src.Clone()
}
