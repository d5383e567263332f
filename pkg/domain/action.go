package domain

// ActionType names a reducer operation.
type ActionType string

const (
	ActionNext       ActionType = "NEXT"
	ActionSkip       ActionType = "SKIP"
	ActionBack       ActionType = "BACK"
	ActionSetContext ActionType = "SET_CONTEXT"
	ActionRestore    ActionType = "RESTORE"
	ActionReset      ActionType = "RESET"
)

// Navigation is the argument shape of NEXT and SKIP.
// Both fields are optional: Target overrides every resolution rule and
// Update is merged into the context before the destination is resolved.
type Navigation struct {
	Target string
	Update ContextUpdate
}

// Action is a request dispatched to the reducer.
type Action struct {
	Type ActionType

	// Target and Update are read by NEXT and SKIP; Update also by SET_CONTEXT.
	Target string
	Update ContextUpdate

	// State is the replacement used by RESTORE.
	State *FlowState

	// InitialContext is the context RESET starts over with.
	InitialContext Context
}

// Navigate builds a NEXT or SKIP action.
func Navigate(t ActionType, nav Navigation) Action {
	return Action{Type: t, Target: nav.Target, Update: nav.Update}
}

// Back builds a BACK action.
func Back() Action {
	return Action{Type: ActionBack}
}

// SetContext builds a SET_CONTEXT action.
func SetContext(update ContextUpdate) Action {
	return Action{Type: ActionSetContext, Update: update}
}

// Restore builds a RESTORE action.
func Restore(state *FlowState) Action {
	return Action{Type: ActionRestore, State: state}
}

// Reset builds a RESET action.
func Reset(initial Context) Action {
	return Action{Type: ActionReset, InitialContext: initial}
}

// Movement returns the history tag recorded for a navigation action.
func (a Action) Movement() Movement {
	switch a.Type {
	case ActionSkip:
		return MoveSkip
	case ActionBack:
		return MoveBack
	default:
		return MoveNext
	}
}
