package domain

import "time"

// Status defines whether the flow can still move forward.
type Status string

const (
	StatusActive   Status = "active"   // Forward navigation possible
	StatusComplete Status = "complete" // Current step has no outgoing transition
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusComplete
}

// Movement tags how an entry was left.
type Movement string

const (
	MoveNext Movement = "next"
	MoveSkip Movement = "skip"
	MoveBack Movement = "back"
)

// PathEntry records a visit to a step.
// An entry with a nil CompletedAt is still open.
type PathEntry struct {
	StepID      string     `json:"stepId" yaml:"stepId"`
	StartedAt   time.Time  `json:"startedAt" yaml:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Action      Movement   `json:"action,omitempty" yaml:"action,omitempty"`
}

// HistoryEntry has the same shape as PathEntry; History is never truncated.
type HistoryEntry = PathEntry

// Open reports whether the entry has not been left yet.
func (e PathEntry) Open() bool { return e.CompletedAt == nil }

// Close returns a copy of e left at t through move.
func (e PathEntry) Close(t time.Time, move Movement) PathEntry {
	e.CompletedAt = &t
	e.Action = move
	return e
}

// FlowState represents the current snapshot of a flow instance.
type FlowState struct {
	// StepID is the step currently shown to the user.
	StepID string `json:"stepId" yaml:"stepId"`

	// Context holds the user data of the instance.
	Context Context `json:"context" yaml:"context"`

	// Status is complete once the current step cannot move forward.
	Status Status `json:"status" yaml:"status"`

	// Path is the stack of active visits used by BACK.
	Path []PathEntry `json:"path" yaml:"path"`

	// History is the append-only audit log of every movement.
	History []HistoryEntry `json:"history" yaml:"history"`
}

// Clone returns a copy that shares no mutable storage with s
// (context values themselves are copied shallowly).
func (s *FlowState) Clone() *FlowState {
	if s == nil {
		return nil
	}
	next := *s
	next.Context = s.Context.Clone()
	next.Path = cloneEntries(s.Path)
	next.History = cloneEntries(s.History)
	return &next
}

// Current returns the top of the path.
func (s *FlowState) Current() (PathEntry, bool) {
	if s == nil || len(s.Path) == 0 {
		return PathEntry{}, false
	}
	return s.Path[len(s.Path)-1], true
}

func cloneEntries(src []PathEntry) []PathEntry {
	if src == nil {
		return nil
	}
	out := make([]PathEntry, len(src))
	for i, e := range src {
		if e.CompletedAt != nil {
			t := *e.CompletedAt
			e.CompletedAt = &t
		}
		out[i] = e
	}
	return out
}
