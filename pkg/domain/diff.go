package domain

import "reflect"

// StateDiff is the delta between two consecutive states, as handed to
// OnStateChange hooks. Nil fields did not change.
type StateDiff struct {
	StepID *string `json:"stepId,omitempty"`
	Status *Status `json:"status,omitempty"`

	// Context holds changed and added keys; removed keys map to nil.
	Context map[string]any `json:"context,omitempty"`

	// History holds the entries appended since the previous state, or the
	// whole history when it was replaced.
	History *HistoryDelta `json:"history,omitempty"`

	// PathDepth is the new path length; it shrinks on BACK and RESET.
	PathDepth *int `json:"pathDepth,omitempty"`
}

// HistoryDelta lists appended entries. When the history was truncated or
// rewritten (RESET, RESTORE) Replaced is set and Appended is the whole history.
type HistoryDelta struct {
	Appended []HistoryEntry `json:"appended"`
	Replaced bool           `json:"replaced,omitempty"`
}

// Diff compares two states. A nil before describes the whole of after.
// Diff returns nil when after is nil or nothing changed.
func Diff(before, after *FlowState) *StateDiff {
	if after == nil {
		return nil
	}
	if before == nil {
		before = &FlowState{}
	}

	d := &StateDiff{
		Context: contextDelta(before.Context, after.Context),
	}
	if before.StepID != after.StepID {
		d.StepID = &after.StepID
	}
	if before.Status != after.Status {
		d.Status = &after.Status
	}
	if len(before.Path) != len(after.Path) {
		depth := len(after.Path)
		d.PathDepth = &depth
	}
	d.History = historyDelta(before.History, after.History)

	if d.IsEmpty() {
		return nil
	}
	return d
}

// historyDelta expects navigation to append and to close the entry it leaves.
// A visit is identified by step and start time, so closing it is not a change;
// a truncated or rewritten prefix is reported as a replacement.
func historyDelta(before, after []HistoryEntry) *HistoryDelta {
	n := len(before)
	if len(after) < n || !sameVisits(before, after[:n]) {
		return &HistoryDelta{Appended: cloneEntries(after), Replaced: true}
	}
	if len(after) == n {
		return nil
	}
	return &HistoryDelta{Appended: cloneEntries(after[n:])}
}

func sameVisits(a, b []HistoryEntry) bool {
	for i := range a {
		if a[i].StepID != b[i].StepID || !a[i].StartedAt.Equal(b[i].StartedAt) {
			return false
		}
	}
	return true
}

func contextDelta(before, after Context) map[string]any {
	delta := make(map[string]any)
	for k, v := range after {
		if prev, ok := before[k]; !ok || !reflect.DeepEqual(prev, v) {
			delta[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			delta[k] = nil
		}
	}
	if len(delta) == 0 {
		// omitempty drops a nil map
		return nil
	}
	return delta
}

// IsEmpty reports whether the diff carries no change.
func (d *StateDiff) IsEmpty() bool {
	return d.StepID == nil && d.Status == nil && d.PathDepth == nil &&
		len(d.Context) == 0 && d.History == nil
}
