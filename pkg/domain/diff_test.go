package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDiff(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	visit := func(ids ...string) []PathEntry {
		out := make([]PathEntry, len(ids))
		for i, id := range ids {
			out[i] = PathEntry{StepID: id, StartedAt: at}
		}
		return out
	}

	tests := []struct {
		name   string
		before *FlowState
		after  *FlowState
		want   *StateDiff
	}{
		{
			name:   "fresh state is described in full",
			before: nil,
			after: &FlowState{
				StepID: "a", Status: StatusActive, Context: Context{"x": 1},
				Path: visit("a"), History: visit("a"),
			},
			want: &StateDiff{
				StepID:    ptr("a"),
				Status:    ptr(StatusActive),
				Context:   map[string]any{"x": 1},
				History:   &HistoryDelta{Appended: visit("a")},
				PathDepth: ptr(1),
			},
		},
		{
			name:   "identical states",
			before: &FlowState{StepID: "a", Status: StatusActive, Context: Context{"x": 1}, Path: visit("a"), History: visit("a")},
			after:  &FlowState{StepID: "a", Status: StatusActive, Context: Context{"x": 1}, Path: visit("a"), History: visit("a")},
			want:   nil,
		},
		{
			name:   "forward into a terminal step",
			before: &FlowState{StepID: "b", Status: StatusActive, Path: visit("a", "b"), History: visit("a", "b")},
			after:  &FlowState{StepID: "d", Status: StatusComplete, Path: visit("a", "b", "d"), History: visit("a", "b", "d")},
			want: &StateDiff{
				StepID:    ptr("d"),
				Status:    ptr(StatusComplete),
				History:   &HistoryDelta{Appended: visit("d")},
				PathDepth: ptr(3),
			},
		},
		{
			name:   "back shrinks the path and appends history",
			before: &FlowState{StepID: "b", Status: StatusActive, Path: visit("a", "b"), History: visit("a", "b")},
			after:  &FlowState{StepID: "a", Status: StatusActive, Path: visit("a"), History: visit("a", "b", "a")},
			want: &StateDiff{
				StepID:    ptr("a"),
				History:   &HistoryDelta{Appended: visit("a")},
				PathDepth: ptr(1),
			},
		},
		{
			name:   "closing the left entry is not a rewrite",
			before: &FlowState{StepID: "a", Path: visit("a"), History: visit("a")},
			after: &FlowState{
				StepID: "b", Path: visit("a", "b"),
				History: append([]HistoryEntry{visit("a")[0].Close(at, MoveNext)}, visit("b")...),
			},
			want: &StateDiff{
				StepID:    ptr("b"),
				History:   &HistoryDelta{Appended: visit("b")},
				PathDepth: ptr(2),
			},
		},
		{
			name:   "reset truncates history",
			before: &FlowState{StepID: "a", Status: StatusActive, Path: visit("a"), History: visit("a", "b", "a")},
			after:  &FlowState{StepID: "a", Status: StatusActive, Path: visit("a"), History: visit("a")},
			want: &StateDiff{
				History: &HistoryDelta{Appended: visit("a"), Replaced: true},
			},
		},
		{
			name:   "restore rewrites history of equal length",
			before: &FlowState{StepID: "a", Path: visit("a"), History: visit("a")},
			after: &FlowState{StepID: "a", Path: visit("a"), History: []HistoryEntry{
				{StepID: "a", StartedAt: at.Add(time.Hour)},
			}},
			want: &StateDiff{
				History: &HistoryDelta{
					Appended: []HistoryEntry{{StepID: "a", StartedAt: at.Add(time.Hour)}},
					Replaced: true,
				},
			},
		},
		{
			name:   "context keys added, changed and removed",
			before: &FlowState{StepID: "a", Context: Context{"keep": 1, "plan": "free", "gone": true}},
			after:  &FlowState{StepID: "a", Context: Context{"keep": 1, "plan": "pro", "seats": 3}},
			want: &StateDiff{
				Context: map[string]any{"plan": "pro", "seats": 3, "gone": nil},
			},
		},
		{
			name:   "nested context compared by value",
			before: &FlowState{Context: Context{"addr": map[string]any{"city": "Lisbon"}}},
			after:  &FlowState{Context: Context{"addr": map[string]any{"city": "Lisbon"}}},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.before, tt.after)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiff_NilAfter(t *testing.T) {
	assert.Nil(t, Diff(&FlowState{StepID: "a"}, nil))
}

func TestDiff_JSON(t *testing.T) {
	d := Diff(
		&FlowState{StepID: "a", Context: Context{"a": 1, "b": 2}},
		&FlowState{StepID: "b", Context: Context{"a": 1}},
	)
	require.NotNil(t, d)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stepId":"b","context":{"b":null}}`, string(raw))

	d = Diff(&FlowState{StepID: "a", Context: Context{"a": 1}}, &FlowState{StepID: "b", Context: Context{"a": 1}})
	raw, err = json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"context"`)
}
