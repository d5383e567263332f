package domain

import "time"

// TransitionEvent describes one dispatch that moved the current step.
type TransitionEvent struct {
	Timestamp  time.Time  `json:"timestamp"`
	FlowID     string     `json:"flow_id"`
	InstanceID string     `json:"instance_id,omitempty"`
	VariantID  string     `json:"variant_id,omitempty"`
	Action     ActionType `json:"action"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Status     Status     `json:"status"`
}
