package domain

import "time"

// PersistedFlowState is the snapshot written to a store:
// the flow state plus an envelope identifying the definition it belongs to.
type PersistedFlowState struct {
	FlowState `yaml:",inline"`

	Version    string     `json:"version,omitempty" yaml:"version,omitempty"`
	InstanceID string     `json:"instanceId,omitempty" yaml:"instanceId,omitempty"`
	VariantID  string     `json:"variantId,omitempty" yaml:"variantId,omitempty"`
	SavedAt    *time.Time `json:"savedAt,omitempty" yaml:"savedAt,omitempty"`
}

// State returns a copy of the wrapped flow state without the envelope.
func (p *PersistedFlowState) State() *FlowState {
	if p == nil {
		return nil
	}
	return p.FlowState.Clone()
}
