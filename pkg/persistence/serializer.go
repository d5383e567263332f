package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"gopkg.in/yaml.v3"
)

// JSONSerializer encodes snapshots in the JSON wire envelope.
type JSONSerializer struct {
	// Indent pretty-prints the output when set.
	Indent bool
}

var _ ports.Serializer = JSONSerializer{}

func (s JSONSerializer) Marshal(state *domain.PersistedFlowState) (string, error) {
	var (
		data []byte
		err  error
	)
	if s.Indent {
		data, err = json.MarshalIndent(state, "", "  ")
	} else {
		data, err = json.Marshal(state)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return string(data), nil
}

func (s JSONSerializer) Unmarshal(data string) (*domain.PersistedFlowState, error) {
	var state domain.PersistedFlowState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &state, nil
}

// YAMLSerializer encodes snapshots as YAML documents, convenient for file stores
// that humans inspect.
type YAMLSerializer struct{}

var _ ports.Serializer = YAMLSerializer{}

func (YAMLSerializer) Marshal(state *domain.PersistedFlowState) (string, error) {
	data, err := yaml.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return string(data), nil
}

func (YAMLSerializer) Unmarshal(data string) (*domain.PersistedFlowState, error) {
	var state domain.PersistedFlowState
	if err := yaml.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &state, nil
}
