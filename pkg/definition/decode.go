package definition

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// rawDefinition mirrors the wire format with a loosely typed "next".
type rawDefinition struct {
	ID      string             `mapstructure:"id"`
	Start   string             `mapstructure:"start"`
	Version string             `mapstructure:"version"`
	Steps   map[string]rawStep `mapstructure:"steps"`
}

type rawStep struct {
	Next any `mapstructure:"next"`
}

// Decode builds and validates a definition from loosely typed data, such as a
// document fetched from an API. Numeric versions are accepted and stringified.
// A "next" may be a string, a list of strings, or a Go func(domain.Context) string.
func Decode(raw map[string]any) (*domain.FlowDefinition, error) {
	var rd rawDefinition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rd,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode flow definition: %w", err)
	}

	def := domain.FlowDefinition{
		ID:      rd.ID,
		Start:   rd.Start,
		Version: rd.Version,
		Steps:   make(map[string]domain.StepDefinition, len(rd.Steps)),
	}
	for id, step := range rd.Steps {
		next, err := domain.ParseTransition(step.Next)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", id, err)
		}
		def.Steps[id] = domain.StepDefinition{Next: next}
	}

	return Define(def)
}

// ParseJSON decodes a JSON document in the wire format.
func ParseJSON(data []byte) (*domain.FlowDefinition, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow definition json: %w", err)
	}
	return Decode(raw)
}

// ParseYAML decodes a YAML document in the wire format.
func ParseYAML(data []byte) (*domain.FlowDefinition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow definition yaml: %w", err)
	}
	return Decode(raw)
}
