package waypoint

import (
	"context"
	"fmt"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// ReduceOptions tunes Reduce and NewInitialState.
type ReduceOptions = runtime.Options

// Reduce is the pure transition function behind Flow. Hosts with their own
// event loop can drive it directly and skip the Flow controller.
func Reduce(state *domain.FlowState, action domain.Action, def *domain.FlowDefinition, opts ReduceOptions) (*domain.FlowState, error) {
	return runtime.Reduce(state, action, def, opts)
}

// NewInitialState returns the state of a fresh instance on the start step.
func NewInitialState(def *domain.FlowDefinition, initial domain.Context, opts ReduceOptions) *domain.FlowState {
	return runtime.NewInitialState(def, initial, opts)
}

// Load fetches a definition through loader and attaches runtime configuration
// built by build, which may be nil.
func Load(ctx context.Context, loader ports.DefinitionLoader, flowID, variantID string, build func(*domain.FlowDefinition) domain.RuntimeConfig) (*domain.Handle, error) {
	def, err := loader.Load(ctx, flowID, variantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %q: %w", flowID, err)
	}
	return def.With(build), nil
}
