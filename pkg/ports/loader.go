package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// DefinitionLoader fetches plain flow definitions.
// Implementations validate what they return; executable parts are attached by the caller.
type DefinitionLoader interface {
	// Load returns the definition of flowID; variantID selects an alternate definition
	// and may be empty. Returns domain.ErrDefinitionNotFound when absent.
	Load(ctx context.Context, flowID, variantID string) (*domain.FlowDefinition, error)
}
