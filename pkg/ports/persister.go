package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// PersistOptions selects the snapshot slot and the versioning policy.
type PersistOptions struct {
	// Version of the current definition, stamped on save and compared on restore.
	Version string

	// InstanceID isolates concurrent runs of the same flow template.
	InstanceID string

	// VariantID separates alternate definitions sharing a flow id.
	VariantID string

	// Migrate upgrades snapshots saved under another version.
	Migrate domain.MigrateFunc
}

// FlowPersister is the storage abstraction for flow instances.
type FlowPersister interface {
	// Save writes state and returns the envelope that was stored.
	Save(ctx context.Context, flowID string, state *domain.FlowState, opts PersistOptions) (*domain.PersistedFlowState, error)

	// Restore returns the stored snapshot, or nil without error when there is none.
	Restore(ctx context.Context, flowID string, opts PersistOptions) (*domain.PersistedFlowState, error)

	// Remove purges exactly one (flow, instance, variant) snapshot.
	Remove(ctx context.Context, flowID string, opts PersistOptions) error
}
