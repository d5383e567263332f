package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/keyspace"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Persister implements ports.FlowPersister on top of a key-value Store.
type Persister struct {
	store      ports.Store
	serializer ports.Serializer
	space      keyspace.Space
	logger     *slog.Logger
	clock      func() time.Time
}

// Option configures the Persister.
type Option func(*Persister)

// WithSerializer replaces the default JSON serializer.
func WithSerializer(s ports.Serializer) Option {
	return func(p *Persister) {
		p.serializer = s
	}
}

// WithKeyspace sets the key namespace (default keyspace.Default).
func WithKeyspace(space keyspace.Space) Option {
	return func(p *Persister) {
		p.space = space
	}
}

// WithLogger configures a logger for migrations and rejected snapshots.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persister) {
		p.logger = logger
	}
}

// WithClock sets the clock used to stamp SavedAt.
func WithClock(clock func() time.Time) Option {
	return func(p *Persister) {
		p.clock = clock
	}
}

// New creates a Persister writing to store.
func New(store ports.Store, opts ...Option) *Persister {
	p := &Persister{
		store:      store,
		serializer: JSONSerializer{},
		space:      keyspace.Default,
		logger:     logging.NewNop(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ ports.FlowPersister = (*Persister)(nil)

// Key returns the storage key used for flowID under opts.
func (p *Persister) Key(flowID string, opts ports.PersistOptions) string {
	return p.space.Key(keyspace.Ref{
		FlowID:     flowID,
		InstanceID: opts.InstanceID,
		VariantID:  opts.VariantID,
	})
}

// Save writes the state wrapped in its envelope and returns the envelope.
func (p *Persister) Save(ctx context.Context, flowID string, state *domain.FlowState, opts ports.PersistOptions) (*domain.PersistedFlowState, error) {
	if flowID == "" {
		return nil, fmt.Errorf("flowID cannot be empty")
	}
	if state == nil {
		return nil, fmt.Errorf("cannot save nil state for flow %q", flowID)
	}

	savedAt := p.clock().UTC()
	envelope := &domain.PersistedFlowState{
		FlowState:  *state.Clone(),
		Version:    opts.Version,
		InstanceID: opts.InstanceID,
		VariantID:  opts.VariantID,
		SavedAt:    &savedAt,
	}

	data, err := p.serializer.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	key := p.Key(flowID, opts)
	if err := p.store.Set(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to save snapshot %q: %w", key, err)
	}
	return envelope, nil
}

// Restore loads the snapshot for flowID. It returns nil without error when
// nothing was saved. A snapshot from another version is migrated with
// opts.Migrate, or rejected with a *domain.VersionMismatchError.
func (p *Persister) Restore(ctx context.Context, flowID string, opts ports.PersistOptions) (*domain.PersistedFlowState, error) {
	if flowID == "" {
		return nil, fmt.Errorf("flowID cannot be empty")
	}

	key := p.Key(flowID, opts)
	data, err := p.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot %q: %w", key, err)
	}

	stored, err := p.serializer.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %q: %w", key, err)
	}

	if stored.Version == opts.Version {
		return stored, nil
	}

	if opts.Migrate == nil {
		p.logger.Warn("discarding snapshot saved with another version",
			"key", key,
			"stored_version", stored.Version,
			"current_version", opts.Version,
		)
		return nil, &domain.VersionMismatchError{Key: key, Stored: stored.Version, Current: opts.Version}
	}

	from := stored.Version
	migrated, err := opts.Migrate(stored, from)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot %q from version %q: %w", key, from, err)
	}
	if migrated == nil {
		return nil, fmt.Errorf("failed to migrate snapshot %q from version %q: migration returned no state", key, from)
	}

	migrated.Version = opts.Version
	migrated.InstanceID = opts.InstanceID
	migrated.VariantID = opts.VariantID

	p.logger.Info("snapshot migrated",
		"key", key,
		"from_version", from,
		"to_version", opts.Version,
	)
	return migrated, nil
}

// Remove purges the snapshot of exactly one (flow, instance, variant) key.
func (p *Persister) Remove(ctx context.Context, flowID string, opts ports.PersistOptions) error {
	if flowID == "" {
		return fmt.Errorf("flowID cannot be empty")
	}
	key := p.Key(flowID, opts)
	if err := p.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("failed to remove snapshot %q: %w", key, err)
	}
	return nil
}

// List returns the saved instances of flowID when the store can enumerate keys.
func (p *Persister) List(ctx context.Context, flowID string) ([]keyspace.Ref, error) {
	lister, ok := p.store.(ports.Lister)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list keys", p.store)
	}
	keys, err := lister.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return p.space.Filter(keys, flowID), nil
}
