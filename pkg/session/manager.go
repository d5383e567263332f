package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/keyspace"
	"github.com/aretw0/waypoint/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes persistence operations per composite key.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	next  ports.FlowPersister
	space keyspace.Space

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active locks by composite key

	locker  ports.DistributedLocker // optional
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL (default DefaultLockTTL).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithKeyspace sets the namespace used to derive lock keys.
func WithKeyspace(space keyspace.Space) Option {
	return func(m *Manager) {
		m.space = space
	}
}

// NewManager wraps next so that operations on the same key never overlap.
func NewManager(next ports.FlowPersister, opts ...Option) *Manager {
	m := &Manager{
		next:    next,
		space:   keyspace.Default,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ ports.FlowPersister = (*Manager)(nil)

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

func (m *Manager) lockKey(flowID string, opts ports.PersistOptions) string {
	return m.space.Key(keyspace.Ref{FlowID: flowID, InstanceID: opts.InstanceID, VariantID: opts.VariantID})
}

// Save persists the state once every earlier operation on the same key is done.
func (m *Manager) Save(ctx context.Context, flowID string, state *domain.FlowState, opts ports.PersistOptions) (*domain.PersistedFlowState, error) {
	var saved *domain.PersistedFlowState
	err := m.WithLock(ctx, flowID, opts, func(ctx context.Context) error {
		var err error
		saved, err = m.next.Save(ctx, flowID, state, opts)
		return err
	})
	return saved, err
}

// Restore reads the snapshot under the key lock.
func (m *Manager) Restore(ctx context.Context, flowID string, opts ports.PersistOptions) (*domain.PersistedFlowState, error) {
	var restored *domain.PersistedFlowState
	err := m.WithLock(ctx, flowID, opts, func(ctx context.Context) error {
		var err error
		restored, err = m.next.Restore(ctx, flowID, opts)
		return err
	})
	return restored, err
}

// Remove purges the snapshot under the key lock.
func (m *Manager) Remove(ctx context.Context, flowID string, opts ports.PersistOptions) error {
	return m.WithLock(ctx, flowID, opts, func(ctx context.Context) error {
		return m.next.Remove(ctx, flowID, opts)
	})
}

// Persister returns the wrapped persister.
func (m *Manager) Persister() ports.FlowPersister {
	return m.next
}

// WithLock executes fn while holding the lock for the composite key.
// Use it for read-modify-write sequences that must not interleave.
func (m *Manager) WithLock(ctx context.Context, flowID string, opts ports.PersistOptions, fn func(context.Context) error) error {
	key := m.lockKey(flowID, opts)

	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
