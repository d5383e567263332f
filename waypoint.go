package waypoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/definition"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/keyspace"
	"github.com/aretw0/waypoint/pkg/persistence"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Flow owns the state of one flow instance. It serializes dispatches, and
// persistence failures never escape it: they are logged and reported through
// Hooks.OnPersistenceError.
type Flow struct {
	mu sync.Mutex

	handle  *domain.Handle
	initial domain.Context
	state   *domain.FlowState

	persister  ports.FlowPersister
	instanceID string
	variantID  string
	autoSave   bool
	strict     bool
	logger     *slog.Logger
	clock      func() time.Time
	hooks      Hooks
}

// New creates a Flow positioned on the start step of handle's definition.
// initial is copied once; every RESET returns to that copy.
func New(handle *domain.Handle, initial domain.Context, opts ...Option) (*Flow, error) {
	if handle == nil {
		return nil, fmt.Errorf("flow handle cannot be nil")
	}
	if err := definition.Validate(handle.Config); err != nil {
		return nil, err
	}

	f := &Flow{
		handle:  handle,
		initial: initial.Clone(),
		logger:  logging.NewNop(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.state = runtime.NewInitialState(handle.Config, f.initial, f.reduceOptions())
	return f, nil
}

func (f *Flow) reduceOptions() runtime.Options {
	return runtime.Options{
		Resolvers: f.handle.Runtime.Resolvers,
		Clock:     f.clock,
		Strict:    f.strict,
	}
}

func (f *Flow) persistOptions() ports.PersistOptions {
	return ports.PersistOptions{
		Version:    f.handle.Config.Version,
		InstanceID: f.instanceID,
		VariantID:  f.variantID,
		Migrate:    f.handle.Runtime.Migrate,
	}
}

// ID returns the flow id.
func (f *Flow) ID() string { return f.handle.Config.ID }

// InstanceID returns the instance id, empty for a singleton flow.
func (f *Flow) InstanceID() string { return f.instanceID }

// Key returns the storage key of this instance in the default key space.
func (f *Flow) Key() string {
	return keyspace.Key(f.handle.Config.ID, f.instanceID, f.variantID)
}

// Handle returns the definition handle.
func (f *Flow) Handle() *domain.Handle { return f.handle }

// State returns a copy of the current state.
func (f *Flow) State() *domain.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

// StepID returns the current step.
func (f *Flow) StepID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.StepID
}

// Status returns the current status.
func (f *Flow) Status() domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Status
}

// Context returns a copy of the current context.
func (f *Flow) Context() domain.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Context.Clone()
}

// pending collects hook invocations to run once the lock is released.
type pending []func()

func (p pending) run() {
	for _, fn := range p {
		fn()
	}
}

// Dispatch applies action. It returns an error only for unknown actions and,
// in strict mode, unresolved navigation; the state is then unchanged.
// A RESET always returns to the context captured by New.
func (f *Flow) Dispatch(ctx context.Context, action domain.Action) error {
	if action.Type == domain.ActionReset {
		action.InitialContext = f.initial
	}

	f.mu.Lock()
	after, err := f.apply(ctx, action, f.autoSave)
	f.mu.Unlock()

	after.run()
	return err
}

// apply must be called with f.mu held. persist saves the new state when it changed.
func (f *Flow) apply(ctx context.Context, action domain.Action, persist bool) (pending, error) {
	before := f.state
	next, err := runtime.Reduce(before, action, f.handle.Config, f.reduceOptions())
	if err != nil {
		return nil, err
	}

	// The reduced state always replaces the current one; the diff only gates
	// hooks and autosave.
	f.state = next
	diff := domain.Diff(before, next)
	if diff == nil {
		return nil, nil
	}

	var after pending
	if hook := f.hooks.OnChange; hook != nil {
		after = append(after, func() { hook(diff) })
	}
	if hook := f.hooks.OnTransition; hook != nil && (before.StepID != next.StepID || before.Status != next.Status) {
		event := domain.TransitionEvent{
			Timestamp:  f.clock(),
			FlowID:     f.handle.Config.ID,
			InstanceID: f.instanceID,
			VariantID:  f.variantID,
			Action:     action.Type,
			From:       before.StepID,
			To:         next.StepID,
			Status:     next.Status,
		}
		after = append(after, func() { hook(event) })
	}

	f.logger.Debug("flow dispatch",
		"flow_id", f.handle.Config.ID,
		"instance_id", f.instanceID,
		"action", action.Type,
		"from", before.StepID,
		"to", next.StepID,
	)

	if persist && f.persister != nil {
		_, saved := f.save(ctx)
		after = append(after, saved...)
	}
	return after, nil
}

// Next moves forward, see domain.Navigation for target and update semantics.
func (f *Flow) Next(ctx context.Context, nav domain.Navigation) error {
	return f.Dispatch(ctx, domain.Navigate(domain.ActionNext, nav))
}

// Skip moves forward like Next but tags the left step as skipped.
func (f *Flow) Skip(ctx context.Context, nav domain.Navigation) error {
	return f.Dispatch(ctx, domain.Navigate(domain.ActionSkip, nav))
}

// Back returns to the previous step. It is a no-op on the start step.
func (f *Flow) Back(ctx context.Context) error {
	return f.Dispatch(ctx, domain.Back())
}

// SetContext shallow-merges the update into the context without moving.
func (f *Flow) SetContext(ctx context.Context, update domain.ContextUpdate) error {
	return f.Dispatch(ctx, domain.SetContext(update))
}

// Reset returns to the start step with the initial context and removes the
// stored snapshot of this instance.
func (f *Flow) Reset(ctx context.Context) {
	f.mu.Lock()
	after, _ := f.apply(ctx, domain.Reset(f.initial), false)
	if f.persister != nil {
		if err := f.persister.Remove(ctx, f.handle.Config.ID, f.persistOptions()); err != nil {
			after = append(after, f.report("remove", err)...)
		}
	}
	f.mu.Unlock()

	after.run()
}

// Save writes the current state. It reports whether the save succeeded.
func (f *Flow) Save(ctx context.Context) bool {
	if f.persister == nil {
		return false
	}

	f.mu.Lock()
	ok, after := f.save(ctx)
	f.mu.Unlock()

	after.run()
	return ok
}

// save must be called with f.mu held.
func (f *Flow) save(ctx context.Context) (bool, pending) {
	saved, err := f.persister.Save(ctx, f.handle.Config.ID, f.state, f.persistOptions())
	if err != nil {
		return false, f.report("save", err)
	}
	if hook := f.hooks.OnSave; hook != nil {
		return true, pending{func() { hook(saved) }}
	}
	return true, nil
}

// Restore resumes from the stored snapshot. It reports whether a snapshot was
// applied. Any failure, version mismatch or invalid snapshot falls back to the
// initial state and is reported through Hooks.OnPersistenceError.
func (f *Flow) Restore(ctx context.Context) bool {
	if f.persister == nil {
		return false
	}

	f.mu.Lock()
	ok, after := f.restore(ctx)
	f.mu.Unlock()

	after.run()
	return ok
}

// restore must be called with f.mu held.
func (f *Flow) restore(ctx context.Context) (bool, pending) {
	restored, err := f.persister.Restore(ctx, f.handle.Config.ID, f.persistOptions())
	if err != nil {
		return false, append(f.fallback(ctx), f.report("restore", err)...)
	}
	if restored == nil {
		return false, nil
	}

	if result := persistence.ValidatePersistedState(restored, f.handle.Config); !result.Valid {
		return false, append(f.fallback(ctx), f.report("restore", result.Err())...)
	}

	after, err := f.apply(ctx, domain.Restore(restored.State()), false)
	if err != nil {
		return false, append(f.fallback(ctx), f.report("restore", err)...)
	}
	if hook := f.hooks.OnRestore; hook != nil {
		after = append(after, func() { hook(restored) })
	}

	f.logger.Info("flow restored",
		"flow_id", f.handle.Config.ID,
		"instance_id", f.instanceID,
		"step_id", restored.StepID,
		"version", restored.Version,
	)
	return true, after
}

// fallback must be called with f.mu held. The stored snapshot is left in place.
func (f *Flow) fallback(ctx context.Context) pending {
	after, _ := f.apply(ctx, domain.Reset(f.initial), false)
	return after
}

func (f *Flow) report(op string, err error) pending {
	level := slog.LevelWarn
	if errors.Is(err, domain.ErrVersionMismatch) || errors.Is(err, domain.ErrInvalidSnapshot) {
		level = slog.LevelInfo
	}
	f.logger.Log(context.Background(), level, "flow persistence failed",
		"op", op,
		"flow_id", f.handle.Config.ID,
		"instance_id", f.instanceID,
		"variant_id", f.variantID,
		"err", err,
	)

	if hook := f.hooks.OnPersistenceError; hook != nil {
		wrapped := fmt.Errorf("%s %s: %w", op, f.Key(), err)
		return pending{func() { hook(wrapped) }}
	}
	return nil
}
