package waypoint

import (
	"log/slog"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Hooks observe a Flow. Every hook is optional and runs after the Flow's
// lock is released, so hooks may call back into the Flow.
type Hooks struct {
	// OnSave receives the envelope written by a successful save.
	OnSave func(saved *domain.PersistedFlowState)

	// OnRestore receives the snapshot a Restore resumed from.
	OnRestore func(restored *domain.PersistedFlowState)

	// OnPersistenceError receives every save, restore and remove failure,
	// including version mismatches and snapshots failing validation.
	OnPersistenceError func(err error)

	// OnChange receives the difference produced by each state-changing dispatch.
	OnChange func(diff *domain.StateDiff)

	// OnTransition fires when a dispatch moves the current step or its status.
	OnTransition func(event domain.TransitionEvent)
}

// Option defines a functional option for configuring a Flow.
type Option func(*Flow)

// WithPersister enables Save, Restore and the snapshot removal on Reset.
func WithPersister(p ports.FlowPersister) Option {
	return func(f *Flow) {
		f.persister = p
	}
}

// WithInstanceID isolates this run from other runs of the same flow.
func WithInstanceID(id string) Option {
	return func(f *Flow) {
		f.instanceID = id
	}
}

// WithVariantID selects the snapshot slot of an alternate definition.
func WithVariantID(id string) Option {
	return func(f *Flow) {
		f.variantID = id
	}
}

// WithAutoSave saves after every state-changing dispatch.
func WithAutoSave(enabled bool) Option {
	return func(f *Flow) {
		f.autoSave = enabled
	}
}

// WithStrict makes unresolved NEXT/SKIP return a *domain.NavigationError.
func WithStrict(strict bool) Option {
	return func(f *Flow) {
		f.strict = strict
	}
}

// WithLogger sets a custom structured logger for the Flow.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithClock sets the clock used for path entries and events.
func WithClock(clock func() time.Time) Option {
	return func(f *Flow) {
		f.clock = clock
	}
}

// WithHooks registers observation hooks.
func WithHooks(hooks Hooks) Option {
	return func(f *Flow) {
		f.hooks = hooks
	}
}
