package waypoint_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/definition"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/keyspace"
	"github.com/aretw0/waypoint/pkg/persistence"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioHandle(version string) *domain.Handle {
	return definition.MustDefine(domain.FlowDefinition{
		ID:      "scenario",
		Start:   "a",
		Version: version,
		Steps: map[string]domain.StepDefinition{
			"a": {Next: domain.To("b")},
			"b": {Next: domain.OneOf("c", "d")},
			"c": {},
			"d": {},
		},
	}).Bare()
}

// recorder collects hook calls.
type recorder struct {
	mu          sync.Mutex
	errs        []error
	saves       int
	restores    int
	changes     int
	transitions []domain.TransitionEvent
}

func (r *recorder) hooks() waypoint.Hooks {
	return waypoint.Hooks{
		OnSave:    func(*domain.PersistedFlowState) { r.mu.Lock(); r.saves++; r.mu.Unlock() },
		OnRestore: func(*domain.PersistedFlowState) { r.mu.Lock(); r.restores++; r.mu.Unlock() },
		OnPersistenceError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnChange: func(*domain.StateDiff) { r.mu.Lock(); r.changes++; r.mu.Unlock() },
		OnTransition: func(e domain.TransitionEvent) {
			r.mu.Lock()
			r.transitions = append(r.transitions, e)
			r.mu.Unlock()
		},
	}
}

func TestFlow_Scenario(t *testing.T) {
	ctx := context.Background()
	flow, err := waypoint.New(scenarioHandle(""), nil)
	require.NoError(t, err)

	require.NoError(t, flow.Next(ctx, domain.Navigation{}))
	assert.Equal(t, "b", flow.StepID())
	assert.Equal(t, domain.StatusActive, flow.Status())

	require.NoError(t, flow.Next(ctx, domain.Navigation{Target: "d"}))
	assert.Equal(t, "d", flow.StepID())
	assert.Equal(t, domain.StatusComplete, flow.Status())

	require.NoError(t, flow.Back(ctx))
	assert.Equal(t, "b", flow.StepID())
	assert.Equal(t, domain.StatusActive, flow.Status())
}

func TestFlow_ResetFidelity(t *testing.T) {
	ctx := context.Background()
	initial := domain.Context{"name": "ada"}
	flow, err := waypoint.New(scenarioHandle(""), initial)
	require.NoError(t, err)

	// Mutating the caller's map after construction must not matter.
	initial["name"] = "grace"

	require.NoError(t, flow.SetContext(ctx, domain.Set(domain.Context{"name": "linus", "plan": "pro"})))
	require.NoError(t, flow.Next(ctx, domain.Navigation{}))

	// A RESET dispatched with another context still returns to the captured one.
	require.NoError(t, flow.Dispatch(ctx, domain.Reset(domain.Context{"name": "other"})))
	assert.Equal(t, domain.Context{"name": "ada"}, flow.Context())
	assert.Equal(t, "a", flow.StepID())

	require.NoError(t, flow.SetContext(ctx, domain.Set(domain.Context{"x": 1})))
	flow.Reset(ctx)
	assert.Equal(t, domain.Context{"name": "ada"}, flow.Context())
}

func TestFlow_StateIsACopy(t *testing.T) {
	flow, err := waypoint.New(scenarioHandle(""), domain.Context{"k": "v"})
	require.NoError(t, err)

	state := flow.State()
	state.Context["k"] = "changed"
	state.StepID = "zzz"

	assert.Equal(t, "v", flow.Context()["k"])
	assert.Equal(t, "a", flow.StepID())
}

// assertSameEntries compares visits field by field; timestamps lose their
// monotonic reading on the way through a serializer.
func assertSameEntries(t *testing.T, want, got []domain.PathEntry) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].StepID, got[i].StepID, "entry %d", i)
		assert.Equal(t, want[i].Action, got[i].Action, "entry %d", i)
		assert.True(t, want[i].StartedAt.Equal(got[i].StartedAt), "entry %d started", i)
		if want[i].CompletedAt == nil {
			assert.Nil(t, got[i].CompletedAt, "entry %d completed", i)
			continue
		}
		require.NotNil(t, got[i].CompletedAt, "entry %d completed", i)
		assert.True(t, want[i].CompletedAt.Equal(*got[i].CompletedAt), "entry %d completed", i)
	}
}

func TestFlow_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	persister := persistence.New(store)

	first, err := waypoint.New(scenarioHandle("1"), domain.Context{},
		waypoint.WithPersister(persister), waypoint.WithInstanceID("task-1"))
	require.NoError(t, err)

	require.NoError(t, first.SetContext(ctx, domain.Set(domain.Context{"name": "ada"})))
	require.NoError(t, first.Next(ctx, domain.Navigation{}))
	require.NoError(t, first.Skip(ctx, domain.Navigation{Target: "d"}))
	require.NoError(t, first.Back(ctx))
	require.True(t, first.Save(ctx))

	rec := &recorder{}
	second, err := waypoint.New(scenarioHandle("1"), domain.Context{},
		waypoint.WithPersister(persister), waypoint.WithInstanceID("task-1"), waypoint.WithHooks(rec.hooks()))
	require.NoError(t, err)

	require.True(t, second.Restore(ctx))
	assert.Equal(t, 1, rec.restores)
	assert.Empty(t, rec.errs)

	want, got := first.State(), second.State()
	assert.Equal(t, want.StepID, got.StepID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Context, got.Context)
	assertSameEntries(t, want.Path, got.Path)
	assertSameEntries(t, want.History, got.History)

	var actions []domain.Movement
	for _, e := range got.History {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []domain.Movement{domain.MoveNext, domain.MoveSkip, domain.MoveBack, ""}, actions)

	// Navigation continues from the restored position.
	require.NoError(t, second.Back(ctx))
	assert.Equal(t, "a", second.StepID())
}

func TestFlow_ResetAfterBack(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	flow, err := waypoint.New(scenarioHandle(""), domain.Context{}, waypoint.WithHooks(rec.hooks()))
	require.NoError(t, err)

	require.NoError(t, flow.Next(ctx, domain.Navigation{}))
	require.NoError(t, flow.Back(ctx))
	require.Len(t, flow.State().History, 3)
	changes := rec.changes

	// Step, status, context and path depth match the initial state here;
	// only the history tells them apart.
	flow.Reset(ctx)

	state := flow.State()
	assert.Equal(t, "a", state.StepID)
	assert.Len(t, state.Path, 1)
	require.Len(t, state.History, 1)
	assert.True(t, state.History[0].Open())
	assert.Equal(t, changes+1, rec.changes)
}

func TestFlow_RestoreReplacesLongerHistory(t *testing.T) {
	ctx := context.Background()
	persister := persistence.New(memory.NewStore())

	fresh, err := waypoint.New(scenarioHandle("1"), domain.Context{}, waypoint.WithPersister(persister))
	require.NoError(t, err)
	require.True(t, fresh.Save(ctx))
	saved := fresh.State()

	flow, err := waypoint.New(scenarioHandle("1"), domain.Context{}, waypoint.WithPersister(persister))
	require.NoError(t, err)
	require.NoError(t, flow.Next(ctx, domain.Navigation{}))
	require.NoError(t, flow.Back(ctx))
	require.Len(t, flow.State().History, 3)

	require.True(t, flow.Restore(ctx))
	got := flow.State()
	assert.Equal(t, "a", got.StepID)
	assertSameEntries(t, saved.Path, got.Path)
	assertSameEntries(t, saved.History, got.History)
}

func TestFlow_VersionFallback(t *testing.T) {
	ctx := context.Background()
	persister := persistence.New(memory.NewStore())

	old, err := waypoint.New(scenarioHandle("1"), domain.Context{}, waypoint.WithPersister(persister))
	require.NoError(t, err)
	require.NoError(t, old.Next(ctx, domain.Navigation{}))
	require.True(t, old.Save(ctx))

	rec := &recorder{}
	current, err := waypoint.New(scenarioHandle("2"), domain.Context{"fresh": true},
		waypoint.WithPersister(persister), waypoint.WithHooks(rec.hooks()))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		assert.False(t, current.Restore(ctx))
	})
	assert.Equal(t, "a", current.StepID(), "falls back to the initial state")
	assert.Equal(t, domain.Context{"fresh": true}, current.Context())
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], domain.ErrVersionMismatch)
}

func TestFlow_Migrate(t *testing.T) {
	ctx := context.Background()
	persister := persistence.New(memory.NewStore())

	old, err := waypoint.New(scenarioHandle("1"), domain.Context{}, waypoint.WithPersister(persister))
	require.NoError(t, err)
	require.NoError(t, old.Next(ctx, domain.Navigation{}))
	require.True(t, old.Save(ctx))

	def := scenarioHandle("2").Config
	handle := def.With(func(*domain.FlowDefinition) domain.RuntimeConfig {
		return domain.RuntimeConfig{Migrate: func(s *domain.PersistedFlowState, from string) (*domain.PersistedFlowState, error) {
			s.Context = s.Context.Merge(domain.Context{"migratedFrom": from})
			return s, nil
		}}
	})

	current, err := waypoint.New(handle, domain.Context{}, waypoint.WithPersister(persister))
	require.NoError(t, err)

	require.True(t, current.Restore(ctx))
	assert.Equal(t, "b", current.StepID())
	assert.Equal(t, "1", current.Context()["migratedFrom"])
}

func TestFlow_InvalidSnapshotFallsBack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	persister := persistence.New(store)

	bogus := &domain.FlowState{
		StepID:  "removed-step",
		Context: domain.Context{},
		Status:  domain.StatusActive,
		Path:    []domain.PathEntry{{StepID: "removed-step", StartedAt: time.Now()}},
	}
	_, err := persister.Save(ctx, "scenario", bogus, ports.PersistOptions{})
	require.NoError(t, err)

	rec := &recorder{}
	flow, err := waypoint.New(scenarioHandle(""), domain.Context{}, waypoint.WithPersister(persister), waypoint.WithHooks(rec.hooks()))
	require.NoError(t, err)

	assert.False(t, flow.Restore(ctx))
	assert.Equal(t, "a", flow.StepID())
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], domain.ErrInvalidSnapshot)

	_, err = store.Get(ctx, keyspace.Key("scenario", "", ""))
	assert.NoError(t, err, "the rejected snapshot is left in place")
}

func TestFlow_RestoreNothingSaved(t *testing.T) {
	rec := &recorder{}
	flow, err := waypoint.New(scenarioHandle(""), nil,
		waypoint.WithPersister(persistence.New(memory.NewStore())), waypoint.WithHooks(rec.hooks()))
	require.NoError(t, err)

	assert.False(t, flow.Restore(context.Background()))
	assert.Empty(t, rec.errs)
}

// failingPersister fails every operation.
type failingPersister struct{}

var errStorageDown = errors.New("storage down")

func (failingPersister) Save(context.Context, string, *domain.FlowState, ports.PersistOptions) (*domain.PersistedFlowState, error) {
	return nil, errStorageDown
}

func (failingPersister) Restore(context.Context, string, ports.PersistOptions) (*domain.PersistedFlowState, error) {
	return nil, errStorageDown
}

func (failingPersister) Remove(context.Context, string, ports.PersistOptions) error {
	return errStorageDown
}

func TestFlow_PersistenceErrorsAreReported(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	flow, err := waypoint.New(scenarioHandle(""), nil,
		waypoint.WithPersister(failingPersister{}),
		waypoint.WithAutoSave(true),
		waypoint.WithHooks(rec.hooks()),
	)
	require.NoError(t, err)

	assert.False(t, flow.Restore(ctx))
	require.NoError(t, flow.Next(ctx, domain.Navigation{}), "a failed autosave does not fail the dispatch")
	assert.Equal(t, "b", flow.StepID())
	assert.False(t, flow.Save(ctx))
	flow.Reset(ctx)

	require.Len(t, rec.errs, 4)
	for _, err := range rec.errs {
		assert.ErrorIs(t, err, errStorageDown)
	}
}

func TestFlow_InstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	persister := persistence.New(memory.NewStore())

	open := func(instance string) *waypoint.Flow {
		f, err := waypoint.New(scenarioHandle(""), domain.Context{},
			waypoint.WithPersister(persister), waypoint.WithInstanceID(instance), waypoint.WithAutoSave(true))
		require.NoError(t, err)
		return f
	}

	one, two := open("task-1"), open("task-2")
	require.NoError(t, one.Next(ctx, domain.Navigation{}))
	require.NoError(t, two.Next(ctx, domain.Navigation{}))
	require.NoError(t, two.Next(ctx, domain.Navigation{Target: "c"}))

	one.Reset(ctx) // removes the task-1 snapshot only

	again := open("task-2")
	require.True(t, again.Restore(ctx))
	assert.Equal(t, "c", again.StepID())

	gone := open("task-1")
	assert.False(t, gone.Restore(ctx))
}

func TestFlow_AutoSaveAndHooks(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	flow, err := waypoint.New(scenarioHandle(""), nil,
		waypoint.WithPersister(persistence.New(memory.NewStore())),
		waypoint.WithAutoSave(true),
		waypoint.WithHooks(rec.hooks()),
	)
	require.NoError(t, err)

	require.NoError(t, flow.Next(ctx, domain.Navigation{}))
	require.NoError(t, flow.Next(ctx, domain.Navigation{})) // unresolved choice: no change
	require.NoError(t, flow.Back(ctx))
	require.NoError(t, flow.Back(ctx)) // beyond start: no change

	assert.Equal(t, 2, rec.saves)
	assert.Equal(t, 2, rec.changes)
	require.Len(t, rec.transitions, 2)
	assert.Equal(t, "a", rec.transitions[0].From)
	assert.Equal(t, "b", rec.transitions[0].To)
	assert.Equal(t, domain.ActionBack, rec.transitions[1].Action)
}

func TestFlow_Strict(t *testing.T) {
	ctx := context.Background()
	flow, err := waypoint.New(scenarioHandle(""), nil, waypoint.WithStrict(true))
	require.NoError(t, err)

	require.NoError(t, flow.Next(ctx, domain.Navigation{}))
	err = flow.Next(ctx, domain.Navigation{})
	assert.ErrorIs(t, err, domain.ErrNavigationAmbiguous)
	assert.Equal(t, "b", flow.StepID())
}

func TestFlow_HooksMayCallBack(t *testing.T) {
	ctx := context.Background()
	var seen string
	var flow *waypoint.Flow
	flow, err := waypoint.New(scenarioHandle(""), nil, waypoint.WithHooks(waypoint.Hooks{
		OnTransition: func(domain.TransitionEvent) { seen = flow.StepID() },
	}))
	require.NoError(t, err)

	require.NoError(t, flow.Next(ctx, domain.Navigation{}))
	assert.Equal(t, "b", seen)
}

func TestFlow_ConcurrentDispatch(t *testing.T) {
	steps := map[string]domain.StepDefinition{}
	ids := []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9"}
	for i, id := range ids {
		if i+1 < len(ids) {
			steps[id] = domain.StepDefinition{Next: domain.To(ids[i+1])}
		} else {
			steps[id] = domain.StepDefinition{}
		}
	}
	handle := definition.MustDefine(domain.FlowDefinition{ID: "chain", Start: "s0", Steps: steps}).Bare()

	flow, err := waypoint.New(handle, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < len(ids)-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, flow.Next(context.Background(), domain.Navigation{}))
		}()
	}
	wg.Wait()

	assert.Equal(t, "s9", flow.StepID())
	assert.Equal(t, domain.StatusComplete, flow.Status())
	assert.Len(t, flow.State().Path, len(ids))
}

func TestNew_RejectsInvalid(t *testing.T) {
	_, err := waypoint.New(nil, nil)
	assert.Error(t, err)

	_, err = waypoint.New((&domain.FlowDefinition{ID: "x", Start: "nope"}).Bare(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
}

func TestLoad(t *testing.T) {
	loader, err := memory.NewLoader(scenarioHandle("").Config)
	require.NoError(t, err)

	handle, err := waypoint.Load(context.Background(), loader, "scenario", "", func(def *domain.FlowDefinition) domain.RuntimeConfig {
		return domain.RuntimeConfig{Resolvers: domain.ResolverMap{"b": func(domain.Context) string { return "c" }}}
	})
	require.NoError(t, err)
	assert.NotNil(t, handle.Resolver("b"))

	_, err = waypoint.Load(context.Background(), loader, "missing", "", nil)
	assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
}
