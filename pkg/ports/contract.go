package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	key := "contract-test:" + time.Now().Format("20060102150405.000000000")

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key, `{"stepId":"a"}`), "Set should not return error")

		got, err := store.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, `{"stepId":"a"}`, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key, "first"))
		require.NoError(t, store.Set(ctx, key, "second"))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", got, "last write wins")
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent:"+key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key, "value"))
		require.NoError(t, store.Remove(ctx, key), "Remove should not return error")

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Get after Remove should return ErrSnapshotNotFound")

		assert.NoError(t, store.Remove(ctx, key), "removing a missing key is not an error")
	})

	t.Run("Keys Are Independent", func(t *testing.T) {
		k1, k2 := key+":instance=1", key+":instance=2"
		require.NoError(t, store.Set(ctx, k1, "one"))
		require.NoError(t, store.Set(ctx, k2, "two"))
		defer func() {
			_ = store.Remove(ctx, k2)
		}()

		require.NoError(t, store.Remove(ctx, k1))
		got, err := store.Get(ctx, k2)
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("Concurrent Writes", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Set(ctx, key, "concurrent"))
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "concurrent", got)
	})

	if lister, ok := store.(Lister); ok {
		t.Run("Keys", func(t *testing.T) {
			k1, k2 := key+":list=1", key+":list=2"
			require.NoError(t, store.Set(ctx, k1, "1"))
			require.NoError(t, store.Set(ctx, k2, "2"))
			defer func() {
				_ = store.Remove(ctx, k1)
				_ = store.Remove(ctx, k2)
			}()

			keys, err := lister.Keys(ctx)
			require.NoError(t, err)
			assert.Contains(t, keys, k1)
			assert.Contains(t, keys, k2)
		})
	}

	_ = store.Remove(ctx, key)
}

// RunPersisterContract verifies the save/restore/remove behaviour of a FlowPersister.
func RunPersisterContract(t *testing.T, persister FlowPersister) {
	ctx := context.Background()
	flowID := "contract-flow-" + time.Now().Format("150405.000000000")

	newState := func(step string, ctxValues domain.Context) *domain.FlowState {
		started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		return &domain.FlowState{
			StepID:  step,
			Context: ctxValues,
			Status:  domain.StatusActive,
			Path:    []domain.PathEntry{{StepID: step, StartedAt: started}},
			History: []domain.HistoryEntry{{StepID: step, StartedAt: started}},
		}
	}

	t.Run("Round Trip", func(t *testing.T) {
		opts := PersistOptions{Version: "1", InstanceID: "rt"}
		state := newState("a", domain.Context{"name": "ada"})

		saved, err := persister.Save(ctx, flowID, state, opts)
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "1", saved.Version)
		assert.Equal(t, "rt", saved.InstanceID)

		restored, err := persister.Restore(ctx, flowID, opts)
		require.NoError(t, err)
		require.NotNil(t, restored)
		assert.Equal(t, state.StepID, restored.StepID)
		assert.Equal(t, state.Context, restored.Context)
		assert.Equal(t, state.Status, restored.Status)
		assert.Equal(t, len(state.Path), len(restored.Path))
		assert.True(t, state.Path[0].StartedAt.Equal(restored.Path[0].StartedAt))
	})

	t.Run("Restore Missing", func(t *testing.T) {
		restored, err := persister.Restore(ctx, flowID, PersistOptions{InstanceID: "never-saved"})
		assert.NoError(t, err)
		assert.Nil(t, restored)
	})

	t.Run("Instances Are Isolated", func(t *testing.T) {
		one := PersistOptions{InstanceID: "task-1"}
		two := PersistOptions{InstanceID: "task-2"}

		_, err := persister.Save(ctx, flowID, newState("a", domain.Context{"task": "1"}), one)
		require.NoError(t, err)
		_, err = persister.Save(ctx, flowID, newState("b", domain.Context{"task": "2"}), two)
		require.NoError(t, err)

		require.NoError(t, persister.Remove(ctx, flowID, one))

		gone, err := persister.Restore(ctx, flowID, one)
		require.NoError(t, err)
		assert.Nil(t, gone)

		kept, err := persister.Restore(ctx, flowID, two)
		require.NoError(t, err)
		require.NotNil(t, kept)
		assert.Equal(t, "b", kept.StepID)
		assert.Equal(t, "2", kept.Context["task"])

		_ = persister.Remove(ctx, flowID, two)
	})

	t.Run("Variants Are Isolated", func(t *testing.T) {
		a := PersistOptions{InstanceID: "v", VariantID: "a"}
		b := PersistOptions{InstanceID: "v", VariantID: "b"}

		_, err := persister.Save(ctx, flowID, newState("a", nil), a)
		require.NoError(t, err)

		missing, err := persister.Restore(ctx, flowID, b)
		require.NoError(t, err)
		assert.Nil(t, missing)

		_ = persister.Remove(ctx, flowID, a)
	})
}

// RunLoaderContract verifies a DefinitionLoader that serves flowID (and, when
// variantID is not empty, that variant of it).
func RunLoaderContract(t *testing.T, loader DefinitionLoader, flowID, variantID string) {
	ctx := context.Background()

	t.Run("Load", func(t *testing.T) {
		def, err := loader.Load(ctx, flowID, "")
		require.NoError(t, err)
		require.NotNil(t, def)
		assert.Equal(t, flowID, def.ID)
		assert.True(t, def.HasStep(def.Start), "start step must be declared")
	})

	if variantID != "" {
		t.Run("Load Variant", func(t *testing.T) {
			def, err := loader.Load(ctx, flowID, variantID)
			require.NoError(t, err)
			require.NotNil(t, def)
			assert.Equal(t, flowID, def.ID)
		})
	}

	t.Run("Load Missing", func(t *testing.T) {
		_, err := loader.Load(ctx, "missing-"+flowID, "")
		assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)

		_, err = loader.Load(ctx, flowID, "missing-variant")
		assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
	})
}
