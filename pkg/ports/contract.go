package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		run := domain.NewRun(runID, domain.ModeGraph, nil)
		run.Current = "start"
		run.Context.Set("foo", "bar")
		run.Context.Set("count", 42)
		run.Transcript = []domain.TranscriptEntry{{Round: 1, Worker: "A", Task: "t", Result: "ok"}}

		err := store.Save(ctx, run)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, run.Current, loaded.Current)
		assert.Equal(t, "bar", loaded.Context.Value("foo"))
		// JSON-backed stores decode numbers as float64; only presence is part of the contract.
		assert.NotNil(t, loaded.Context.Value("count"))
		assert.Equal(t, []string{"foo", "count"}, loaded.Context.Keys())
		require.Len(t, loaded.Transcript, 1)
		assert.Equal(t, "A", loaded.Transcript[0].Worker)
	})

	t.Run("Loaded Run Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		loaded.Context.Set("foo", "mutated")

		again, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.Context.Value("foo"))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewRun(runID, domain.ModeGraph, nil))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, domain.NewRun(id1, domain.ModeGraph, nil))
		_ = store.Save(ctx, domain.NewRun(id2, domain.ModeDelegation, nil))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
