package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	first := Record{
		RequestID: "req_1",
		Protocol:  "chat",
		Model:     "coder-1",
		Streamed:  false,
		Success:   true,
		Finish:    "stop",
		Duration:  1500 * time.Millisecond,
		CreatedAt: time.Now(),
	}
	second := Record{
		RequestID: "req_2",
		Protocol:  "responses",
		Model:     "coder-1",
		Streamed:  true,
		Success:   false,
		Finish:    "",
		Error:     "agent exited with code 1",
		Duration:  300 * time.Millisecond,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "req_2", records[0].RequestID)
	assert.Equal(t, "agent exited with code 1", records[0].Error)
	assert.True(t, records[0].Streamed)
	assert.False(t, records[0].Success)

	assert.Equal(t, "req_1", records[1].RequestID)
	assert.True(t, records[1].Success)
	assert.Equal(t, 1500*time.Millisecond, records[1].Duration)
}

func TestRecentLimit(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Record{
			RequestID: "req",
			Protocol:  "chat",
			Model:     "coder-1",
			Finish:    "stop",
			CreatedAt: time.Now(),
		}))
	}

	records, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRecentEmpty(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
