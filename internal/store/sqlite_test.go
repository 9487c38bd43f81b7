package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/rental-console/internal/store"
	"github.com/nhle/rental-console/tests/testutil"
)

func TestSQLiteStore_Migrations(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSQLiteStore_Slots(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	t.Run("missing slot", func(t *testing.T) {
		_, ok, err := s.GetSlot(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, s.PutSlot(ctx, "k", "v1"))
		got, ok, err := s.GetSlot(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", got)
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, s.PutSlot(ctx, "k", "v2"))
		got, _, err := s.GetSlot(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", got)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.DeleteSlot(ctx, "k"))
		require.NoError(t, s.DeleteSlot(ctx, "k"))
		_, ok, err := s.GetSlot(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSQLiteStore_UpdateSlot(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	err := s.UpdateSlot(ctx, "counter", func(current string, exists bool) (string, error) {
		assert.False(t, exists)
		assert.Empty(t, current)
		return "1", nil
	})
	require.NoError(t, err)

	err = s.UpdateSlot(ctx, "counter", func(current string, exists bool) (string, error) {
		assert.True(t, exists)
		return current + "1", nil
	})
	require.NoError(t, err)

	got, _, err := s.GetSlot(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "11", got)

	t.Run("callback error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.UpdateSlot(ctx, "counter", func(string, bool) (string, error) {
			return "", boom
		})
		require.ErrorIs(t, err, boom)

		got, _, err := s.GetSlot(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, "11", got)
	})
}

func TestSQLiteStore_DurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "console.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutSlot(ctx, store.SlotAdminToken, "tok"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	got, ok, err := s.GetSlot(ctx, store.SlotAdminToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", got)
}
