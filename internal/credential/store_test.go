package credential_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/rental-console/internal/credential"
	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/store"
	"github.com/nhle/rental-console/tests/testutil"
)

func TestStore_Token(t *testing.T) {
	creds, _ := testutil.NewTestCredentials(t)

	t.Run("absent initially", func(t *testing.T) {
		tok, ok, err := creds.Token()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, tok)
	})

	t.Run("set then read", func(t *testing.T) {
		require.NoError(t, creds.SetToken("abc"))
		tok, ok, err := creds.Token()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", tok)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		require.NoError(t, creds.ClearToken())
		require.NoError(t, creds.ClearToken())
		_, ok, err := creds.Token()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty token clears", func(t *testing.T) {
		require.NoError(t, creds.SetToken("abc"))
		require.NoError(t, creds.SetToken(""))
		_, ok, err := creds.Token()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_SeenIDs(t *testing.T) {
	ctx := context.Background()
	creds, _ := testutil.NewTestCredentials(t)

	seen, err := creds.SeenIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen)

	require.NoError(t, creds.AddSeenIDs(ctx, "101", "102"))
	require.NoError(t, creds.AddSeenIDs(ctx, "102", "103", ""))
	require.NoError(t, creds.AddSeenIDs(ctx))

	seen, err = creds.SeenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.BookingID{"101", "102", "103"}, seen.Sorted())
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "console.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	creds := credential.NewStore(credential.NewSlotVault(s), s)
	require.NoError(t, creds.SetToken("persisted"))
	require.NoError(t, creds.AddSeenIDs(ctx, "7"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	creds = credential.NewStore(credential.NewSlotVault(s), s)

	tok, ok, err := creds.Token()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", tok)

	seen, err := creds.SeenIDs(ctx)
	require.NoError(t, err)
	assert.True(t, seen.Has("7"))
}

func TestKeyringVault(t *testing.T) {
	v := credential.NewKeyringVault(keyring.NewArrayKeyring(nil))

	_, ok, err := v.Get("admin_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.Set("admin_token", "secret"))
	got, ok, err := v.Get("admin_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret", got)

	require.NoError(t, v.Delete("admin_token"))
	require.NoError(t, v.Delete("admin_token"))
	_, ok, err = v.Get("admin_token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_TokenInKeyringSeenInSlots(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	creds := credential.NewStore(credential.NewKeyringVault(keyring.NewArrayKeyring(nil)), s)

	require.NoError(t, creds.SetToken("tok"))
	require.NoError(t, creds.AddSeenIDs(ctx, "1"))

	_, ok, err := s.GetSlot(ctx, store.SlotAdminToken)
	require.NoError(t, err)
	assert.False(t, ok, "token must not be written to the slot table")

	seen, err := creds.SeenIDs(ctx)
	require.NoError(t, err)
	assert.True(t, seen.Has("1"))
}
