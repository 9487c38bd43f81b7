package testutil

import (
	"testing"

	"github.com/nhle/rental-console/internal/credential"
	"github.com/nhle/rental-console/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestCredentials creates a credential store whose token vault is the
// slot table of an in-memory SQLiteStore.
func NewTestCredentials(t *testing.T) (*credential.Store, *store.SQLiteStore) {
	t.Helper()

	s := NewTestStore(t)
	return credential.NewStore(credential.NewSlotVault(s), s), s
}
