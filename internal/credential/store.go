package credential

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"

	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/store"
)

// Store is the durable boundary for the admin bearer token and the set of
// booking ids already surfaced to the operator. It performs no network or
// timing work; all writers go through its methods.
type Store struct {
	vault Vault
	slots store.SlotStore

	mu     gosync.Mutex
	loaded bool
	token  string
}

// NewStore creates a credential store. The token lives in vault, the
// seen-id set in slots.
func NewStore(vault Vault, slots store.SlotStore) *Store {
	return &Store{vault: vault, slots: slots}
}

// Token returns the stored bearer token and whether one is present.
func (s *Store) Token() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		token, ok, err := s.vault.Get(store.SlotAdminToken)
		if err != nil {
			return "", false, fmt.Errorf("loading token: %w", err)
		}
		if !ok {
			token = ""
		}
		s.token = token
		s.loaded = true
	}

	return s.token, s.token != "", nil
}

// SetToken persists token; it is visible to subsequent reads once SetToken
// returns.
func (s *Store) SetToken(token string) error {
	if token == "" {
		return s.ClearToken()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vault.Set(store.SlotAdminToken, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	s.token = token
	s.loaded = true
	return nil
}

// ClearToken removes the stored token. It is safe to call when no token is
// present.
func (s *Store) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vault.Delete(store.SlotAdminToken); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	s.token = ""
	s.loaded = true
	return nil
}

// SeenIDs returns the persisted set of booking ids already surfaced.
func (s *Store) SeenIDs(ctx context.Context) (model.IDSet, error) {
	raw, ok, err := s.slots.GetSlot(ctx, store.SlotSeenIDs)
	if err != nil {
		return nil, fmt.Errorf("loading seen ids: %w", err)
	}
	if !ok {
		return model.IDSet{}, nil
	}

	ids, err := decodeIDs(raw)
	if err != nil {
		return nil, err
	}
	return model.NewIDSet(ids...), nil
}

// AddSeenIDs merges ids into the persisted seen set. Ids are never
// removed once added.
func (s *Store) AddSeenIDs(ctx context.Context, ids ...model.BookingID) error {
	if len(ids) == 0 {
		return nil
	}

	err := s.slots.UpdateSlot(ctx, store.SlotSeenIDs, func(current string, exists bool) (string, error) {
		var existing []model.BookingID
		if exists {
			var err error
			if existing, err = decodeIDs(current); err != nil {
				return "", err
			}
		}

		set := model.NewIDSet(existing...)
		for _, id := range ids {
			if id == "" || set.Has(id) {
				continue
			}
			set[id] = struct{}{}
			existing = append(existing, id)
		}

		data, err := json.Marshal(existing)
		if err != nil {
			return "", fmt.Errorf("encoding seen ids: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return fmt.Errorf("saving seen ids: %w", err)
	}
	return nil
}

func decodeIDs(raw string) ([]model.BookingID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []model.BookingID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decoding seen ids: %w", err)
	}
	return ids, nil
}
