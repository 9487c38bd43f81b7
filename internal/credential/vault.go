package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/rental-console/internal/store"
)

// Vault holds secret string values by key. Implementations persist
// synchronously: a value written by Set is durable when Set returns.
type Vault interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// vaultTimeout bounds a single SlotVault operation.
const vaultTimeout = 5 * time.Second

// SlotVault keeps credentials in the local slot database. It is used when
// no OS keystore is wanted (headless hosts, tests).
type SlotVault struct {
	slots store.SlotStore
}

var _ Vault = (*SlotVault)(nil)

// NewSlotVault creates a vault on top of the given slot store.
func NewSlotVault(slots store.SlotStore) *SlotVault {
	return &SlotVault{slots: slots}
}

func (v *SlotVault) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), vaultTimeout)
	defer cancel()

	value, ok, err := v.slots.GetSlot(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("getting credential %q: %w", key, err)
	}
	return value, ok, nil
}

func (v *SlotVault) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), vaultTimeout)
	defer cancel()

	if err := v.slots.PutSlot(ctx, key, value); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

func (v *SlotVault) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), vaultTimeout)
	defer cancel()

	if err := v.slots.DeleteSlot(ctx, key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
