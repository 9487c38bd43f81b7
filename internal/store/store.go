package store

import "context"

// Slot keys used by the console.
const (
	SlotAdminToken = "admin_token"
	SlotSeenIDs    = "seen_booking_ids"
)

// SlotStore persists named string values. Every mutation is durable once
// the call returns.
type SlotStore interface {
	// GetSlot returns the value stored under key and whether it exists.
	GetSlot(ctx context.Context, key string) (string, bool, error)

	// PutSlot creates or replaces the value stored under key.
	PutSlot(ctx context.Context, key, value string) error

	// DeleteSlot removes key. Deleting a missing key is not an error.
	DeleteSlot(ctx context.Context, key string) error

	// UpdateSlot atomically replaces the value under key with the result
	// of fn, which receives the current value and whether it exists.
	UpdateSlot(
		ctx context.Context,
		key string,
		fn func(current string, exists bool) (string, error),
	) error
}
