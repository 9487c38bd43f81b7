package notify

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/rental-console/internal/model"
)

// SeenStore is the persisted seen-id set of the credential store.
type SeenStore interface {
	SeenIDs(ctx context.Context) (model.IDSet, error)
	AddSeenIDs(ctx context.Context, ids ...model.BookingID) error
}

// Deduplicator turns polled bookings into a bounded live list of
// notifications, never surfacing a booking id the operator has already
// seen. All methods are safe for concurrent use.
type Deduplicator struct {
	seen    SeenStore
	maxLive int
	now     func() time.Time
	log     zerolog.Logger

	mu   gosync.Mutex
	live []model.NotificationRecord

	// overflow holds ids pushed out of the live list by truncation while
	// still unseen. They are not announced again while the backend keeps
	// returning them. Memory only.
	overflow model.IDSet
}

// New creates a deduplicator that keeps at most maxLive entries.
func New(seen SeenStore, maxLive int, log zerolog.Logger) *Deduplicator {
	if maxLive <= 0 {
		maxLive = model.DefaultMaxLive
	}
	return &Deduplicator{
		seen:    seen,
		maxLive: maxLive,
		now:     time.Now,
		log:     log.With().Str("component", "notify").Logger(),
	}
}

// Reconcile merges the bookings of a successful poll into the live list.
// fresh is ordered most-recent-first; that order is preserved. It returns
// the resulting live list and how many of its entries were added by this
// call.
func (d *Deduplicator) Reconcile(ctx context.Context, fresh []model.Booking) ([]model.NotificationRecord, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen, err := d.seen.SeenIDs(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("reconciling notifications: %w", err)
	}

	present := make(model.IDSet, len(d.live)+len(fresh))
	for _, n := range d.live {
		present[n.ID] = struct{}{}
	}

	// Forget overflow ids the backend no longer returns.
	inFresh := make(model.IDSet, len(fresh))
	for _, b := range fresh {
		inFresh[b.ID] = struct{}{}
	}
	for id := range d.overflow {
		if !inFresh.Has(id) {
			delete(d.overflow, id)
		}
	}

	observedAt := d.now()
	var novel []model.NotificationRecord
	for _, b := range fresh {
		if b.ID == "" || seen.Has(b.ID) || present.Has(b.ID) || d.overflow.Has(b.ID) {
			continue
		}
		present[b.ID] = struct{}{}
		novel = append(novel, model.NotificationRecord{
			ID:         b.ID,
			Summary:    Summary(b),
			Detail:     Detail(b),
			ObservedAt: observedAt,
		})
	}

	if len(novel) > 0 {
		merged := make([]model.NotificationRecord, 0, len(novel)+len(d.live))
		merged = append(merged, novel...)
		merged = append(merged, d.live...)
		if len(merged) > d.maxLive {
			d.log.Debug().
				Int("dropped", len(merged)-d.maxLive).
				Msg("live notification list truncated")
			if d.overflow == nil {
				d.overflow = make(model.IDSet)
			}
			for _, n := range merged[d.maxLive:] {
				if !n.Acknowledged {
					d.overflow[n.ID] = struct{}{}
				}
			}
			merged = merged[:d.maxLive]
		}
		d.live = merged
	}

	added := min(len(novel), d.maxLive)
	out := make([]model.NotificationRecord, len(d.live))
	copy(out, d.live)
	return out, added, nil
}

// AcknowledgeOne marks id as seen: the live entry (if any) is flagged
// acknowledged and the id is committed to the persisted seen set.
func (d *Deduplicator) AcknowledgeOne(ctx context.Context, id model.BookingID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.seen.AddSeenIDs(ctx, id); err != nil {
		return fmt.Errorf("acknowledging %s: %w", id, err)
	}
	for i := range d.live {
		if d.live[i].ID == id {
			d.live[i].Acknowledged = true
		}
	}
	return nil
}

// AcknowledgeAll marks every live entry as seen.
func (d *Deduplicator) AcknowledgeAll(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.live) == 0 {
		return nil
	}

	ids := make([]model.BookingID, len(d.live))
	for i, n := range d.live {
		ids[i] = n.ID
	}
	if err := d.seen.AddSeenIDs(ctx, ids...); err != nil {
		return fmt.Errorf("acknowledging all: %w", err)
	}
	for i := range d.live {
		d.live[i].Acknowledged = true
	}
	return nil
}

// Dismiss removes id from the live list without marking it seen. It
// reports whether an entry was removed.
func (d *Deduplicator) Dismiss(id model.BookingID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, n := range d.live {
		if n.ID == id {
			d.live = append(d.live[:i:i], d.live[i+1:]...)
			return true
		}
	}
	return false
}

// Live returns a copy of the live list, newest first.
func (d *Deduplicator) Live() []model.NotificationRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]model.NotificationRecord, len(d.live))
	copy(out, d.live)
	return out
}

// Unread returns the number of unacknowledged live entries.
func (d *Deduplicator) Unread() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, r := range d.live {
		if !r.Acknowledged {
			n++
		}
	}
	return n
}

// Reset empties the live list. The seen set is untouched.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live = nil
	d.overflow = nil
}
