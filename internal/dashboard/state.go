package dashboard

import (
	gosync "sync"
	"time"

	"github.com/nhle/rental-console/internal/model"
)

// Snapshot is a point-in-time copy of the cached dashboard.
type Snapshot struct {
	Stats          model.DashboardStats
	RecentBookings []model.Booking
	UpdatedAt      time.Time
}

// Loaded reports whether any dashboard has been applied since the last
// reset.
func (s Snapshot) Loaded() bool {
	return !s.UpdatedAt.IsZero()
}

// State caches the most recent dashboard payload for the console. It is
// emptied on logout.
type State struct {
	mu   gosync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewState returns an empty dashboard cache.
func NewState() *State {
	return &State{now: time.Now}
}

// Apply replaces the cached dashboard with d.
func (s *State) Apply(d *model.Dashboard) {
	if d == nil {
		return
	}

	bookings := make([]model.Booking, len(d.RecentBookings))
	copy(bookings, d.RecentBookings)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{
		Stats:          d.Stats,
		RecentBookings: bookings,
		UpdatedAt:      s.now(),
	}
}

// Snapshot returns a copy of the cached dashboard.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	out.RecentBookings = make([]model.Booking, len(s.snap.RecentBookings))
	copy(out.RecentBookings, s.snap.RecentBookings)
	return out
}

// Reset empties the cache.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{}
}
