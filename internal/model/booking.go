package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// BookingID is the stable identifier of a booking. The backend emits
// numeric ids, so it decodes from either a JSON number or a JSON string.
type BookingID string

// UnmarshalJSON accepts 101, 101.0 and "101".
func (id *BookingID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return fmt.Errorf("decoding booking id: %w", err)
	}
	*id = BookingID(s)
	return nil
}

// decodeID reads an identifier that may be a JSON string or a JSON number.
// Integral numbers are rendered without a fraction, so 7 and 7.0 both
// become "7". null decodes to "".
func decodeID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return n.String(), nil
}

// IDSet is an unordered set of booking ids.
type IDSet map[BookingID]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...BookingID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id BookingID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []BookingID {
	out := make([]BookingID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Booking statuses reported by the backend.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Booking is a single reservation as returned in the dashboard's
// recent bookings list.
type Booking struct {
	ID            BookingID `json:"id"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	CarName       string    `json:"carName"`
	PickupDate    time.Time `json:"pickupDate"`
	ReturnDate    time.Time `json:"returnDate"`
	TotalPrice    float64   `json:"totalPrice"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DashboardStats holds the aggregate counters shown at the top of the
// admin dashboard.
type DashboardStats struct {
	TotalCars        int     `json:"totalCars"`
	AvailableCars    int     `json:"availableCars"`
	ActiveBookings   int     `json:"activeBookings"`
	PendingBookings  int     `json:"pendingBookings"`
	TotalUsers       int     `json:"totalUsers"`
	ActivePromotions int     `json:"activePromotions"`
	Revenue          float64 `json:"revenue"`
}

// Dashboard is the payload of the admin dashboard endpoint. RecentBookings
// is ordered most-recent-first.
type Dashboard struct {
	Stats          DashboardStats `json:"stats"`
	RecentBookings []Booking      `json:"recentBookings"`
}
