package model

import "time"

// NotificationRecord is a live entry in the operator's notification
// dropdown, raised for a booking that had not been seen before.
type NotificationRecord struct {
	// ID is the id of the originating booking. It is unique within the
	// live notification list.
	ID BookingID `json:"id"`

	// Summary is the one-line text shown in the dropdown.
	Summary string `json:"summary"`

	// Detail is the expanded text shown when the entry is opened.
	Detail string `json:"detail"`

	// ObservedAt is when the poll that surfaced this booking completed.
	ObservedAt time.Time `json:"observed_at"`

	// Acknowledged indicates whether the operator has seen this entry.
	Acknowledged bool `json:"acknowledged"`
}
