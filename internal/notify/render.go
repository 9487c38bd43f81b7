package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/rental-console/internal/model"
)

const dateLayout = "02 Jan"

// Summary renders the one-line dropdown text for a booking.
func Summary(b model.Booking) string {
	car := b.CarName
	if car == "" {
		car = "unknown car"
	}
	return fmt.Sprintf("New booking #%s · %s", b.ID, car)
}

// Detail renders the expanded text shown when a notification is opened.
func Detail(b model.Booking) string {
	parts := make([]string, 0, 5)

	customer := b.CustomerName
	if customer == "" {
		customer = b.CustomerEmail
	}
	if customer != "" {
		parts = append(parts, customer)
	}
	if period := formatPeriod(b.PickupDate, b.ReturnDate); period != "" {
		parts = append(parts, period)
	}
	if b.TotalPrice > 0 {
		parts = append(parts, fmt.Sprintf("$%.2f", b.TotalPrice))
	}
	if b.Status != "" {
		parts = append(parts, b.Status)
	}

	return strings.Join(parts, " · ")
}

func formatPeriod(from, to time.Time) string {
	switch {
	case from.IsZero() && to.IsZero():
		return ""
	case to.IsZero():
		return "from " + from.Format(dateLayout)
	case from.IsZero():
		return "until " + to.Format(dateLayout)
	default:
		return from.Format(dateLayout) + " → " + to.Format(dateLayout)
	}
}
