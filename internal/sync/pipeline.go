package sync

import (
	"context"

	"github.com/nhle/rental-console/internal/dashboard"
	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/notify"
)

// Pipeline is the Sink that feeds a fetched dashboard into the dashboard
// cache and the notification deduplicator.
type Pipeline struct {
	dash  *dashboard.State
	dedup *notify.Deduplicator
}

// NewPipeline creates a pipeline over the given aggregates.
func NewPipeline(dash *dashboard.State, dedup *notify.Deduplicator) *Pipeline {
	return &Pipeline{dash: dash, dedup: dedup}
}

// Handle applies d to the dashboard cache and reconciles its recent
// bookings. It returns how many notifications were added.
func (p *Pipeline) Handle(ctx context.Context, d *model.Dashboard) (int, error) {
	p.dash.Apply(d)
	_, added, err := p.dedup.Reconcile(ctx, d.RecentBookings)
	return added, err
}
