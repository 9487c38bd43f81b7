package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/model"
	appsync "github.com/nhle/rental-console/internal/sync"
)

type recordingSink struct {
	mu      gosync.Mutex
	handled []*model.Dashboard
	added   int
	err     error
}

func (s *recordingSink) Handle(_ context.Context, d *model.Dashboard) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled = append(s.handled, d)
	return s.added, s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handled)
}

func dashboardWith(ids ...model.BookingID) *model.Dashboard {
	d := &model.Dashboard{}
	for _, id := range ids {
		d.RecentBookings = append(d.RecentBookings, model.Booking{ID: id})
	}
	return d
}

func nextResult(t *testing.T, p *appsync.Poller) appsync.SyncResultMsg {
	t.Helper()
	select {
	case res := <-p.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll result")
		return appsync.SyncResultMsg{}
	}
}

func TestPoller_ActivateFetchesImmediately(t *testing.T) {
	sink := &recordingSink{added: 2}
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		return dashboardWith("1", "2"), nil
	}, sink, time.Hour, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.Activate()
	p.Activate()

	res := nextResult(t, p)
	require.NoError(t, res.Error)
	assert.Equal(t, 2, res.NewCount)
	assert.Len(t, res.Dashboard.RecentBookings, 2)
	assert.Equal(t, 1, sink.count())

	st := p.Status()
	assert.True(t, st.Active)
	assert.Equal(t, appsync.SyncIdle, st.State)
	assert.False(t, st.LastSync.IsZero())
}

func TestPoller_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	p := appsync.New(func(ctx context.Context) (*model.Dashboard, error) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return dashboardWith(), nil
	}, &recordingSink{}, 5*time.Millisecond, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.Activate()

	require.Eventually(t, func() bool { return p.Status().Skipped >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "ticks during an in-flight fetch must be dropped")

	close(release)
	nextResult(t, p)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestPoller_DeactivateDiscardsInFlightResult(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	sink := &recordingSink{}
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		entered <- struct{}{}
		<-release
		return dashboardWith("9"), nil
	}, sink, time.Hour, zerolog.Nop())

	p.Activate()
	<-entered
	p.Deactivate()
	close(release)
	p.Stop()

	assert.Zero(t, sink.count())
	select {
	case res := <-p.Results():
		t.Fatalf("unexpected result after deactivate: %+v", res)
	default:
	}
	assert.False(t, p.Status().Active)
}

func TestPoller_DeactivateFromFetch(t *testing.T) {
	var p *appsync.Poller
	p = appsync.New(func(context.Context) (*model.Dashboard, error) {
		// Mirrors a fetch that ends the session on a 401.
		p.Deactivate()
		return nil, &backend.AuthError{StatusCode: 401, Message: "Invalid token"}
	}, &recordingSink{}, time.Hour, zerolog.Nop())

	p.Activate()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, p.Active())
}

func TestPoller_ReactivateWhileOldFetchOutstanding(t *testing.T) {
	var calls atomic.Int32
	first := make(chan struct{})
	p := appsync.New(func(ctx context.Context) (*model.Dashboard, error) {
		if calls.Add(1) == 1 {
			<-first
		}
		return dashboardWith(), nil
	}, &recordingSink{}, time.Hour, zerolog.Nop())
	t.Cleanup(func() {
		close(first)
		p.Stop()
	})

	p.Activate()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	p.Deactivate()
	p.Activate()

	res := nextResult(t, p)
	require.NoError(t, res.Error)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPoller_RefreshAfterReactivation(t *testing.T) {
	var calls atomic.Int32
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		calls.Add(1)
		return dashboardWith(), nil
	}, &recordingSink{}, time.Hour, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.Activate()
	nextResult(t, p)
	p.Deactivate()
	p.Activate()
	nextResult(t, p)

	// Give the initial fetch of this activation time to release its slot.
	time.Sleep(20 * time.Millisecond)
	p.RefreshNow()
	res := nextResult(t, p)
	require.NoError(t, res.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPoller_ErrorsAndRecovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		if fail.Load() {
			return nil, &backend.StatusError{StatusCode: 503}
		}
		return dashboardWith(), nil
	}, &recordingSink{}, time.Hour, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.Activate()
	res := nextResult(t, p)
	require.Error(t, res.Error)
	assert.False(t, res.AuthExpired)
	assert.Equal(t, appsync.SyncError, p.Status().State)
	assert.Error(t, p.Status().Error)

	fail.Store(false)
	// The refresh can race the release of the previous fetch and be
	// dropped, so keep asking until a successful result arrives.
	require.Eventually(t, func() bool {
		p.RefreshNow()
		select {
		case res := <-p.Results():
			return res.Error == nil
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, p.Status().Error)
	assert.Equal(t, appsync.SyncIdle, p.Status().State)
}

func TestPoller_AuthErrorFlagged(t *testing.T) {
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		return nil, &backend.AuthError{StatusCode: 401}
	}, &recordingSink{}, time.Hour, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.Activate()
	res := nextResult(t, p)
	assert.True(t, res.AuthExpired)
}

func TestPoller_SinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("store closed")}
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		return dashboardWith("1"), nil
	}, sink, time.Hour, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.Activate()
	res := nextResult(t, p)
	require.Error(t, res.Error)
	assert.Equal(t, appsync.SyncError, p.Status().State)
}

func TestPoller_RefreshNowWhileInactive(t *testing.T) {
	var calls atomic.Int32
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		calls.Add(1)
		return dashboardWith(), nil
	}, &recordingSink{}, time.Hour, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.RefreshNow()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.False(t, p.Active())
}

func TestPoller_WaitForNextResult(t *testing.T) {
	p := appsync.New(func(context.Context) (*model.Dashboard, error) {
		return dashboardWith(), nil
	}, &recordingSink{added: 1}, time.Hour, zerolog.Nop())
	t.Cleanup(p.Stop)

	p.Activate()
	msg := p.WaitForNextResult()()
	res, ok := msg.(appsync.SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, 1, res.NewCount)
}
