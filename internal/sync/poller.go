package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/model"
)

// SyncState represents the current state of the dashboard poll.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the poll state. Error is the last fetch failure and is
// cleared by the next successful fetch.
type SyncStatus struct {
	Active   bool
	State    SyncState
	LastSync time.Time
	Error    error

	// Skipped counts ticks dropped because a fetch was still in flight.
	Skipped int
}

// SyncResultMsg is a tea.Msg sent when a poll completes.
type SyncResultMsg struct {
	Dashboard   *model.Dashboard
	NewCount    int
	Error       error
	AuthExpired bool
	CompletedAt time.Time
}

// Fetcher retrieves one dashboard snapshot.
type Fetcher func(ctx context.Context) (*model.Dashboard, error)

// Sink consumes a successfully fetched dashboard and reports how many new
// notifications it produced.
type Sink interface {
	Handle(ctx context.Context, d *model.Dashboard) (int, error)
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Poller fetches the dashboard on a fixed interval while active. At most
// one fetch is in flight per activation; a tick that fires while a fetch
// is outstanding is dropped, not queued.
type Poller struct {
	fetch    Fetcher
	sink     Sink
	interval time.Duration
	log      zerolog.Logger

	resultCh chan SyncResultMsg

	mu       gosync.Mutex
	status   SyncStatus
	gen      uint64
	cancel   context.CancelFunc
	inflight *semaphore.Weighted
	trigger  chan struct{}

	// deliverMu orders result delivery against Deactivate so no result
	// from a finished activation reaches the sink afterwards.
	deliverMu gosync.Mutex

	wg gosync.WaitGroup
}

// New creates an inactive poller.
func New(fetch Fetcher, sink Sink, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = model.DefaultPollInterval
	}
	return &Poller{
		fetch:    fetch,
		sink:     sink,
		interval: interval,
		log:      log.With().Str("component", "poller").Logger(),
		resultCh: make(chan SyncResultMsg, 16),
	}
}

// Activate starts polling: one fetch immediately, then one per interval.
// Activating an active poller is a no-op.
func (p *Poller) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	// Each activation owns its trigger channel, so a refresh requested now
	// cannot be consumed by the loop of an earlier activation.
	p.gen++
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.inflight = semaphore.NewWeighted(1)
	p.trigger = make(chan struct{}, 1)
	p.status.Active = true
	p.status.State = SyncIdle
	p.status.Error = nil

	p.wg.Add(1)
	go p.loop(ctx, p.gen, p.inflight, p.trigger)

	p.log.Debug().Uint64("generation", p.gen).Msg("polling activated")
}

// Deactivate stops polling and abandons any in-flight fetch; its result
// is discarded. It does not wait for goroutines to exit, so it is safe to
// call from inside a fetch.
func (p *Poller) Deactivate() {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.trigger = nil
	p.gen++
	p.status.Active = false
	p.status.State = SyncIdle

	p.log.Debug().Msg("polling deactivated")
}

// Stop deactivates the poller and waits for its goroutines to exit.
func (p *Poller) Stop() {
	p.Deactivate()
	p.wg.Wait()
}

// RefreshNow requests an immediate fetch, subject to the single-flight
// rule. It is ignored while inactive.
func (p *Poller) RefreshNow() {
	p.mu.Lock()
	trigger := p.trigger
	p.mu.Unlock()

	if trigger == nil {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// Active reports whether the poller is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Status returns a copy of the current poll status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Results returns the channel on which poll results are published.
func (p *Poller) Results() <-chan SyncResultMsg {
	return p.resultCh
}

// loop runs the ticker for one activation.
func (p *Poller) loop(ctx context.Context, gen uint64, inflight *semaphore.Weighted, trigger <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.tick(ctx, gen, inflight)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen, inflight)
		case <-trigger:
			p.tick(ctx, gen, inflight)
		}
	}
}

// tick launches a fetch unless one is already in flight.
func (p *Poller) tick(ctx context.Context, gen uint64, inflight *semaphore.Weighted) {
	if ctx.Err() != nil {
		return
	}
	if !inflight.TryAcquire(1) {
		p.mu.Lock()
		p.status.Skipped++
		p.mu.Unlock()
		p.log.Debug().Msg("previous fetch still in flight; tick dropped")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer inflight.Release(1)
		p.fetchAndDeliver(ctx, gen)
	}()
}

// fetchAndDeliver performs a single fetch, hands the result to the sink,
// and publishes a SyncResultMsg.
func (p *Poller) fetchAndDeliver(ctx context.Context, gen uint64) {
	p.setStatus(gen, SyncRunning, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	d, err := p.fetch(fetchCtx)
	cancel()

	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	if !p.current(gen) {
		return
	}

	if err != nil {
		p.setStatus(gen, SyncError, err)
		p.log.Warn().Err(err).Msg("dashboard fetch failed")
		p.sendResult(SyncResultMsg{
			Error:       err,
			AuthExpired: backend.IsAuthError(err),
			CompletedAt: time.Now(),
		})
		return
	}
	if d == nil {
		err := errors.New("empty dashboard response")
		p.setStatus(gen, SyncError, err)
		p.sendResult(SyncResultMsg{Error: err, CompletedAt: time.Now()})
		return
	}

	newCount, err := p.sink.Handle(ctx, d)
	if err != nil {
		p.setStatus(gen, SyncError, err)
		p.log.Error().Err(err).Msg("processing dashboard failed")
		p.sendResult(SyncResultMsg{Dashboard: d, Error: err, CompletedAt: time.Now()})
		return
	}

	if newCount > 0 {
		p.log.Info().Int("new", newCount).Msg("new booking notifications")
	}

	p.setStatus(gen, SyncIdle, nil)
	p.sendResult(SyncResultMsg{
		Dashboard:   d,
		NewCount:    newCount,
		CompletedAt: time.Now(),
	})
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil && p.gen == gen
}

// setStatus updates the poll status if gen is still the active generation.
func (p *Poller) setStatus(gen uint64, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != gen {
		return
	}

	p.status.State = state
	switch state {
	case SyncIdle:
		p.status.Error = nil
		p.status.LastSync = time.Now()
	case SyncError:
		p.status.Error = err
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// It should be called again after each SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}
