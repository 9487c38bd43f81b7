package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	gosync "sync"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/rental-console/internal/model"
	appsync "github.com/nhle/rental-console/internal/sync"
)

var (
	// ErrNoStoredSession is returned by RunHeadless when no verified admin
	// token is stored.
	ErrNoStoredSession = errors.New("no stored admin session; sign in with the interactive console first")

	// ErrSessionEnded is returned by RunHeadless when the session is
	// revoked while running.
	ErrSessionEnded = errors.New("admin session ended")
)

// RunHeadless polls the dashboard without a terminal UI and writes each new
// booking notification to out. It returns nil when ctx is cancelled.
func RunHeadless(ctx context.Context, core *Core, out io.Writer, log zerolog.Logger) error {
	displayAppName(out, "rental console")

	ended := make(chan struct{})
	var once gosync.Once
	core.Session.Subscribe(func(s model.Session) {
		if !s.Authenticated() {
			once.Do(func() { close(ended) })
		}
	})

	if err := core.Start(ctx); err != nil {
		return err
	}
	p := core.Session.Principal()
	if p == nil {
		return ErrNoStoredSession
	}
	log.Info().Str("principal", p.Email).Msg("headless polling started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case res := <-core.Poller.Results():
				report(out, core, res)
			}
		}
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-ended:
			return ErrSessionEnded
		}
	})

	return g.Wait()
}

// report prints the notifications a poll added. New entries are at the
// front of the live list.
func report(out io.Writer, core *Core, res appsync.SyncResultMsg) {
	if res.Error != nil || res.NewCount == 0 {
		return
	}

	live := core.Dedup.Live()
	n := min(res.NewCount, len(live))
	for _, rec := range live[:n] {
		fmt.Fprintf(out, "%s  %s\n    %s\n",
			rec.ObservedAt.Format("15:04:05"), rec.Summary, rec.Detail)
	}
}

func displayAppName(out io.Writer, name string) {
	fig := figure.NewFigure(name, "cybermedium", true)
	fmt.Fprintln(out, fig.String())
}
