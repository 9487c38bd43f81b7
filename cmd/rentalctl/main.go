package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/nhle/rental-console/internal/app"
	"github.com/nhle/rental-console/internal/logging"
	"github.com/nhle/rental-console/internal/model"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rentalctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("rentalctl", pflag.ContinueOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	fs.String("base-url", "", "backend API root")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("db", "", "path to the local SQLite database")
	headless := fs.Bool("headless", false, "poll and print new bookings without the terminal UI")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	written, err := model.WriteDefaultConfig(*configPath)
	if err != nil {
		return err
	}

	cfg, err := model.LoadConfig(*configPath, fs)
	if err != nil {
		return err
	}

	log, closer, err := newLogger(cfg, *headless)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if written {
		log.Info().Str("path", *configPath).Msg("wrote default config")
	}

	core, err := app.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := core.Close(); err != nil {
			log.Error().Err(err).Msg("closing store")
		}
	}()

	if *headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunHeadless(ctx, core, os.Stdout, log)
	}

	p := tea.NewProgram(app.New(core, log), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}

// newLogger logs to stderr in headless mode and to the configured file
// otherwise, since the TUI owns the terminal.
func newLogger(cfg *model.AppConfig, headless bool) (zerolog.Logger, io.Closer, error) {
	if headless {
		return logging.NewConsole(cfg.Log.Level), nil, nil
	}
	return logging.OpenFile(cfg.Log.File, cfg.Log.Level)
}
