package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/timesheet/internal/auth"
	"github.com/sadopc/timesheet/internal/config"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/identity"
	"github.com/sadopc/timesheet/internal/logging"
	"github.com/sadopc/timesheet/internal/tui"
)

func main() {
	cfg, err := config.Load(os.Getenv("TIMESHEET_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, logFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var (
		gw       gateway.Gateway
		provider identity.Provider
	)
	if cfg.Configured() {
		tr := gateway.NewTransport(cfg.BackendURL, cfg.APIKey, cfg.RequestTimeout)
		gw = gateway.NewClient(tr)
		provider = identity.NewClient(tr, cfg.SessionFile, logger)
		logger.Info("starting", "backend", cfg.BackendURL, "config", cfg.Path)
	} else {
		gw = gateway.Unconfigured{}
		provider = &identity.Unconfigured{}
		logger.Warn("backend_url or api_key not set; running without a backend", "config", cfg.Path)
	}

	session := auth.NewSession(provider, gw, logger)
	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error starting session: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	app := tui.NewApp(ctx, session, gw, logger, cfg.Configured())
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		logger.Error("program exited", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
