// Command timesheet-backend serves the records and identity API over a
// SQLite database.
//
// Usage:
//
//	timesheet-backend [-config path] [serve]
//	timesheet-backend [-config path] allow -email addr -role user|supervisor|manager [-by who]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sadopc/timesheet/internal/api"
	"github.com/sadopc/timesheet/internal/config"
	"github.com/sadopc/timesheet/internal/identity"
	"github.com/sadopc/timesheet/internal/logging"
	"github.com/sadopc/timesheet/internal/model"
	"github.com/sadopc/timesheet/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("TIMESHEET_CONFIG"), "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := "serve", []string(nil)
	if flag.NArg() > 0 {
		cmd, args = flag.Arg(0), flag.Args()[1:]
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "allow":
		err = allow(ctx, cfg, args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		logger.Error("exiting", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.APIKey == "" {
		return errors.New("api_key must be set before the backend can serve")
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	issuer := identity.NewIssuer(st, identity.LogMailer{Logger: logger}, cfg.LinkBaseURL, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.New(st, issuer, cfg.APIKey, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func allow(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("allow", flag.ContinueOnError)
	email := fs.String("email", "", "address to allow")
	roleName := fs.String("role", string(model.RoleUser), "role granted on first sign-in")
	by := fs.String("by", "cli", "recorded as the entry's creator")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("allow: -email is required")
	}
	role, err := model.ParseRole(*roleName)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	entry, err := st.AllowEmail(ctx, *email, role, *by)
	if err != nil {
		return err
	}
	fmt.Printf("allowed %s as %s\n", entry.Email, entry.Role)
	return nil
}
