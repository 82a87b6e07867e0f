package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/fnhost/internal/audit"
	"github.com/nextlevelbuilder/fnhost/internal/config"
	"github.com/nextlevelbuilder/fnhost/internal/deploy"
	"github.com/nextlevelbuilder/fnhost/internal/httpapi"
	"github.com/nextlevelbuilder/fnhost/internal/persistence"
	"github.com/nextlevelbuilder/fnhost/internal/proxy"
	"github.com/nextlevelbuilder/fnhost/internal/registry"
	"github.com/nextlevelbuilder/fnhost/internal/sandbox"
	"github.com/nextlevelbuilder/fnhost/internal/tracing"
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	setupLogging()
	log := slog.Default()

	if flagHost == "" {
		return errors.New("--host is required")
	}
	cfg := config.Defaults()
	cfg.Path = flagPath
	cfg.Addr = flagAddr
	cfg.Port = flagPort
	cfg.Host = flagHost
	cfg.OTelEndpoint = flagOTelEndpoint
	cfg.AuditDBPath = flagAuditDB
	cfg.FlushInterval = flagFlushInterval
	if cfg.AuditDBPath == "" {
		cfg.AuditDBPath = config.AuditDBDefault(cfg.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	reg, err := registry.NewManager(cfg.Path, log)
	if err != nil {
		return fmt.Errorf("loading function registry: %w", err)
	}
	um, err := users.NewManager(cfg.Path, log)
	if err != nil {
		return fmt.Errorf("loading user manager: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.AuditDBPath), 0o755); err != nil {
		return fmt.Errorf("creating audit db directory: %w", err)
	}
	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditStore.Close()

	table := proxy.NewTable()
	sb := &sandbox.Bubblewrap{Log: log}
	coord := deploy.New(reg, sb, table, log)

	api := httpapi.New(reg, um, coord, auditStore, log)
	apiMux := api.BuildMux()
	rp := proxy.New(cfg.Host, table, apiMux, log)

	loop := &persistence.Loop{
		Targets: []persistence.Target{
			{Name: "registry", Dirty: reg.Dirty, Save: reg.WriteAllToFS},
			{Name: "users", Dirty: um.Dirty, Save: um.Save},
		},
		Cron: cfg.FlushInterval,
		Log:  log,
	}
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	addr := net.JoinHostPort(cfg.Addr, fmt.Sprintf("%d", cfg.Port))
	srv := &http.Server{
		Addr:    addr,
		Handler: rp,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("control plane listening", slog.String("addr", addr), slog.String("host", cfg.Host))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("control plane server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during server shutdown", slog.Any("error", err))
	}
	<-loopDone // the persistence loop performs its final flush before returning

	return nil
}
