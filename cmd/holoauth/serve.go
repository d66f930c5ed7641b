// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/console"
	"github.com/holomush/holoauth/internal/host"
	"github.com/holomush/holoauth/internal/logging"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/internal/rpc"
	"github.com/holomush/holoauth/internal/store"
	"github.com/holomush/holoauth/internal/xdg"
	"github.com/holomush/holoauth/pkg/errutil"
)

// ServeAddrs holds the bound listen addresses once serve is ready.
type ServeAddrs struct {
	RPC     string
	Console string
	Metrics string
}

// ServeDeps holds injectable dependencies for serve.
type ServeDeps struct {
	// StoreFactory opens the state backend. The returned func releases it.
	StoreFactory func(ctx context.Context, cfg *config.Config) (store.StateStore, func(), error)

	// ClockFactory creates the tick source starting at the state's resume tick.
	ClockFactory func(start auth.Tick) auth.TickSource

	// OnReady is called once every listener is bound.
	OnReady func(ServeAddrs)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auth service",
		Long: `Run the auth service: load persisted state, then serve the gRPC
API, the operator console and the metrics endpoint until interrupted.
State is saved periodically and once more on shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return oops.Code("CONFIG_INVALID").Wrap(err)
			}
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// openStore is the default StoreFactory.
func openStore(ctx context.Context, cfg *config.Config) (store.StateStore, func(), error) {
	if cfg.Store == config.StoreFile {
		if err := xdg.EnsureDir(filepath.Dir(cfg.StateFile)); err != nil {
			return nil, nil, err
		}
		return store.NewFileStateStore(cfg.StateFile), func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	}
	pool, err := store.Connect(ctx, cfg.DatabaseURL, store.ConnectOptions{})
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStateStore(pool), pool.Close, nil
}

func migrateUp(databaseURL string) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	slog.Info("applying migrations", "pending", len(pending))
	return m.Up()
}

// runServe starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreFactory == nil {
		deps.StoreFactory = openStore
	}
	if deps.ClockFactory == nil {
		deps.ClockFactory = func(start auth.Tick) auth.TickSource {
			return host.NewSecondClock(start)
		}
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	mirror := logging.NewMirror(logging.NewHandler(logging.Options{
		Service: "holoauth",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   level,
	}, cmd.ErrOrStderr()))
	logger := slog.New(mirror)
	slog.SetDefault(logger)

	logger.InfoContext(ctx, "starting holoauth",
		"store", cfg.Store,
		"rpc_addr", cfg.RPCAddr,
		"console_addr", cfg.ConsoleAddr,
		"metrics_addr", cfg.MetricsAddr,
	)

	stateStore, release, err := deps.StoreFactory(ctx, cfg)
	if err != nil {
		return oops.Code("SERVE_STORE_FAILED").With("store", cfg.Store).Wrap(err)
	}
	defer release()

	state, err := store.Open(ctx, stateStore)
	if err != nil {
		return err
	}

	dir := host.NewDirectory()
	for _, acct := range state.AccountList() {
		dir.Seed(acct.Identity)
	}

	svc, err := auth.NewService(state, dir, deps.ClockFactory(state.ResumeTick()),
		auth.WithLogger(logger),
		auth.WithVerboseListener(mirror.SetEnabled),
	)
	if err != nil {
		return err
	}
	intake, err := host.NewIntake(dir, svc)
	if err != nil {
		return err
	}

	var ready atomic.Bool
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, ready.Load)
		auth.RegisterMetrics(obsServer.Registry())
		rpc.RegisterMetrics(obsServer.Registry())
		observability.RegisterGauges(obsServer.Registry(), svc)
		metrics = obsServer.Metrics()

		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	defer func() {
		if obsServer == nil {
			return
		}
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer stopCancel()
		if err := obsServer.Stop(stopCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}()

	rpcServer, err := rpc.NewServer(svc, intake)
	if err != nil {
		return err
	}
	rpcErrCh, rpcAddr, err := rpcServer.Start(cfg.RPCAddr)
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, rpcErrCh, "rpc")

	addrs := ServeAddrs{RPC: rpcAddr.String()}
	if obsServer != nil {
		addrs.Metrics = obsServer.Addr()
	}

	consoleCtx, consoleCancel := context.WithCancel(context.Background())
	defer consoleCancel()
	consoleDone := make(chan error, 1)
	if cfg.ConsoleAddr != "" {
		consoleServer, err := console.NewServer(cfg.ConsoleAddr, svc, intake, mirror)
		if err != nil {
			return err
		}
		go func() { consoleDone <- consoleServer.Run(consoleCtx) }()

		select {
		case <-consoleServer.Ready():
			addrs.Console = consoleServer.Addr()
		case err := <-consoleDone:
			stopRPC(rpcServer, cfg.ShutdownTimeout)
			return err
		}
	} else {
		close(consoleDone)
	}

	save := func(ctx context.Context, trigger string) {
		err := stateStore.Save(ctx, svc.Snapshot())
		metrics.RecordSave(trigger, err)
		if err != nil {
			errutil.LogErrorContext(ctx, logger, "failed to save auth state", err)
		}
	}

	ready.Store(true)
	if deps.OnReady != nil {
		deps.OnReady(addrs)
	}
	cmd.Println("holoauth serving on " + addrs.RPC)
	logger.InfoContext(ctx, "holoauth ready",
		"rpc_addr", addrs.RPC,
		"console_addr", addrs.Console,
		"metrics_addr", addrs.Metrics,
		"accounts", svc.AccountCount(),
	)

	ticker := time.NewTicker(cfg.AutosaveInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err, ok := <-consoleDone:
			if ok && err != nil {
				errutil.LogErrorContext(ctx, logger, "console server stopped", err)
				cancel()
			}
			consoleDone = nil
		case <-ticker.C:
			if n := svc.Sweep(ctx); n > 0 {
				metrics.SweptTokens.Add(float64(n))
			}
			save(ctx, "autosave")
		}
	}

	slog.Info("shutting down")
	ready.Store(false)

	consoleCancel()
	stopRPC(rpcServer, cfg.ShutdownTimeout)
	if consoleDone != nil {
		<-consoleDone
	}

	saveCtx, saveCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer saveCancel()
	save(saveCtx, "shutdown")

	slog.Info("shutdown complete")
	return nil
}

func stopRPC(s *rpc.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping rpc server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	}
}
