package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"datamod/internal/audit"
	"datamod/internal/modification"
	"datamod/internal/modifications"
	"datamod/internal/platform/config"
	"datamod/internal/platform/database"
	"datamod/internal/platform/httpserver"
	"datamod/internal/platform/logger"
	"datamod/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	streamLevel, err := modification.ParseLevel(cfg.StreamMinLevel)
	if err != nil {
		return err
	}

	m := metrics.New()
	registry := modification.NewRegistry()
	if err := modifications.Register(registry, modifications.Config{Pace: cfg.ModificationPace, Metrics: m}); err != nil {
		return err
	}

	auditStore := audit.NewPostgresStore(db)
	publisher := audit.NewPublisher(cfg.AuditBuffer)
	worker := audit.NewWorker(auditStore, publisher.Inbox(), log)

	runner := modification.NewRunner(db, registry,
		modification.WithLogger(log),
		modification.WithStreamLevel(streamLevel),
		modification.WithMetrics(m),
		modification.WithAuditPublisher(publisher),
	)

	router := newRouter(routerDeps{
		db:         db,
		runner:     runner,
		auditStore: auditStore,
		metrics:    m,
		logger:     log,
	})

	// Runs derive their context from the request. baseCtx outlives the
	// shutdown signal so in-flight runs can finish, and is cancelled when the
	// grace period is over so the rest roll back.
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()
	srv := httpserver.New(cfg.Addr, router)
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }

	g, gctx := errgroup.WithContext(ctx)
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	g.Go(func() error {
		log.Info("starting data modification server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("grace period over, cancelling in-flight runs")
			cancelBase()
			_ = srv.Close()
		}
		stopWorker()
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}
