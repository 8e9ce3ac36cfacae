package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/tabmates/tabmates/internal/config"
	"github.com/tabmates/tabmates/internal/engine"
	server "github.com/tabmates/tabmates/internal/http"
	"github.com/tabmates/tabmates/internal/notify"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/service"
	"github.com/tabmates/tabmates/internal/storage/sqlite"
	"github.com/tabmates/tabmates/pkg/logging"
)

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage initialized", "database", cfg.SQLiteDBPath)

	// Event publishing is optional: without a broker the engine still
	// recalculates, it just tells nobody.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("failed to connect to AMQP, continuing without event publishing", "error", err)
		} else {
			notifier = amqpNotifier
			logger.Info("AMQP notifier initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	defer notifier.Close()

	eng := engine.New(store, notifier, logger)
	sched := scheduler.NewWithDelay(eng, cfg.DebounceDelay, logger)
	defer sched.Cleanup()

	srv := server.NewServer(
		fmt.Sprintf(":%s", cfg.Port),
		service.NewGroupService(store, sched, logger),
		service.NewExpenseService(store, sched, logger),
		service.NewSettlementService(store, sched, logger),
		service.NewBillService(store, logger),
		eng,
		sched,
		logger,
	)

	// HTTP/2 without TLS so gRPC-style and browser clients share one port.
	srv.Handler = h2c.NewHandler(srv.Handler, &http2.Server{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Housekeeping: purge old terminal settlements on an interval.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.HousekeepingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				purged, err := store.PurgeTerminalSettlements(ctx, cfg.SettlementRetention)
				if err != nil {
					logger.Error("settlement purge failed", "error", err)
					continue
				}
				if purged > 0 {
					logger.Info("purged old terminal settlements", "count", purged)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
