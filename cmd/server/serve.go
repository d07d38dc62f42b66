package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/optik-pos/api/internal/database"
	"github.com/optik-pos/api/internal/lock"
	"github.com/optik-pos/api/internal/logger"
	"github.com/optik-pos/api/internal/router"
	"github.com/optik-pos/api/internal/service"
	"github.com/optik-pos/api/internal/ws"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long: `Run the API server.

When REDIS_URL is set, order locks are taken in Redis and live events are
relayed through Redis pub/sub, so several instances can share one database.
Without it, locks and events stay inside this process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateFirst, _ := cmd.Flags().GetBool("migrate"); migrateFirst {
		if err := database.Migrate(cfg.DatabaseURL, 0); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("connected to database")

	hub := ws.NewHub()
	go hub.Run(ctx)

	opts := service.Options{
		Publisher:      hub,
		PaymentMethods: cfg.PaymentMethods,
		InvoicePrefix:  cfg.InvoicePrefix,
	}

	if cfg.RedisURL != "" {
		rdb, err := lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}

		relay := ws.NewRelay(rdb, hub, ws.DefaultRelayChannel)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error().Err(err).Msg("event relay stopped")
			}
		}()

		opts.Locker = lock.NewRedisLocker(rdb, 0)
		opts.Publisher = relay
		log.Info().Msg("using redis for locks and events")
	}

	orders := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, opts)
	reports := service.NewReportService(pool, func(db database.DBTX) service.ReportStore {
		return database.New(db)
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(cfg, router.Services{
			Orders:  orders,
			Reports: reports,
			Hub:     hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
