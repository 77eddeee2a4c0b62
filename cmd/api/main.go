package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dsamarin/gatepay/internal/bootstrap"
	"github.com/dsamarin/gatepay/internal/controller"
	infraRedis "github.com/dsamarin/gatepay/internal/infrastructure/redis"
	"github.com/dsamarin/gatepay/internal/repository/postgres"
	"github.com/dsamarin/gatepay/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "gatepay-api", "gatepay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	transactionRepo := postgres.NewTransactionRepository(app.Pool)
	orderRepo := postgres.NewOrderRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Workflow ---
	paymentCfg := app.Config.Payment
	sessions := infraRedis.NewSessionStore(app.Redis, paymentCfg.SessionTTL)
	lockFor := func(paymentID int64) service.PaymentLock {
		return infraRedis.NewReconcileLock(app.Redis, paymentID, paymentCfg.ReconcileLockTTL)
	}
	workflow := service.NewPaymentWorkflow(
		transactionRepo,
		orderRepo,
		app.Gateways,
		txManager,
		sessions,
		lockFor,
		app.Config.Gateways,
		paymentCfg,
		app.Metrics,
		app.Logger,
	)

	// --- HTTP server ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		Workflow:    workflow,
		Metrics:     app.Metrics,
		Server:      app.Config.Server,
		Payment:     paymentCfg,
		JWTSecret:   app.Config.Auth.JWTSecret,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	app.Logger.Info().Msg("Server exited")
}
