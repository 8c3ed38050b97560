package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dawilly/clickpesa/internal/bootstrap"
	"github.com/dawilly/clickpesa/internal/controller"
	"github.com/dawilly/clickpesa/internal/gateway"
	infraRedis "github.com/dawilly/clickpesa/internal/infrastructure/redis"
	"github.com/dawilly/clickpesa/internal/repository/postgres"
	"github.com/dawilly/clickpesa/internal/service"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "clickpesa-api", "clickpesa")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	// --- Repositories ---
	transactionRepo := postgres.NewTransactionRepository(app.Pool)
	webhookRepo := postgres.NewWebhookRepository(app.Pool)

	// --- Gateway clients ---
	env, err := gateway.ParseEnvironment(cfg.Gateway.Environment)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Invalid gateway environment")
	}

	var tokenCache gateway.Cache
	switch {
	case !cfg.Cache.Enabled:
		tokenCache = gateway.NoopCache{}
	case cfg.Cache.Driver == "redis":
		tokenCache = gateway.NewRedisCache(app.Redis)
	default:
		tokenCache = gateway.NewMemoryCache()
	}

	// Collections and payouts share one authenticator so a token fetched
	// by either side serves both.
	auth := gateway.NewAuthenticator(env, cfg.Gateway.APIKey, cfg.Gateway.ClientID,
		tokenCache, cfg.Cache.TokenTTL, app.Metrics, app.Logger)

	var collections gateway.Collections = gateway.NewCollectionsClient(
		env, auth, cfg.Gateway.RequestTimeout, app.Metrics, app.Logger)
	if cfg.Cache.PreviewEnabled {
		collections = gateway.NewCachedCollections(collections, tokenCache, cfg.Cache.PreviewTTL)
	}

	var payouts gateway.Payouts = gateway.NewPayoutsClient(
		env, auth, cfg.Gateway.RequestTimeout, app.Metrics, app.Logger)

	if cfg.Gateway.LoggingEnabled {
		collections = gateway.NewLoggingCollections(collections, app.Logger)
		payouts = gateway.NewLoggingPayouts(payouts, app.Logger)
	}

	// --- Webhook reconciliation ---
	verifier := service.NewSignatureVerifier(cfg.Gateway.APIKey, cfg.Gateway.VerifySignature)

	var locker service.Locker
	if cfg.Webhook.LockDriver == "redis" {
		locker = service.NewRedisLocker(app.Redis, cfg.Webhook.LockTTL,
			cfg.Webhook.LockRetries, cfg.Webhook.LockRetryDelay)
	} else {
		locker = service.NewKeyedMutex()
	}

	notifier := service.NewStreamNotifier(infraRedis.NewStreamProducer(app.Redis), app.Logger)
	txManager := postgres.NewTxManager(app.Pool)

	reconciler := service.NewReconciler(verifier, webhookRepo, transactionRepo, locker, txManager, notifier,
		service.ReconcilerConfig{
			DuplicateWindow: cfg.Webhook.DuplicateWindow,
			DefaultCurrency: cfg.Gateway.Currency,
		}, app.Metrics, app.Logger)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:         app.Pool,
		RedisClient:  app.Redis,
		Collections:  collections,
		Payouts:      payouts,
		Transactions: transactionRepo,
		Reconciler:   reconciler,
		Metrics:      app.Metrics,
		Config:       cfg,
		Logger:       app.Logger,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
