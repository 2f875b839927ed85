// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"purchase-entitlement-service/internal/config"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	identityAdapters "purchase-entitlement-service/internal/infra/adapters/identity"
	mailAdapters "purchase-entitlement-service/internal/infra/adapters/mailer"
	procAdapters "purchase-entitlement-service/internal/infra/adapters/processor"
	pg "purchase-entitlement-service/internal/infra/db/postgres"
	"purchase-entitlement-service/internal/infra/logging"
	"purchase-entitlement-service/internal/infra/metrics"
	red "purchase-entitlement-service/internal/infra/redis"
	"purchase-entitlement-service/internal/infra/sched"
	"purchase-entitlement-service/internal/infra/web"
	"purchase-entitlement-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop external adapters)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	dedupe := red.NewDeliveryDedupe(redisClient, cfg.Redis.DedupeTTL)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	intentRepo := pg.NewPurchaseIntentRepo(pool)
	profileRepo := pg.NewEntitlementProfileRepo(pool)
	recordRepo := pg.NewSubscriptionRecordRepo(pool)

	// ---- Adapters ----
	var identity adapter.IdentityProvider
	var notifier adapter.FulfillmentNotifier
	var gateway adapter.ProcessorGateway
	if cfg.Runtime.Dev {
		identity = identityAdapters.NewNoopIdentityProvider()
		notifier = mailAdapters.NewNoopNotifier()
		gateway = procAdapters.NewNoopGateway()
	} else {
		identity, err = identityAdapters.NewHTTPIdentityProvider(cfg.Identity.BaseURL, cfg.Identity.ServiceKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("identity adapter")
		}
		notifier, err = mailAdapters.NewPostmarkNotifier(cfg.Mailer.PostmarkToken, cfg.Mailer.FromEmail)
		if err != nil {
			logger.Fatal().Err(err).Msg("mailer adapter")
		}
		gateway, err = procAdapters.NewMercadoPagoGateway(cfg.Processors.MercadoPago.AccessToken, cfg.Processors.MercadoPago.BaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("mercadopago gateway")
		}
	}

	// ---- Use cases ----
	matcher := usecase.NewOrderMatcher(intentRepo, logger)
	provisioner := usecase.NewAccountProvisioner(identity, profileRepo, recordRepo, logger)
	pipeline := usecase.NewWebhookPipeline(intentRepo, matcher, provisioner, dedupe, notifier, txm, logger)
	tokens := web.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	verifier := usecase.NewAccessVerifier(intentRepo, provisioner, tokens, logger)
	profiles := usecase.NewProfileViewer(profileRepo, recordRepo)

	// ---- Reconciler ----
	reconciler := sched.NewIntentReconciler(
		intentRepo, gateway, pipeline,
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.BatchSize,
		logger,
	)
	go reconciler.Start(ctx)

	// ---- HTTP server ----
	server := web.NewServer(
		pipeline, verifier, profiles,
		web.MercadoPagoDeps{Gateway: gateway},
		cfg.Processors.Cakto.WebhookSecret,
		cfg.Processors.Cakto.ProductPlans,
		limiter, tokens,
		cfg.Server.AllowedOrigin,
		cfg.Runtime.Dev,
		logger,
	)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
