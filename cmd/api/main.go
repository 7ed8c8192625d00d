package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sobacalgary/backoffice/api/routes"
	"github.com/sobacalgary/backoffice/internal/auth"
	"github.com/sobacalgary/backoffice/internal/donations"
	"github.com/sobacalgary/backoffice/internal/members"
	"github.com/sobacalgary/backoffice/internal/membership"
	"github.com/sobacalgary/backoffice/internal/store"
	stripewebhook "github.com/sobacalgary/backoffice/internal/webhooks/stripe"
	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/sobacalgary/backoffice/pkg/db"
	"github.com/sobacalgary/backoffice/pkg/env"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/metrics"
	"github.com/sobacalgary/backoffice/pkg/migrate"
	"github.com/sobacalgary/backoffice/pkg/outbox"
	"github.com/sobacalgary/backoffice/pkg/redis"
	"github.com/sobacalgary/backoffice/pkg/stripe"
)

const webhookIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	memberRepo := members.NewRepository(dbClient.DB())
	donationRepo := donations.NewRepository(dbClient.DB())
	storeRepo := store.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	if err := auth.EnsureSeedAdmin(context.Background(), cfg.Admin, cfg.Password, dbClient, memberRepo, logg); err != nil {
		logg.Error(context.Background(), "failed to seed admin account", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Logger:    logg,
		Members:   memberRepo,
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	membershipService, err := membership.NewService(membership.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     memberRepo,
		Provider: stripeClient,
		Outbox:   outboxService,
		Metrics:  paymentMetrics,
		Checkout: cfg.Checkout,
		Password: cfg.Password,
		Timeout:  cfg.Stripe.Timeout,
		BaseURL:  cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership service", err)
		os.Exit(1)
	}

	donationService, err := donations.NewService(donations.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     donationRepo,
		Provider: stripeClient,
		Outbox:   outboxService,
		Metrics:  paymentMetrics,
		Checkout: cfg.Checkout,
		Timeout:  cfg.Stripe.Timeout,
		BaseURL:  cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create donation service", err)
		os.Exit(1)
	}

	storeService, err := store.NewService(store.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     storeRepo,
		Provider: stripeClient,
		Outbox:   outboxService,
		Metrics:  paymentMetrics,
		Checkout: cfg.Checkout,
		Timeout:  cfg.Stripe.Timeout,
		BaseURL:  cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create store service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Logger:     logg,
		Membership: membershipService,
		Donations:  donationService,
		Orders:     storeService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:            cfg,
		Logger:            logg,
		DB:                dbClient,
		Redis:             redisClient,
		StripeClient:      stripeClient,
		AuthService:       authService,
		MembershipService: membershipService,
		DonationService:   donationService,
		StoreService:      storeService,
		MemberRepo:        memberRepo,
		DonationRepo:      donationRepo,
		StoreRepo:         storeRepo,
		WebhookService:    webhookService,
		WebhookGuard:      webhookGuard,
	})

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error draining api server", err)
		}
	}
}
