package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aranyaherbals/storefront-backend/api/routes"
	"github.com/aranyaherbals/storefront-backend/internal/coins"
	"github.com/aranyaherbals/storefront-backend/internal/coupons"
	"github.com/aranyaherbals/storefront-backend/internal/fulfillment"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/internal/payments"
	"github.com/aranyaherbals/storefront-backend/internal/realtime"
	"github.com/aranyaherbals/storefront-backend/pkg/config"
	"github.com/aranyaherbals/storefront-backend/pkg/db"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/metrics"
	"github.com/aranyaherbals/storefront-backend/pkg/migrate"
	"github.com/aranyaherbals/storefront-backend/pkg/outbox"
	"github.com/aranyaherbals/storefront-backend/pkg/razorpay"
	"github.com/aranyaherbals/storefront-backend/pkg/redis"
	"github.com/aranyaherbals/storefront-backend/pkg/shiprocket"
)

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	providerMetrics := metrics.NewProviderMetrics(registry)

	razorpayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg, providerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	shiprocketClient, err := shiprocket.NewClient(cfg.Shiprocket, logg, providerMetrics,
		shiprocket.WithTokenCache(redisClient, redisClient.CarrierTokenKey(cfg.Shiprocket.Email)))
	if err != nil {
		logg.Error(context.Background(), "failed to create shiprocket client", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	couponSvc, err := coupons.NewService(coupons.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	coinSvc, err := coins.NewService(coins.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create coin service", err)
		os.Exit(1)
	}

	orderSvc, err := orders.NewService(
		dbClient,
		orders.NewRepository(dbClient.DB()),
		couponSvc,
		coinSvc,
		outboxSvc,
		logg,
		cfg.Checkout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	paymentSvc, err := payments.NewService(
		dbClient,
		payments.NewRepository(dbClient.DB()),
		orderSvc,
		razorpayClient,
		outboxSvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	fulfillmentSvc, err := fulfillment.NewService(
		dbClient,
		fulfillment.NewRepository(dbClient.DB()),
		orderSvc,
		shiprocketClient,
		outboxSvc,
		logg,
		cfg.Shiprocket,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	// Cancellation reaches the carrier through the ledger; wired after
	// construction because fulfillment already depends on orders.
	orderSvc.SetShipmentCanceller(fulfillmentSvc)

	hub := realtime.NewHub(cfg.Realtime, logg)
	subscriber, err := realtime.NewSubscriber(redisClient, hub, logg, cfg.Realtime)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime subscriber", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go subscriber.Run(runCtx)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			redisClient,
			orderSvc,
			paymentSvc,
			fulfillmentSvc,
			coinSvc,
			hub,
			registry,
		),
	}

	go func() {
		<-runCtx.Done()
		hub.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
