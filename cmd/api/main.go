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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	pricingRepo := pricing.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())

	pricingService, err := pricing.NewService(pricingRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	deliveryStore, err := delivery.NewStore(dbClient.DB(), dbClient, cfg.Delivery)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery settings store", err)
		os.Exit(1)
	}
	deliveryCalc, err := delivery.NewCalculator(deliveryStore)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery calculator", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, catalogRepo, pricingService, deliveryCalc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	// Payments stranded by an unclean shutdown are failed before the pool
	// starts taking new work.
	if err := payments.SweepStranded(context.Background(), paymentsRepo, logg); err != nil {
		logg.Error(context.Background(), "failed to sweep stranded payments", err)
		os.Exit(1)
	}

	settlementPool, err := payments.NewPool(cfg.Settlement, paymentsRepo, dbClient, settlementMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement pool", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(paymentsRepo, ordersRepo, settlementPool, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	poolCtx, cancelPool := context.WithCancel(context.Background())
	settlementPool.Start(poolCtx)

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
			dbClient,
			redisClient,
			ordersService,
			paymentsService,
			deliveryStore,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Settlement.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, server.Shutdown(shutdownCtx))
	shutdownErr = multierr.Append(shutdownErr, settlementPool.Shutdown(shutdownCtx))
	cancelPool()
	shutdownErr = multierr.Append(shutdownErr, redisClient.Close())
	shutdownErr = multierr.Append(shutdownErr, dbClient.Close())
	if shutdownErr != nil {
		logg.Error(ctx, "shutdown finished with errors", shutdownErr)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}
