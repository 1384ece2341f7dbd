package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/chrischeks/order-management-API/internal/auth"
	"github.com/chrischeks/order-management-API/internal/config"
	"github.com/chrischeks/order-management-API/internal/envelope"
	"github.com/chrischeks/order-management-API/internal/messaging"
	"github.com/chrischeks/order-management-API/internal/middleware"
	"github.com/chrischeks/order-management-API/internal/orders"
	"github.com/chrischeks/order-management-API/internal/payment"
	"github.com/chrischeks/order-management-API/internal/sealer"
	"github.com/chrischeks/order-management-API/internal/telemetry"
)

const (
	serviceName    = "orders"
	serviceVersion = "0.1.0"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.IsDev() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, "postgres", cfg.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	secrets, err := sealer.New(cfg.EncryptionKey, cfg.SigningKey)
	if err != nil {
		logger.Error("failed to initialize sealer", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenVerifier(cfg.JWTPublicKey, cfg.JWTIssuer, cfg.ReferralJWTSecret)
	if err != nil {
		logger.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	var publisher orders.Publisher
	if len(cfg.Kafka) > 0 {
		producer := messaging.NewProducer(cfg.Kafka, messaging.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	var locker orders.Locker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, sweeps are not coordinated", "error", err)
		}
		locker = orders.NewRedisLocker(rdb)
	}

	validator, err := orders.NewValidator(cfg.ProductNames, cfg.Pricing)
	if err != nil {
		logger.Error("failed to initialize validator", "error", err)
		os.Exit(1)
	}

	repo := orders.NewOrderRepository(db, secrets)
	service, err := orders.NewService(repo, validator, tokens, publisher, orders.SettingsFromConfig(cfg), logger)
	if err != nil {
		logger.Error("failed to initialize order service", "error", err)
		os.Exit(1)
	}

	verifier, err := payment.NewVerifier(repo, service, cfg.PaystackSecret, logger)
	if err != nil {
		logger.Error("failed to initialize webhook verifier", "error", err)
		os.Exit(1)
	}

	writer := envelope.NewWriter(logger, cfg.IsDev())
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustedProxies)
	webhookLimiter := middleware.NewRateLimiter(cfg.WebhookRateLimitRPS, cfg.WebhookRateLimitBurst, cfg.TrustedProxies)

	app := &routes{
		orders:         orders.NewHandler(service, logger),
		payments:       payment.NewHandler(verifier, logger),
		guard:          auth.NewMiddleware(tokens, writer, logger),
		writer:         writer,
		limiter:        limiter,
		webhookLimiter: webhookLimiter,
		metrics:        metricsHandler,
		db:             db,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.NewServerHandler(app.mux(), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	sweeper := orders.NewSweeper(service, locker, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)
	go limiter.Run(ctx)
	go webhookLimiter.Run(ctx)

	go func() {
		logger.Info("starting orders service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
