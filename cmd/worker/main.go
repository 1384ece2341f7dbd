package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrischeks/order-management-API/internal/config"
	"github.com/chrischeks/order-management-API/internal/messaging"
	"github.com/chrischeks/order-management-API/internal/telemetry"
	"github.com/chrischeks/order-management-API/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "notification-worker", "0.1.0", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	consumer := messaging.NewConsumer(cfg.Kafka, messaging.OrderEventsTopic, "notification-worker")
	defer func() { _ = consumer.Close() }()

	notificationHandler := worker.NewNotificationHandler(cfg.EmailServiceURL, cfg.NotifyEmail, telemetry.NewHTTPClient(10*time.Second), logger)

	logger.Info("starting notification worker", "brokers", cfg.Kafka, "topic", messaging.OrderEventsTopic)

	if err := consumer.Consume(ctx, notificationHandler.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
