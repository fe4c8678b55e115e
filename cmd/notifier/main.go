package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/example/ec-order-lifecycle/internal/config"
	"github.com/example/ec-order-lifecycle/internal/email"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/kafka"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/logging"
	"github.com/example/ec-order-lifecycle/internal/notification"
	"github.com/example/ec-order-lifecycle/internal/tracing"
	"go.uber.org/zap"
)

const (
	serviceName   = "order-notifier"
	consumerGroup = "email-notifier" // Dedicated consumer group for email notifications
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(serviceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("notifier exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.ValidateNotifier(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	logger.Info("starting",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("group", consumerGroup),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
	)

	// PostgreSQL is read for recipient profiles only.
	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, store.NewPostgresStore(db, logger), logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	logger.Info("consuming events")
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}
