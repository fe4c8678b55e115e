package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-order-lifecycle/internal/api"
	"github.com/example/ec-order-lifecycle/internal/api/middleware"
	"github.com/example/ec-order-lifecycle/internal/auth"
	"github.com/example/ec-order-lifecycle/internal/command"
	"github.com/example/ec-order-lifecycle/internal/config"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/kafka"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/logging"
	"github.com/example/ec-order-lifecycle/internal/metrics"
	"github.com/example/ec-order-lifecycle/internal/query"
	"github.com/example/ec-order-lifecycle/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "order-api"

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
	defer zap.RedirectStdLog(logger)()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.Bool("idempotency", cfg.RedisAddr != ""),
		zap.Bool("tracing", cfg.OTLPEndpoint != ""),
	)

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	pgStore := store.NewPostgresStore(db, logger)
	if err := pgStore.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("connected to PostgreSQL")

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer producer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	var reserver middleware.KeyReserver
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, idempotency keys will fail open", zap.Error(err))
		}
		reserver = middleware.NewRedisReserver(rdb, cfg.IdempotencyTTL)
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, 15*time.Minute)

	cmdHandler := command.NewHandler(pgStore, logger,
		command.WithPublisher(producer),
		command.WithMetrics(m),
	)
	queryHandler := query.NewHandler(pgStore)

	router := api.NewRouter(api.RouterConfig{
		Handlers:   api.NewHandlers(cmdHandler, queryHandler, logger),
		JWTService: jwtService,
		Reserver:   reserver,
		Metrics:    m,
		Gatherer:   reg,
		Health:     db.PingContext,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
