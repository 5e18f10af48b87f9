package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kursadbilgin/broadcast-engine/internal/broadcast"
	"github.com/kursadbilgin/broadcast-engine/internal/config"
	"github.com/kursadbilgin/broadcast-engine/internal/handler"
	"github.com/kursadbilgin/broadcast-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/broadcast-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/broadcast-engine/internal/infra/redis"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/provider"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
	"github.com/kursadbilgin/broadcast-engine/internal/ratelimit"
	"github.com/kursadbilgin/broadcast-engine/internal/repository"
	"github.com/kursadbilgin/broadcast-engine/internal/service"
	"github.com/kursadbilgin/broadcast-engine/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("broadcast-engine stopped with error", zap.Error(err))
	}
	logger.Info("broadcast-engine stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := migrations.Migrate(db); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	broker, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer broker.Close()

	registry, err := newStatusRegistry(cfg, rdb)
	if err != nil {
		return err
	}
	limiter, err := newRateLimiter(cfg, rdb)
	if err != nil {
		return err
	}

	gateway, err := provider.NewWhatsAppGatewayProvider(cfg.GatewayURL, cfg.GatewayToken)
	if err != nil {
		return err
	}

	engine, err := broadcast.NewEngine(
		registry,
		broadcast.NewPacer(cfg.MessageDelay, cfg.GroupDelay),
		cfg.GroupSize,
		cfg.StatusRetention,
		logger,
	)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	broadcasts := repository.NewGormBroadcastRepo(db)

	broadcastService, err := service.NewBroadcastService(
		broadcasts,
		engine,
		queue.NewRabbitMQPublisher(broker),
		logger,
	)
	if err != nil {
		return err
	}
	broadcastService.SetMetrics(metrics)

	worker, err := service.NewWorkerService(
		engine,
		broadcasts,
		queue.NewRabbitMQConsumer(broker, 1, logger),
		gateway,
		limiter,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "broadcast-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(fiberrecover.New())
	app.Use(metrics.HTTPMiddleware())
	app.Use(handler.CorrelationMiddleware())
	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterBroadcastRoutes(app, broadcastService); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("broadcast-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return worker.Start(groupCtx)
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newStatusRegistry(cfg *config.Config, rdb *redis.Client) (broadcast.StatusRegistry, error) {
	if cfg.StatusBackend == config.StatusBackendRedis {
		return infraredis.NewStatusRegistry(rdb, cfg.StatusOrphanTTL)
	}
	return broadcast.NewMemoryRegistry(), nil
}

func newRateLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.RateLimiter, error) {
	if cfg.RateLimitBackend == config.RateLimitBackendLocal {
		return ratelimit.NewLocalRateLimiter(cfg.RateLimitPerSec), nil
	}
	return infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
}
