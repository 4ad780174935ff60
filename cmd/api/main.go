package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estoque-vendas/internal/config"
	"estoque-vendas/internal/database"
	"estoque-vendas/internal/logger"
	custommiddleware "estoque-vendas/internal/middleware"
	"estoque-vendas/internal/repository"
	"estoque-vendas/internal/repository/memory"
	"estoque-vendas/internal/server"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// In-flight sales get 30 seconds to commit or roll back
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

// openStore returns the persistence gateway for the configured driver
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, *database.Service, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("Using in-memory store, data is lost on restart")
		store := memory.NewStore()
		if err := database.Seed(ctx, store, log); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	dbService, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Database health check", zap.Any("health", dbService.Health(ctx)))

	if err := database.RunMigrations(dbService.DB().DB, log); err != nil {
		dbService.Close()
		return nil, nil, err
	}

	store := repository.NewStore(dbService.DB())
	if cfg.Database.Seed {
		if err := database.Seed(ctx, store, log); err != nil {
			dbService.Close()
			return nil, nil, err
		}
	}
	return store, dbService, nil
}

// rateLimiter picks the shared redis limiter when redis answers, the local one otherwise
func rateLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) (func(http.Handler) http.Handler, *redis.Client) {
	limitCfg := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "estoque_vendas:rate_limit",
	}

	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured, using in-process rate limiter")
		return custommiddleware.LocalRateLimitMiddleware(limitCfg, log), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unreachable, using in-process rate limiter", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		_ = client.Close()
		return custommiddleware.LocalRateLimitMiddleware(limitCfg, log), nil
	}

	log.Info("Using redis rate limiter", zap.String("addr", cfg.Redis.Addr()))
	return custommiddleware.RateLimitMiddleware(client, limitCfg, log), client
}

func main() {
	// prices and totals go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx := context.Background()

	if len(os.Args) > 1 && os.Args[1] == "migrate-status" {
		dbService, err := database.New(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer dbService.Close()
		if err := database.GetMigrationStatus(dbService.DB().DB); err != nil {
			log.Fatal("Failed to read migration status", zap.Error(err))
		}
		return
	}

	log.Info("Starting estoque-vendas API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	store, dbService, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}

	limiter, redisClient := rateLimiter(ctx, cfg, log)

	opts := server.Options{
		Store:     store,
		RateLimit: limiter,
		OnClose: func() error {
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					log.Error("Failed to close redis client", zap.Error(err))
				}
			}
			if dbService != nil {
				return dbService.Close()
			}
			return nil
		},
	}
	if dbService != nil {
		opts.Health = dbService
	}

	srv := server.NewServer(cfg, log, opts)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
