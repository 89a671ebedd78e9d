package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/saldo-pay/saldo/internal/config"
	"github.com/saldo-pay/saldo/internal/identity"
	"github.com/saldo-pay/saldo/internal/infra"
	"github.com/saldo-pay/saldo/internal/ledger"
	"github.com/saldo-pay/saldo/internal/logging"
	"github.com/saldo-pay/saldo/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, infra.PostgresOptions{
			URL:             cfg.DatabaseURL,
			MaxConns:        int32(cfg.DBPool.MaxConns),
			MinConns:        int32(cfg.DBPool.MinConns),
			MaxConnLifetime: cfg.DBPool.MaxConnLifetime,
			MaxConnIdleTime: cfg.DBPool.MaxConnIdleTime,
			Location:        cfg.Location,
		})
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := migrate(ctx, db, cfg, logger); err != nil {
			logger.Error("migrate", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, infra.RedisOptions{
			URL:          cfg.RedisURL,
			ClientName:   cfg.AppName,
			DialTimeout:  cfg.Redis.Dial,
			ReadTimeout:  cfg.Redis.Read,
			WriteTimeout: cfg.Redis.Write,
		})
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, idempotency and login rate limiting disabled")
	}

	srv, err := server.New(cfg, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// migrate applies the schemas and seeds the configured administrator.
func migrate(ctx context.Context, db *pgxpool.Pool, cfg config.Config, logger *slog.Logger) error {
	if err := ledger.NewPostgresStore(db).Migrate(ctx); err != nil {
		return err
	}
	users := identity.NewPostgresRepository(db)
	if err := users.Migrate(ctx); err != nil {
		return fmt.Errorf("apply identity schema: %w", err)
	}
	return identity.NewService(users, logger).EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
}
