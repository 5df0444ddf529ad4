package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/transactflow/internal/api"
	"github.com/punchamoorthee/transactflow/internal/auth"
	"github.com/punchamoorthee/transactflow/internal/config"
	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/punchamoorthee/transactflow/internal/events"
	"github.com/punchamoorthee/transactflow/internal/ratelimit"
	"github.com/punchamoorthee/transactflow/internal/service"
	"github.com/punchamoorthee/transactflow/internal/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize Layers
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := seedAccounts(ctx, cfg, st, logger); err != nil {
		return err
	}

	limiter, ready, closeLimiter, err := openLimiter(cfg, st)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("publishing transfer events", "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	transfers := service.NewTransferService(st, publisher, logger, service.WithMaxAttempts(cfg.TransferMaxAttempts))
	queries := service.NewQueryService(st, st)

	handler := api.NewRouter(api.RouterConfig{
		Handler:  api.NewHandler(transfers, queries, tokens, logger),
		Resolver: tokens,
		Limiter:  limiter,
		Admission: api.AdmissionConfig{
			Default:     ratelimit.PerMinute("default", cfg.RateLimit.DefaultCapacity, cfg.RateLimit.DefaultRefillPerMinute),
			Auth:        ratelimit.PerMinute("auth", cfg.RateLimit.AuthCapacity, cfg.RateLimit.AuthRefillPerMinute),
			AuthPrefix:  cfg.RateLimit.AuthPrefix,
			Unthrottled: cfg.RateLimit.Unthrottled,
		},
		Logger:  logger,
		Ready:   ready,
		DevMode: cfg.DevMode,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreBackend, "rate_limit", cfg.RateLimit.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store, data will not survive a restart")
		return store.NewMemoryStore(), nil
	}

	if cfg.MigrateOnStart {
		if err := store.Migrate(cfg.DBSource); err != nil {
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	return store.NewPostgresStore(ctx, cfg.DBSource)
}

// openLimiter returns the configured limiter, a readiness probe covering the
// store and limiter backends, and a closer.
func openLimiter(cfg *config.Config, st store.Store) (ratelimit.Limiter, func(context.Context) error, func(), error) {
	if cfg.RateLimit.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		ready := func(ctx context.Context) error {
			if err := st.Ping(ctx); err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		}
		limiter := ratelimit.NewRedisLimiter(client)
		return limiter, ready, func() { _ = limiter.Close() }, nil
	}

	reg, err := ratelimit.NewRegistry(cfg.RateLimit.MaxKeys)
	if err != nil {
		return nil, nil, nil, err
	}
	return reg, st.Ping, func() {}, nil
}

func seedAccounts(ctx context.Context, cfg *config.Config, st store.AccountStore, logger *slog.Logger) error {
	if !cfg.DevMode {
		return nil
	}
	seeds, err := cfg.SeedAccounts()
	if err != nil {
		return err
	}
	for _, s := range seeds {
		if _, err := st.GetAccount(ctx, s.Identity); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		if err := st.CreateAccount(ctx, &domain.Account{Identity: s.Identity, Balance: s.Balance, Active: true}); err != nil {
			return err
		}
		logger.Info("seeded account", "identity", s.Identity, "balance", s.Balance.StringFixed(2))
	}
	return nil
}
