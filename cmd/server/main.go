package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xrl-go/xrl/internal/config"
	"github.com/xrl-go/xrl/log"
	"github.com/xrl-go/xrl/pkg/middleware"
	"github.com/xrl-go/xrl/rate_limiter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Logger().Fatal("Failed to load config", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	limit, retryAfter := buildLimit(redisClient, cfg.Limiter)

	r := chi.NewRouter()
	r.Get("/api/v1/hello", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("Hello, World!"))
	})

	handler := middleware.NewRateLimitHandler(r, &middleware.Config{
		Extractor:  middleware.NewHeaderKeyExtractor(cfg.Limiter.KeyHeader),
		Limit:      limit,
		RetryAfter: retryAfter,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Logger().Info("Running rate limited server",
			zap.String("addr", srv.Addr), zap.String("algorithm", cfg.Limiter.Algorithm))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Logger().Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Logger().Fatal("Failed to serve handler", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Logger().Error("Graceful shutdown failed", zap.Error(err))
	}
}

// buildLimit binds the configured algorithm and its parameters to the
// decision function the middleware consults, plus a Retry-After hint.
func buildLimit(client *redis.Client, cfg config.LimiterConfig) (middleware.LimitFunc, time.Duration) {
	switch cfg.Algorithm {
	case config.AlgorithmFixedWindow:
		limiter := rate_limiter.NewFixedWindow(client)
		limit := func(ctx context.Context, key string) (bool, error) {
			return limiter.TryAcquire(ctx, key, cfg.Limit, cfg.Window)
		}
		return limit, cfg.Window
	default:
		limiter := rate_limiter.NewTokenBucket(client)
		limit := func(ctx context.Context, key string) (bool, error) {
			return limiter.TryAcquire(ctx, key, cfg.Capacity, cfg.Rate)
		}
		retryAfter := time.Duration(0)
		if cfg.Rate > 0 {
			retryAfter = time.Duration(float64(time.Second) / cfg.Rate)
		}
		return limit, retryAfter
	}
}
