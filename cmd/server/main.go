package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/tastegraph/config"
	"github.com/d60-Lab/tastegraph/internal/api"
	"github.com/d60-Lab/tastegraph/internal/api/handler"
	"github.com/d60-Lab/tastegraph/internal/cache"
	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/internal/service"
	"github.com/d60-Lab/tastegraph/pkg/auth"
	"github.com/d60-Lab/tastegraph/pkg/database"
	"github.com/d60-Lab/tastegraph/pkg/logger"
	"github.com/d60-Lab/tastegraph/pkg/tracing"
)

// @title tastegraph API
// @version 1.0
// @description Follow graph, follow requests and profile visibility.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	db, err := database.InitDB(cfg, model.All()...)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	var relCache *cache.RelationCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			// 缓存不可用时直接走数据库
			logger.Warn("redis unavailable, relation cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			relCache = cache.NewRelationCache(client, cfg.Redis.TTL)
		}
		cancel()
	}

	followRepo := repository.NewFollowRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	notifier := service.NewNotifier(notifRepo, profileRepo, cfg.Notify.QueueSize)
	stopNotifier := notifier.Start(cfg.Notify.Workers)

	follows := service.NewFollowService(followRepo, profileRepo, relCache, notifier)
	h := handler.New(
		follows,
		service.NewProfileService(profileRepo, follows),
		service.NewNotificationService(notifRepo),
		service.NewVisibilityResolver(profileRepo, follows),
		func(ctx context.Context) error { return database.Ping(ctx, db) },
	)
	verifier := auth.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg, h, verifier),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.Bool("cache", relCache != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := stopNotifier(ctx); err != nil {
		logger.Warn("notifier did not drain", zap.Int("pending", notifier.QueueLen()), zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}
