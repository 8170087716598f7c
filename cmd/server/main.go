package main // Entry point package

import (
	"context"   // shutdown and startup deadlines
	"errors"    // server closed detection
	"net/http"  // http.ErrServerClosed
	"os/signal" // SIGINT/SIGTERM handling
	"syscall"   // signal numbers
	"time"      // timeouts

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's bundled middleware
	"go.uber.org/zap"                               // structured log fields

	"github.com/iliyamo/phillboard/internal/config"     // Internal config loader
	"github.com/iliyamo/phillboard/internal/database"   // MySQL connection and schema
	"github.com/iliyamo/phillboard/internal/economy"    // placement and edit economy
	"github.com/iliyamo/phillboard/internal/handler"    // HTTP handlers
	"github.com/iliyamo/phillboard/internal/logger"     // zap logger
	"github.com/iliyamo/phillboard/internal/middleware" // cache, rate limit and request logging
	"github.com/iliyamo/phillboard/internal/model"      // change events
	"github.com/iliyamo/phillboard/internal/queue"      // change feed consumer
	"github.com/iliyamo/phillboard/internal/repository" // DB repositories
	"github.com/iliyamo/phillboard/internal/router"     // Internal router setup
	"github.com/iliyamo/phillboard/internal/service"    // change feed publisher
)

func main() {
	cfg := config.Load() // Load environment config

	if err := logger.Initialize(logger.Config{
		Debug:     cfg.LogDebug,
		SentryDSN: cfg.SentryDSN,
		Tags:      map[string]string{"app": "phillboard", "env": cfg.Env},
	}); err != nil {
		panic(err)
	}
	defer logger.Sync(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal("migrate database", zap.Error(err))
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	boards := repository.NewPhillboardRepo(db)
	balances := repository.NewBalanceRepo(db)
	history := repository.NewHistoryRepo(db, cfg.CreatorShare)

	// A typed nil *RabbitPublisher would not compare equal to a nil
	// interface, so the publisher is only assigned when configured.
	var events economy.EventPublisher
	if cfg.RabbitMQURL != "" {
		pub := service.NewRabbitPublisher(cfg.RabbitMQURL)
		defer pub.Close()
		events = pub
	} else {
		logger.Warn("RABBITMQ_URL not set, change feed disabled")
	}

	svc := economy.NewService(boards, balances, history, events, economy.Config{
		NearTolerance: cfg.NearTolerance,
		CreatorShare:  cfg.CreatorShare,
	})

	// Redis backs the response cache and the rate limiter; both are
	// skipped when it is unreachable.
	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover()) // inside the logger so recovered panics are logged as 500s

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, balances), cfg.JWTSecret)
	router.RegisterEconomy(e, router.Economy{
		Phillboards: handler.NewPhillboardHandler(svc),
		Balances:    handler.NewBalanceHandler(svc),
		Leaderboard: handler.NewLeaderboardHandler(history),
		Cache:       middleware.NewRedisCache(cacheCfg, rdb),
		Limit:       middleware.NewTokenBucket(rlCfg, rdb),
	}, cfg.JWTSecret)

	// Cached listings go stale on every change, so the consumer drops them.
	if cfg.RabbitMQURL != "" && rdb != nil {
		consumer := queue.NewConsumer(cfg.RabbitMQURL, func(ctx context.Context, ev model.PhillboardChangedEvent) error {
			n, err := middleware.PurgeResponseCache(ctx, rdb, cacheCfg)
			if err != nil {
				return err
			}
			logger.Debug("response cache purged",
				zap.String("type", string(ev.Type)), zap.String("phillboard_id", ev.PhillboardID), zap.Int64("keys", n))
			return nil
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(err, zap.String("component", "change consumer"))
			}
		}()
	}

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("step", "shutdown"))
	}
}
