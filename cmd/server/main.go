package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/iliyamo/studentdesk/internal/cache"
	"github.com/iliyamo/studentdesk/internal/config"
	"github.com/iliyamo/studentdesk/internal/database"
	"github.com/iliyamo/studentdesk/internal/handler"
	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/middleware"
	"github.com/iliyamo/studentdesk/internal/queue"
	"github.com/iliyamo/studentdesk/internal/repository"
	"github.com/iliyamo/studentdesk/internal/router"
	queue_publisher "github.com/iliyamo/studentdesk/internal/service"
	"github.com/iliyamo/studentdesk/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := config.Load()
	logger := logging.New(cfg.Env, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	mongoClient, db, err := database.Open(ctx, cfg.MongoURI, cfg.MongoDB, cfg.StoreTimeout)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	if err := database.EnsureUserIndexes(ctx, db); err != nil {
		log.Fatalf("mongo: %v", err)
	}
	users := repository.NewUserRepo(db.Collection(database.UsersCollection), cfg.BcryptCost, cfg.StoreTimeout)

	// Redis is optional: without it profiles are read from the store on
	// every request and the grant-based token endpoints refuse to issue.
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		logger.Warn(ctx, "redis unavailable, running without cache", "err", err)
		rdb = nil
	}

	profiles := cache.NewProfileCache(rdb, users, config.LoadProfileCacheConfig(), logger)
	grants := cache.NewGrants(rdb, cfg.RecoveryGrantTTL)

	eventsCfg := config.LoadEventsConfig()
	events := queue_publisher.New(eventsCfg, logger)
	consumerDone := make(chan struct{})
	if eventsCfg.Enabled {
		go func() {
			defer close(consumerDone)
			_ = queue.NewConsumer(eventsCfg, profiles, logger).Run(ctx)
		}()
	} else {
		close(consumerDone)
	}

	e := router.New(logger)
	router.RegisterRoutes(e, &handler.ReadyHandler{Checks: readinessChecks(mongoClient.Ping, rdb)})
	router.RegisterAuth(e,
		handler.NewAuthHandler(users, tokens, grants, events, logger, cfg.BcryptCost),
		handler.NewRecoveryHandler(users, grants, logger, cfg.JWTSecret, cfg.BcryptCost),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
	)
	router.RegisterAccount(e,
		handler.NewProfileHandler(users, profiles, events, logger),
		tokens,
		middleware.NewTokenBucket(config.LoadAccountRateLimitConfig(), rdb, logger),
	)

	addr := ":" + cfg.Port
	go func() {
		logger.Info(ctx, "listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown", "err", err)
	}
	<-consumerDone
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error(shutdownCtx, "redis close", "err", err)
		}
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "mongo disconnect", "err", err)
	}
}

func readinessChecks(mongoPing func(context.Context, *readpref.ReadPref) error, rdb *redis.Client) map[string]handler.CheckFunc {
	checks := map[string]handler.CheckFunc{
		"mongo": func(ctx context.Context) error { return mongoPing(ctx, readpref.Primary()) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
