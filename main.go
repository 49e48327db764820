package main

import (
	"context"
	"flag"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"todo-api/api"
	"todo-api/auth"
	"todo-api/config"
	"todo-api/service"
	"todo-api/storage"
	"todo-api/validation"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("shutdown tracer provider")
		}
	}()

	var guard storage.WriteGuard = &storage.LocalGuard{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()
		guard = storage.NewRedisLease(rc, cfg.WriteLeaseKey, cfg.WriteLeaseTTL)
		logger.WithField("key", cfg.WriteLeaseKey).Info("writes guarded by redis lease")
	}

	cache := storage.NewCache(storage.NewFileStore(cfg.DataFile, logger), guard, cfg.CacheTTL, logger)
	users := storage.NewUserStore(cfg.UsersFile, guard, logger)

	validator, err := validation.New()
	if err != nil {
		logger.Fatalf("schemas: %v", err)
	}
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatalf("tokens: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e,
		service.New(cache, validator, logger),
		auth.NewService(users, tokens, validator, logger),
		logger,
	)

	logger.WithFields(log.Fields{
		"addr":      cfg.ListenAddr,
		"data_file": cfg.DataFile,
		"cache_ttl": cfg.CacheTTL.String(),
	}).Info("starting todo api")
	if err := e.Start(cfg.ListenAddr); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
