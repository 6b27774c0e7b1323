package main

import (
	"chatterbox/backend/internal/api"
	"chatterbox/backend/internal/api/handler"
	"chatterbox/backend/internal/chathub"
	"chatterbox/backend/internal/config"
	"chatterbox/backend/internal/localization"
	"chatterbox/backend/internal/logger"
	"chatterbox/backend/internal/storage"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func setupDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, *redis.Client, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RelayEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("relay enabled")
	}

	return db, rdb, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		// Logger is not configured yet.
		os.Stderr.WriteString("warning: reading .env: " + err.Error() + "\n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "chatterbox"})
	log.Info().Str("env", cfg.Env).Str("addr", cfg.Addr()).Msg("starting")

	db, rdb, err := setupDependencies(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect dependencies")
	}
	store := storage.NewStorageService(db, rdb)
	if err := store.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	localizer, err := localization.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("load locales")
	}

	opts := chathub.Options{
		StoreTimeout:          cfg.Chat.StoreTimeout,
		RetryInterval:         cfg.Chat.StoreRetryInterval,
		TypingTTL:             cfg.Chat.TypingTTL,
		HistoryLimit:          cfg.Chat.HistoryLimit,
		RequireKnownRecipient: cfg.Chat.RequireKnownRecipient,
		AnnouncePresence:      cfg.Chat.AnnouncePresence,
		AnnounceLang:          cfg.Chat.AnnounceLang,
		Localizer:             localizer,
		RelayChannel:          cfg.Redis.Channel,
	}
	if rdb != nil {
		opts.Bus = store
	}
	hub := chathub.NewManagerService(store, opts, logger.For("chathub"))

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(hub, handler.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenTTL:       cfg.Auth.TokenTTL,
		AllowedOrigins: cfg.WS.AllowedOrigins,
		SendBuffer:     cfg.WS.SendBuffer,
		MaxMessageSize: cfg.WS.MaxMessageSize,
	}, log)

	server := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        api.NewRouter(h, log),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped with error")
	}

	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
