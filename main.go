package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pliu/offchat/internal/auth"
	"github.com/pliu/offchat/internal/config"
	"github.com/pliu/offchat/internal/handlers"
	"github.com/pliu/offchat/internal/store/redisstore"
	"github.com/pliu/offchat/internal/store/sqlstore"
	"github.com/pliu/offchat/internal/ws"
	"github.com/rs/zerolog"
)

var addr = flag.String("addr", "", "http service address (defaults to :$PORT)")

func main() {
	flag.Parse()
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	auth.SetSecret(cfg.CookieSecret)

	store, err := sqlstore.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("database connection failed")
	}
	defer store.Close()

	opts := []ws.Option{
		ws.WithStoreTimeout(cfg.StoreTimeout),
		ws.WithAllowedOrigins(cfg.AllowedOrigins),
	}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		presence, err := redisstore.NewPresenceCache(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer presence.Close()
		opts = append(opts, ws.WithPresenceCache(presence))
		logger.Info().Msg("presence mirrored to redis")
	}

	hub := ws.NewHub(store, logger, opts...)

	listen := *addr
	if listen == "" {
		listen = ":" + cfg.Port
	}
	srv := &http.Server{
		Addr:        listen,
		Handler:     handlers.NewRouter(store, hub, logger, cfg.AllowedOrigins),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", listen).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
}
