package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/adapter/kalshi"
	"github.com/marketmux/marketmux/internal/adapter/poly"
	"github.com/marketmux/marketmux/internal/aggregate"
	"github.com/marketmux/marketmux/internal/cache"
	"github.com/marketmux/marketmux/internal/config"
	"github.com/marketmux/marketmux/internal/market"
	"github.com/marketmux/marketmux/internal/server"
	"github.com/marketmux/marketmux/internal/ws"
)

func main() {
	_ = godotenv.Load() // best-effort

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("addr", cfg.Server.Addr).Msg("marketmux starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	c := cache.New(cache.NewRedisStore(rdb), cfg.Cache.DefaultTTL(), log)

	kalshiAdapter := kalshi.New(kalshi.Config{
		BaseURL:  cfg.Kalshi.BaseURL,
		Email:    cfg.Kalshi.Email,
		Password: cfg.Kalshi.Password,
		Timeout:  time.Duration(cfg.Kalshi.TimeoutSec) * time.Second,
	}, log)

	polyAdapter := poly.New(poly.Config{
		BaseURL: cfg.Polymarket.BaseURL,
		APIKey:  cfg.Polymarket.APIKey,
		Timeout: time.Duration(cfg.Polymarket.TimeoutSec) * time.Second,
	}, log)

	sources := map[market.Source]adapter.Source{
		market.SourceKalshi:     kalshiAdapter,
		market.SourcePolymarket: polyAdapter,
	}

	agg := aggregate.New(kalshiAdapter, polyAdapter, c, aggregate.TTLs{
		Markets:    cfg.Cache.MarketsTTL(),
		Market:     cfg.Cache.MarketTTL(),
		Categories: cfg.Cache.CategoriesTTL(),
		Stats:      cfg.Cache.StatsTTL(),
	}, log)

	hub := ws.NewHub(sources, cfg.WS.HeartbeatInterval(), cfg.WS.RefreshInterval(), log)
	go hub.Run(ctx)

	limiter := server.NewRateLimiter(cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests)
	srv := server.New(agg, sources, hub, limiter, log)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
