package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env        string `mapstructure:"env"`
	LogLevel   string `mapstructure:"log_level"`
	Server     ServerConfig
	Kalshi     KalshiConfig
	Polymarket PolymarketConfig
	Redis      RedisConfig
	Cache      CacheConfig
	WS         WSConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// KalshiConfig holds Kalshi upstream settings.
type KalshiConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Email      string `mapstructure:"email"`
	Password   string `mapstructure:"password"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// PolymarketConfig holds Polymarket upstream settings.
type PolymarketConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds per-read cache lifetimes, in seconds.
type CacheConfig struct {
	DefaultTTLSec    int `mapstructure:"default_ttl_sec"`
	MarketTTLSec     int `mapstructure:"market_ttl_sec"`
	MarketsTTLSec    int `mapstructure:"markets_ttl_sec"`
	CategoriesTTLSec int `mapstructure:"categories_ttl_sec"`
	StatsTTLSec      int `mapstructure:"stats_ttl_sec"`
}

// WSConfig holds the broadcaster's tick intervals, in seconds.
type WSConfig struct {
	HeartbeatIntervalSec int `mapstructure:"heartbeat_interval_sec"`
	RefreshIntervalSec   int `mapstructure:"refresh_interval_sec"`
}

// RateLimitConfig holds the fixed-window rate limiter settings.
type RateLimitConfig struct {
	WindowSec   int `mapstructure:"window_sec"`
	MaxRequests int `mapstructure:"max_requests"`
}

// Duration helpers so callers do not repeat the seconds-to-Duration dance.

func (c CacheConfig) DefaultTTL() time.Duration { return secs(c.DefaultTTLSec) }

func (c CacheConfig) MarketTTL() time.Duration { return secs(c.MarketTTLSec) }

func (c CacheConfig) MarketsTTL() time.Duration { return secs(c.MarketsTTLSec) }

func (c CacheConfig) CategoriesTTL() time.Duration { return secs(c.CategoriesTTLSec) }

func (c CacheConfig) StatsTTL() time.Duration { return secs(c.StatsTTLSec) }

func (w WSConfig) HeartbeatInterval() time.Duration { return secs(w.HeartbeatIntervalSec) }

func (w WSConfig) RefreshInterval() time.Duration { return secs(w.RefreshIntervalSec) }

func (r RateLimitConfig) Window() time.Duration { return secs(r.WindowSec) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// Load reads configuration from environment variables prefixed with MARKETMUX_.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETMUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	// Server defaults
	v.SetDefault("server.addr", ":8080")

	// Kalshi defaults
	v.SetDefault("kalshi.base_url", "https://trading-api.kalshi.com/trade-api/v2")
	v.SetDefault("kalshi.timeout_sec", 30)

	// Polymarket defaults
	v.SetDefault("polymarket.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.timeout_sec", 30)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.default_ttl_sec", 60)
	v.SetDefault("cache.market_ttl_sec", 15)
	v.SetDefault("cache.markets_ttl_sec", 30)
	v.SetDefault("cache.categories_ttl_sec", 300)
	v.SetDefault("cache.stats_ttl_sec", 60)

	// WebSocket defaults
	v.SetDefault("ws.heartbeat_interval_sec", 30)
	v.SetDefault("ws.refresh_interval_sec", 30)

	// Rate limit defaults
	v.SetDefault("ratelimit.window_sec", 900)
	v.SetDefault("ratelimit.max_requests", 100)

	cfg := &Config{}

	cfg.Env = v.GetString("env")
	cfg.LogLevel = v.GetString("log_level")

	cfg.Server = ServerConfig{
		Addr: v.GetString("server.addr"),
	}

	cfg.Kalshi = KalshiConfig{
		BaseURL:    v.GetString("kalshi.base_url"),
		Email:      v.GetString("kalshi.email"),
		Password:   v.GetString("kalshi.password"),
		TimeoutSec: v.GetInt("kalshi.timeout_sec"),
	}

	cfg.Polymarket = PolymarketConfig{
		BaseURL:    v.GetString("polymarket.base_url"),
		APIKey:     v.GetString("polymarket.api_key"),
		TimeoutSec: v.GetInt("polymarket.timeout_sec"),
	}

	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	cfg.Cache = CacheConfig{
		DefaultTTLSec:    v.GetInt("cache.default_ttl_sec"),
		MarketTTLSec:     v.GetInt("cache.market_ttl_sec"),
		MarketsTTLSec:    v.GetInt("cache.markets_ttl_sec"),
		CategoriesTTLSec: v.GetInt("cache.categories_ttl_sec"),
		StatsTTLSec:      v.GetInt("cache.stats_ttl_sec"),
	}

	cfg.WS = WSConfig{
		HeartbeatIntervalSec: v.GetInt("ws.heartbeat_interval_sec"),
		RefreshIntervalSec:   v.GetInt("ws.refresh_interval_sec"),
	}

	cfg.RateLimit = RateLimitConfig{
		WindowSec:   v.GetInt("ratelimit.window_sec"),
		MaxRequests: v.GetInt("ratelimit.max_requests"),
	}

	return cfg, nil
}
