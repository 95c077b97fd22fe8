// Package server is the HTTP front door: JSON handlers over the aggregation
// engine, the WebSocket hub mount, health and metrics endpoints, and the
// rate-limit middleware.
package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/aggregate"
	"github.com/marketmux/marketmux/internal/market"
	"github.com/marketmux/marketmux/internal/metrics"
)

// Server wires the HTTP routes to the aggregator and the source adapters.
type Server struct {
	agg     *aggregate.Aggregator
	sources map[market.Source]adapter.Source
	hub     http.Handler
	limiter *RateLimiter
	log     zerolog.Logger
	start   time.Time
	now     func() time.Time
}

// New creates a Server. hub may be nil when the WebSocket surface is not
// mounted (tests).
func New(agg *aggregate.Aggregator, sources map[market.Source]adapter.Source, hub http.Handler, limiter *RateLimiter, log zerolog.Logger) *Server {
	return &Server{
		agg:     agg,
		sources: sources,
		hub:     hub,
		limiter: limiter,
		log:     log.With().Str("component", "server").Logger(),
		start:   time.Now(),
		now:     time.Now,
	}
}

// Handler builds the route table. Market routes sit behind the rate limiter;
// health, metrics and the WebSocket upgrade do not.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /markets", s.handleMarkets)
	s.route(mux, "GET /markets/trending", s.handleTrending)
	s.route(mux, "GET /markets/search", s.handleSearch)
	s.route(mux, "GET /markets/categories", s.handleCategories)
	s.route(mux, "GET /markets/stats", s.handleStats)
	s.route(mux, "GET /markets/category/{category}", s.handleMarketsByCategory)
	s.route(mux, "GET /markets/{id}", s.handleMarket)
	s.route(mux, "GET /markets/{id}/orderbook", s.handleOrderBook)
	s.route(mux, "GET /markets/{id}/history", s.handleHistory)
	s.route(mux, "GET /markets/{id}/trades", s.handleTrades)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}

	return mux
}

// route registers a market handler behind instrumentation and rate limiting.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	wrapped := s.instrument(pattern, h)
	if s.limiter != nil {
		wrapped = s.limiter.middleware(wrapped)
	}
	mux.Handle(pattern, wrapped)
}
