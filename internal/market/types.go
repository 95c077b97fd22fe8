package market

import (
	"fmt"
	"time"
)

// Source identifies the upstream venue a market was fetched from. Market IDs
// are only unique within a source, so every per-market lookup carries one.
type Source string

const (
	SourceKalshi     Source = "kalshi"
	SourcePolymarket Source = "polymarket"
)

// ParseSource validates a source string from a request boundary.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceKalshi, SourcePolymarket:
		return Source(s), nil
	}
	return "", fmt.Errorf("invalid source %q", s)
}

// Status is the canonical market lifecycle state. Each adapter maps its
// vendor's status fields onto exactly one of these values.
type Status string

const (
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusResolved Status = "resolved"
)

// OutcomeToken is one resolution branch of a market (e.g. Yes/No) with its
// own price and probability, both on a 0–1 scale regardless of source.
// BestBid/BestAsk/Spread are set only when the source exposes top-of-book
// at normalization time.
type OutcomeToken struct {
	ID             string   `json:"id"`
	MarketID       string   `json:"marketId"`
	Name           string   `json:"name"`
	Ticker         string   `json:"ticker"`
	Probability    float64  `json:"probability"`
	Price          float64  `json:"price"`
	LastPrice      float64  `json:"lastPrice"`
	PriceChange24h float64  `json:"priceChange24h"`
	Volume24h      float64  `json:"volume24h"`
	BestBid        *float64 `json:"bestBid,omitempty"`
	BestAsk        *float64 `json:"bestAsk,omitempty"`
	Spread         *float64 `json:"spread,omitempty"`
}

// Market is the source-agnostic market representation produced by the
// adapters. It is an ephemeral read-through view: never persisted, recomputed
// from the vendor payload on every cache miss.
type Market struct {
	ID            string         `json:"id"`
	Source        Source         `json:"source"`
	Title         string         `json:"title"`
	Question      string         `json:"question"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Status        Status         `json:"status"`
	CloseTime     time.Time      `json:"closeTime"`
	ResolveTime   *time.Time     `json:"resolveTime,omitempty"`
	Volume24h     float64        `json:"volume24h"`
	TotalVolume   float64        `json:"totalVolume"`
	Liquidity     float64        `json:"liquidity"`
	OutcomeTokens []OutcomeToken `json:"outcomeTokens"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// OrderBookLevel is a single price level of depth.
type OrderBookLevel struct {
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	Orders int     `json:"orders"`
}

// OrderBook is a point-in-time depth snapshot for one outcome of a market.
// Bids and asks are in source order: callers needing sorted depth must sort
// by price themselves (descending bids, ascending asks).
type OrderBook struct {
	MarketID  string           `json:"marketId"`
	OutcomeID string           `json:"outcomeId"`
	Timestamp time.Time        `json:"timestamp"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
}

// Stats are aggregate figures computed across every market from every source.
type Stats struct {
	TotalMarkets    int            `json:"totalMarkets"`
	ActiveMarkets   int            `json:"activeMarkets"`
	TotalVolume24h  float64        `json:"totalVolume24h"`
	TotalLiquidity  float64        `json:"totalLiquidity"`
	MarketsBySource map[Source]int `json:"marketsBySource"`
}

// Float returns a pointer to v, for the optional OutcomeToken fields.
func Float(v float64) *float64 { return &v }
