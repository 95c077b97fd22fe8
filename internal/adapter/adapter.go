// Package adapter defines the contract every source adapter satisfies: fetch
// from one upstream venue and normalize its schema into the canonical
// market model.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marketmux/marketmux/internal/market"
)

// MarketsQuery filters a market listing. Each adapter maps these onto its
// vendor's own parameter conventions.
type MarketsQuery struct {
	Status string
	Limit  int
}

// HistoryQuery bounds a price history request. Values are passed through to
// the vendor untouched.
type HistoryQuery struct {
	StartTime string
	EndTime   string
	Interval  string
}

// TradesQuery pages a trade listing. Kalshi paginates by cursor, Polymarket
// by offset; each adapter reads the field it understands.
type TradesQuery struct {
	Limit  int
	Cursor string
	Offset int
}

// Source is a prediction-market venue adapter. All calls are blocking
// network reads; implementations carry a fixed HTTP timeout and honor ctx
// cancellation. History and Trades are vendor passthrough: the upstream
// defines no canonical shape for them.
type Source interface {
	Name() market.Source
	Markets(ctx context.Context, q MarketsQuery) ([]market.Market, error)
	Market(ctx context.Context, id string) (market.Market, error)
	OrderBook(ctx context.Context, id string) (market.OrderBook, error)
	History(ctx context.Context, id string, q HistoryQuery) ([]json.RawMessage, error)
	Trades(ctx context.Context, id string, q TradesQuery) ([]json.RawMessage, error)
}

// FetchError is a failed upstream call, carrying enough context to log which
// venue, endpoint and instrument were involved.
type FetchError struct {
	Source     market.Source
	Endpoint   string
	ID         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: fetch %s %s failed (status %d): %v", e.Source, e.Endpoint, e.ID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: fetch %s failed (status %d): %v", e.Source, e.Endpoint, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AuthError is a failed credential exchange, or a request that stayed
// unauthorized after one re-authentication retry.
type AuthError struct {
	Source market.Source
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
