// Package poly adapts the Polymarket Gamma API to the canonical market
// model. Polymarket already quotes on a 0–1 scale, so normalization is
// string parsing rather than rescaling.
package poly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/market"
	"github.com/marketmux/marketmux/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Config holds the connection parameters for the Gamma API. APIKey is
// optional: the read endpoints are public, the key only raises rate limits.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Adapter fetches and normalizes Polymarket markets. There is no session or
// token state: the API key, when present, rides along as a header.
type Adapter struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
	now     func() time.Time // injectable clock for testing
}

// New creates a Polymarket adapter.
func New(cfg Config, log zerolog.Logger) *Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("source", "polymarket").Logger(),
		now:     time.Now,
	}
}

// Name implements adapter.Source.
func (a *Adapter) Name() market.Source { return market.SourcePolymarket }

// Markets lists markets. The canonical status filter maps onto the vendor's
// active/closed boolean pair.
func (a *Adapter) Markets(ctx context.Context, q adapter.MarketsQuery) ([]market.Market, error) {
	query := url.Values{}
	query.Set("active", strconv.FormatBool(q.Status == "active"))
	query.Set("closed", strconv.FormatBool(q.Status == "closed"))
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var raw []rawMarket
	if err := a.get(ctx, "/markets", "", query, &raw); err != nil {
		return nil, err
	}

	out := make([]market.Market, 0, len(raw))
	for _, rm := range raw {
		out = append(out, a.normalizeMarket(rm))
	}
	return out, nil
}

// Market fetches a single market by id.
func (a *Adapter) Market(ctx context.Context, id string) (market.Market, error) {
	var raw rawMarket
	if err := a.get(ctx, "/markets/"+id, id, nil, &raw); err != nil {
		return market.Market{}, err
	}
	return a.normalizeMarket(raw), nil
}

// OrderBook fetches the depth snapshot for an outcome token.
func (a *Adapter) OrderBook(ctx context.Context, tokenID string) (market.OrderBook, error) {
	var raw rawOrderBook
	if err := a.get(ctx, "/book/"+tokenID, tokenID, nil, &raw); err != nil {
		return market.OrderBook{}, err
	}
	return normalizeOrderBook(tokenID, raw), nil
}

// History returns the vendor price series untouched.
func (a *Adapter) History(ctx context.Context, tokenID string, q adapter.HistoryQuery) ([]json.RawMessage, error) {
	query := url.Values{}
	if q.StartTime != "" {
		query.Set("startDate", q.StartTime)
	}
	if q.EndTime != "" {
		query.Set("endDate", q.EndTime)
	}
	if q.Interval != "" {
		query.Set("interval", q.Interval)
	}

	var out []json.RawMessage
	if err := a.get(ctx, "/prices/"+tokenID, tokenID, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Trades returns the vendor trade list untouched. Polymarket pages by offset.
func (a *Adapter) Trades(ctx context.Context, marketID string, q adapter.TradesQuery) ([]json.RawMessage, error) {
	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		query.Set("offset", strconv.Itoa(q.Offset))
	}

	var out []json.RawMessage
	if err := a.get(ctx, "/trades/"+marketID, marketID, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarketStats returns the vendor's per-market stats payload untouched.
func (a *Adapter) MarketStats(ctx context.Context, marketID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := a.get(ctx, "/markets/"+marketID+"/stats", marketID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get performs a GET and decodes the response into dest. There is no retry:
// no auth-refresh concept applies here.
func (a *Adapter) get(ctx context.Context, path, id string, query url.Values, dest any) error {
	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &adapter.FetchError{Source: market.SourcePolymarket, Endpoint: path, ID: id, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("polymarket", "error").Inc()
		return &adapter.FetchError{Source: market.SourcePolymarket, Endpoint: path, ID: id, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("polymarket", "error").Inc()
		return &adapter.FetchError{Source: market.SourcePolymarket, Endpoint: path, ID: id, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamRequests.WithLabelValues("polymarket", "error").Inc()
		return &adapter.FetchError{
			Source:     market.SourcePolymarket,
			Endpoint:   path,
			ID:         id,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		metrics.UpstreamRequests.WithLabelValues("polymarket", "error").Inc()
		return &adapter.FetchError{Source: market.SourcePolymarket, Endpoint: path, ID: id, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	metrics.UpstreamRequests.WithLabelValues("polymarket", "ok").Inc()
	return nil
}
