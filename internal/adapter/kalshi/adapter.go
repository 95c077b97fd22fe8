// Package kalshi adapts the Kalshi REST API to the canonical market model.
// Kalshi quotes prices as integer cents (0–100); everything leaving this
// package is on the canonical 0–1 scale.
package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/market"
	"github.com/marketmux/marketmux/internal/metrics"
)

// tokenLifetime is how long a login token is assumed valid locally. The
// server can revoke earlier; the 401-retry path covers that.
const tokenLifetime = 24 * time.Hour

const defaultTimeout = 30 * time.Second

// Config holds the connection parameters for the Kalshi API.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

// Adapter fetches and normalizes Kalshi markets. It transparently logs in
// before the first request and re-authenticates when the token expires or is
// revoked server-side.
type Adapter struct {
	baseURL  string
	email    string
	password string
	http     *http.Client
	log      zerolog.Logger
	now      func() time.Time // injectable clock for testing

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a Kalshi adapter.
func New(cfg Config, log zerolog.Logger) *Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{
		baseURL:  cfg.BaseURL,
		email:    cfg.Email,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		log:      log.With().Str("source", "kalshi").Logger(),
		now:      time.Now,
	}
}

// Name implements adapter.Source.
func (a *Adapter) Name() market.Source { return market.SourceKalshi }

// Markets lists markets, optionally filtered by vendor status.
func (a *Adapter) Markets(ctx context.Context, q adapter.MarketsQuery) ([]market.Market, error) {
	query := url.Values{}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp marketsResponse
	if err := a.get(ctx, "/markets", "", query, &resp); err != nil {
		return nil, err
	}

	out := make([]market.Market, 0, len(resp.Markets))
	for _, rm := range resp.Markets {
		out = append(out, a.normalizeMarket(rm))
	}
	return out, nil
}

// Market fetches a single market by ticker.
func (a *Adapter) Market(ctx context.Context, ticker string) (market.Market, error) {
	var resp marketResponse
	if err := a.get(ctx, "/markets/"+ticker, ticker, nil, &resp); err != nil {
		return market.Market{}, err
	}
	return a.normalizeMarket(resp.Market), nil
}

// OrderBook fetches the depth snapshot for a market.
func (a *Adapter) OrderBook(ctx context.Context, ticker string) (market.OrderBook, error) {
	var resp rawOrderBook
	if err := a.get(ctx, "/markets/"+ticker+"/orderbook", ticker, nil, &resp); err != nil {
		return market.OrderBook{}, err
	}
	return a.normalizeOrderBook(ticker, resp), nil
}

// History returns the vendor price history untouched.
func (a *Adapter) History(ctx context.Context, ticker string, q adapter.HistoryQuery) ([]json.RawMessage, error) {
	query := url.Values{}
	if q.StartTime != "" {
		query.Set("start_time", q.StartTime)
	}
	if q.EndTime != "" {
		query.Set("end_time", q.EndTime)
	}
	if q.Interval != "" {
		query.Set("interval", q.Interval)
	}

	var resp historyResponse
	if err := a.get(ctx, "/markets/"+ticker+"/history", ticker, query, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Trades returns the vendor trade list untouched. Kalshi pages by cursor.
func (a *Adapter) Trades(ctx context.Context, ticker string, q adapter.TradesQuery) ([]json.RawMessage, error) {
	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		query.Set("cursor", q.Cursor)
	}

	var resp tradesResponse
	if err := a.get(ctx, "/markets/"+ticker+"/trades", ticker, query, &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

// EventsQuery filters the event listing.
type EventsQuery struct {
	Status string
	Limit  int
}

// Events returns the vendor event list untouched. Kalshi groups related
// markets under events; the canonical model has no counterpart, so this is
// passthrough only.
func (a *Adapter) Events(ctx context.Context, q EventsQuery) ([]json.RawMessage, error) {
	query := url.Values{}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp eventsResponse
	if err := a.get(ctx, "/events", "", query, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// get performs an authenticated GET and decodes the response into dest.
// Retry policy: a 401 triggers exactly one re-authentication and one retry;
// a second 401 surfaces as an AuthError. Any other non-2xx is a FetchError.
func (a *Adapter) get(ctx context.Context, path, id string, query url.Values, dest any) error {
	if err := a.ensureToken(ctx); err != nil {
		return err
	}

	status, body, err := a.do(ctx, path, query)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("kalshi", "error").Inc()
		return &adapter.FetchError{Source: market.SourceKalshi, Endpoint: path, ID: id, Err: err}
	}

	if status == http.StatusUnauthorized {
		a.log.Warn().Str("endpoint", path).Msg("unauthorized, refreshing token")
		if err := a.reauthenticate(ctx); err != nil {
			metrics.UpstreamRequests.WithLabelValues("kalshi", "error").Inc()
			return err
		}
		status, body, err = a.do(ctx, path, query)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues("kalshi", "error").Inc()
			return &adapter.FetchError{Source: market.SourceKalshi, Endpoint: path, ID: id, Err: err}
		}
		if status == http.StatusUnauthorized {
			metrics.UpstreamRequests.WithLabelValues("kalshi", "error").Inc()
			return &adapter.AuthError{
				Source: market.SourceKalshi,
				Err:    fmt.Errorf("still unauthorized after token refresh: %s", path),
			}
		}
	}

	if status < 200 || status >= 300 {
		metrics.UpstreamRequests.WithLabelValues("kalshi", "error").Inc()
		return &adapter.FetchError{
			Source:     market.SourceKalshi,
			Endpoint:   path,
			ID:         id,
			StatusCode: status,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		metrics.UpstreamRequests.WithLabelValues("kalshi", "error").Inc()
		return &adapter.FetchError{Source: market.SourceKalshi, Endpoint: path, ID: id, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	metrics.UpstreamRequests.WithLabelValues("kalshi", "ok").Inc()
	return nil
}

// do issues a single GET with the current bearer token.
func (a *Adapter) do(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if tok := a.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
