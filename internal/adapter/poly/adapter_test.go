package poly

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/market"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestAdapter(baseURL, apiKey string) *Adapter {
	a := New(Config{BaseURL: baseURL, APIKey: apiKey}, zerolog.Nop())
	a.now = fixedNow
	return a
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func sampleRaw() rawMarket {
	return rawMarket{
		ID:            "m1",
		Question:      "Will it rain tomorrow?",
		Description:   "Resolves on official measurements",
		MarketType:    "binary",
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []string{"0.7", "0.3"},
		Volume:        "100",
		Active:        true,
		Closed:        false,
		EndDate:       "2024-12-31T00:00:00Z",
		Liquidity:     "450.5",
		Tags:          []string{"Weather", "Climate"},
	}
}

func TestNormalizeMarket(t *testing.T) {
	a := newTestAdapter("", "")
	m := a.normalizeMarket(sampleRaw())

	if m.ID != "m1" || m.Source != market.SourcePolymarket {
		t.Fatalf("identity: got %q/%q", m.ID, m.Source)
	}
	if m.Status != market.StatusActive {
		t.Fatalf("status: want active, got %q", m.Status)
	}
	if m.Category != "Weather" {
		t.Fatalf("category: want first tag, got %q", m.Category)
	}
	if len(m.OutcomeTokens) != 2 {
		t.Fatalf("want 2 outcome tokens, got %d", len(m.OutcomeTokens))
	}

	yes, no := m.OutcomeTokens[0], m.OutcomeTokens[1]
	if !approx(yes.Probability, 0.7) || !approx(no.Probability, 0.3) {
		t.Errorf("probabilities: got %v, %v", yes.Probability, no.Probability)
	}
	// Aggregate volume split evenly across outcomes.
	if !approx(yes.Volume24h, 50) || !approx(no.Volume24h, 50) {
		t.Errorf("per-outcome volume: got %v, %v", yes.Volume24h, no.Volume24h)
	}
	if yes.BestBid != nil || yes.BestAsk != nil || yes.Spread != nil {
		t.Error("top-of-book fields must be absent: the listing payload has no book")
	}
	if !approx(m.Liquidity, 450.5) {
		t.Errorf("liquidity: got %v", m.Liquidity)
	}
}

func TestNormalizeMarket_NoTagsFallsBackToOther(t *testing.T) {
	a := newTestAdapter("", "")
	rm := sampleRaw()
	rm.Tags = nil
	if got := a.normalizeMarket(rm).Category; got != "Other" {
		t.Fatalf("category: want Other, got %q", got)
	}
}

func TestNormalizeMarket_Idempotent(t *testing.T) {
	a := newTestAdapter("", "")
	rm := sampleRaw()
	if !reflect.DeepEqual(a.normalizeMarket(rm), a.normalizeMarket(rm)) {
		t.Fatal("normalizing the same payload twice produced different markets")
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		active, closed bool
		want           market.Status
	}{
		{true, false, market.StatusActive},
		{true, true, market.StatusResolved},
		{false, true, market.StatusResolved},
		// The neither-active-nor-closed corner maps to closed.
		{false, false, market.StatusClosed},
	}
	for _, c := range cases {
		if got := normalizeStatus(c.active, c.closed); got != c.want {
			t.Errorf("normalizeStatus(%v, %v): want %q, got %q", c.active, c.closed, c.want, got)
		}
	}
}

func TestNormalizeOrderBook(t *testing.T) {
	book := normalizeOrderBook("tok1", rawOrderBook{
		AssetID:   "tok1",
		Bids:      []rawBookLevel{{Price: "0.48", Size: "300"}},
		Asks:      []rawBookLevel{{Price: "0.52", Size: "150"}, {Price: "not-a-number", Size: "10"}},
		Timestamp: 1700000000,
	})

	if book.MarketID != "tok1" || book.OutcomeID != "tok1" {
		t.Fatalf("identity: got %q/%q", book.MarketID, book.OutcomeID)
	}
	if want := time.Unix(1700000000, 0).UTC(); !book.Timestamp.Equal(want) {
		t.Fatalf("timestamp: want %v, got %v", want, book.Timestamp)
	}
	if len(book.Bids) != 1 || !approx(book.Bids[0].Price, 0.48) || book.Bids[0].Orders != 1 {
		t.Fatalf("bids: got %+v", book.Bids)
	}
	// Malformed decimals parse to 0 rather than dropping the level.
	if len(book.Asks) != 2 || !approx(book.Asks[1].Price, 0) {
		t.Fatalf("asks: got %+v", book.Asks)
	}
}

func TestMarkets_SendsStatusBooleansAndAPIKey(t *testing.T) {
	var gotQuery map[string]string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		q := r.URL.Query()
		gotQuery = map[string]string{"active": q.Get("active"), "closed": q.Get("closed"), "limit": q.Get("limit")}
		w.Write([]byte(`[{"id":"m1","question":"q","outcomes":["Yes","No"],"outcomePrices":["0.7","0.3"],"volume":"100","active":true,"closed":false,"endDate":"2024-12-31T00:00:00Z","liquidity":"1","tags":[]}]`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL, "secret")
	ms, err := a.Markets(context.Background(), adapter.MarketsQuery{Status: "active", Limit: 5})
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if len(ms) != 1 {
		t.Fatalf("want 1 market, got %d", len(ms))
	}
	if gotKey != "secret" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
	want := map[string]string{"active": "true", "closed": "false", "limit": "5"}
	if !reflect.DeepEqual(gotQuery, want) {
		t.Errorf("query: want %v, got %v", want, gotQuery)
	}
}

func TestMarkets_NoAPIKeyOmitsHeader(t *testing.T) {
	var sawKey bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawKey = r.Header["X-Api-Key"]
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL, "")
	if _, err := a.Markets(context.Background(), adapter.MarketsQuery{}); err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if sawKey {
		t.Error("X-API-Key header must be absent when no key is configured")
	}
}

func TestMarketStats_Passthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/m1/stats" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		w.Write([]byte(`{"uniqueTraders":42,"totalTrades":1000}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL, "")
	stats, err := a.MarketStats(context.Background(), "m1")
	if err != nil {
		t.Fatalf("MarketStats: %v", err)
	}
	if string(stats) != `{"uniqueTraders":42,"totalTrades":1000}` {
		t.Fatalf("payload must pass through untouched, got %s", stats)
	}
}

func TestMarket_ErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL, "")
	_, err := a.Market(context.Background(), "missing")
	var fetchErr *adapter.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("want FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound || fetchErr.ID != "missing" {
		t.Fatalf("fetch error fields: %+v", fetchErr)
	}
}
