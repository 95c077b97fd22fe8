package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/market"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestAdapter(baseURL string) *Adapter {
	a := New(Config{BaseURL: baseURL, Email: "user@example.com", Password: "hunter2"}, zerolog.Nop())
	a.now = fixedNow
	return a
}

// authServer serves POST /login with sequential tokens and delegates
// everything else to handler.
func authServer(t *testing.T, logins *atomic.Int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/login" {
			var req loginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode login body: %v", err)
			}
			if req.Email != "user@example.com" || req.Password != "hunter2" {
				t.Errorf("unexpected credentials %q/%q", req.Email, req.Password)
			}
			n := logins.Add(1)
			json.NewEncoder(w).Encode(loginResponse{Token: "tok" + string(rune('0'+n))})
			return
		}
		handler(w, r)
	}))
}

func TestMarkets_AuthenticatesOnceAndSendsBearer(t *testing.T) {
	var logins atomic.Int32
	srv := authServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok1" {
			t.Errorf("Authorization header: want 'Bearer tok1', got %q", got)
		}
		json.NewEncoder(w).Encode(marketsResponse{Markets: []rawMarket{sampleRaw()}})
	})
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ms, err := a.Markets(ctx, adapter.MarketsQuery{Status: "active"})
		if err != nil {
			t.Fatalf("Markets: %v", err)
		}
		if len(ms) != 1 {
			t.Fatalf("want 1 market, got %d", len(ms))
		}
	}

	// Token is valid for 24h: two calls share one login.
	if got := logins.Load(); got != 1 {
		t.Fatalf("logins: want 1, got %d", got)
	}
}

func TestMarkets_ReauthenticatesOnceOn401(t *testing.T) {
	var logins atomic.Int32
	srv := authServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		// The token from the first login is rejected; the refreshed one
		// is accepted.
		if r.Header.Get("Authorization") == "Bearer tok1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(marketsResponse{Markets: []rawMarket{sampleRaw()}})
	})
	defer srv.Close()

	a := newTestAdapter(srv.URL)

	ms, err := a.Markets(context.Background(), adapter.MarketsQuery{})
	if err != nil {
		t.Fatalf("Markets after 401 retry: %v", err)
	}
	if len(ms) != 1 {
		t.Fatalf("want 1 market, got %d", len(ms))
	}
	if got := logins.Load(); got != 2 {
		t.Fatalf("logins: want 2 (initial + refresh), got %d", got)
	}
}

func TestMarkets_SecondUnauthorizedIsAuthError(t *testing.T) {
	var logins atomic.Int32
	srv := authServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	a := newTestAdapter(srv.URL)

	_, err := a.Markets(context.Background(), adapter.MarketsQuery{})
	var authErr *adapter.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("want AuthError, got %v", err)
	}
	if got := logins.Load(); got != 2 {
		t.Fatalf("logins: want 2 (no second retry), got %d", got)
	}
}

func TestMarket_ServerErrorIsFetchError(t *testing.T) {
	var logins atomic.Int32
	srv := authServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer srv.Close()

	a := newTestAdapter(srv.URL)

	_, err := a.Market(context.Background(), "ABC")
	var fetchErr *adapter.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("want FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status: want 500, got %d", fetchErr.StatusCode)
	}
	if fetchErr.ID != "ABC" {
		t.Fatalf("id: want ABC, got %q", fetchErr.ID)
	}
}

func sampleRaw() rawMarket {
	return rawMarket{
		Ticker:         "ABC",
		EventTicker:    "ABC-EV",
		Title:          "Will it happen?",
		Subtitle:       "Resolution by year end",
		Category:       "Politics",
		CloseTime:      "2024-12-31T23:59:59Z",
		ExpirationTime: "2025-01-01T00:00:00Z",
		OpenTime:       "2024-01-01T00:00:00Z",
		Status:         "open",
		YesBid:         60,
		YesAsk:         65,
		NoBid:          35,
		NoAsk:          40,
		LastPrice:      63,
		Volume:         1000,
		OpenInterest:   500,
		Liquidity:      2500,
	}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestNormalizeMarket(t *testing.T) {
	a := newTestAdapter("")
	m := a.normalizeMarket(sampleRaw())

	if m.ID != "ABC" || m.Source != market.SourceKalshi {
		t.Fatalf("identity: got %q/%q", m.ID, m.Source)
	}
	if m.Status != market.StatusActive {
		t.Fatalf("status: want active, got %q", m.Status)
	}
	if len(m.OutcomeTokens) != 2 {
		t.Fatalf("want exactly 2 outcome tokens, got %d", len(m.OutcomeTokens))
	}

	yes, no := m.OutcomeTokens[0], m.OutcomeTokens[1]
	if yes.Name != "Yes" || no.Name != "No" {
		t.Fatalf("token order: got %q, %q", yes.Name, no.Name)
	}
	if !approx(yes.Probability, 0.63) {
		t.Errorf("yes probability: want 0.63, got %v", yes.Probability)
	}
	if !approx(*yes.BestBid, 0.60) || !approx(*yes.BestAsk, 0.65) || !approx(*yes.Spread, 0.05) {
		t.Errorf("yes book: got bid=%v ask=%v spread=%v", *yes.BestBid, *yes.BestAsk, *yes.Spread)
	}
	if !approx(no.Probability, 0.37) {
		t.Errorf("no probability: want 0.37, got %v", no.Probability)
	}
	if !approx(*no.BestBid, 0.35) || !approx(*no.BestAsk, 0.40) || !approx(*no.Spread, 0.05) {
		t.Errorf("no book: got bid=%v ask=%v spread=%v", *no.BestBid, *no.BestAsk, *no.Spread)
	}

	if m.CloseTime != time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC) {
		t.Errorf("closeTime: got %v", m.CloseTime)
	}
	if m.ResolveTime == nil || !m.ResolveTime.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("resolveTime: got %v", m.ResolveTime)
	}
	if m.Question != "Resolution by year end" {
		t.Errorf("question: got %q", m.Question)
	}
}

func TestNormalizeMarket_Complementarity(t *testing.T) {
	a := newTestAdapter("")
	for lp := 0; lp <= 100; lp++ {
		rm := sampleRaw()
		rm.LastPrice = lp
		m := a.normalizeMarket(rm)
		sum := m.OutcomeTokens[0].Probability + m.OutcomeTokens[1].Probability
		if !approx(sum, 1.0) {
			t.Fatalf("last_price=%d: yes+no probability = %v, want 1.0", lp, sum)
		}
	}
}

func TestNormalizeMarket_Idempotent(t *testing.T) {
	a := newTestAdapter("")
	rm := sampleRaw()
	if !reflect.DeepEqual(a.normalizeMarket(rm), a.normalizeMarket(rm)) {
		t.Fatal("normalizing the same payload twice produced different markets")
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]market.Status{
		"active":    market.StatusActive,
		"Active":    market.StatusActive,
		"open":      market.StatusActive,
		"OPEN":      market.StatusActive,
		"closed":    market.StatusClosed,
		"Closed":    market.StatusClosed,
		"settled":   market.StatusResolved,
		"finalized": market.StatusResolved,
		"":          market.StatusResolved,
	}
	for in, want := range cases {
		if got := normalizeStatus(in); got != want {
			t.Errorf("normalizeStatus(%q): want %q, got %q", in, want, got)
		}
	}
}

func TestNormalizeOrderBook_YesArrayFeedsBothSides(t *testing.T) {
	a := newTestAdapter("")
	book := a.normalizeOrderBook("ABC", rawOrderBook{
		Yes: []rawBookLevel{{Price: 48, Quantity: 300}, {Price: 52, Quantity: 150}},
		No:  []rawBookLevel{{Price: 54, Quantity: 200}},
	})

	if book.MarketID != "ABC" || book.OutcomeID != "ABC-yes" {
		t.Fatalf("identity: got %q/%q", book.MarketID, book.OutcomeID)
	}
	if !reflect.DeepEqual(book.Bids, book.Asks) {
		t.Fatal("bids and asks must both mirror the yes array")
	}
	if len(book.Bids) != 2 {
		t.Fatalf("want 2 levels, got %d", len(book.Bids))
	}
	if !approx(book.Bids[0].Price, 0.48) || book.Bids[0].Size != 300 || book.Bids[0].Orders != 1 {
		t.Fatalf("level 0: got %+v", book.Bids[0])
	}
}

func TestEvents_Passthrough(t *testing.T) {
	var logins atomic.Int32
	srv := authServer(t, &logins, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "open" {
			t.Errorf("status param: got %q", got)
		}
		w.Write([]byte(`{"events":[{"event_ticker":"ABC-EV"}]}`))
	})
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	events, err := a.Events(context.Background(), EventsQuery{Status: "open"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}
}
