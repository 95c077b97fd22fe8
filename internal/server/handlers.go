package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/aggregate"
	"github.com/marketmux/marketmux/internal/market"
)

// envelope is the uniform response shape for every JSON endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	q := aggregate.Query{
		Source:   r.URL.Query().Get("source"),
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
		Limit:    intParam(r, "limit"),
	}

	if q.Source != "" && q.Source != aggregate.SourceAll {
		if _, err := market.ParseSource(q.Source); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	markets, err := s.agg.AllMarkets(r.Context(), q)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, markets)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	source, ok := s.requireSource(w, r)
	if !ok {
		return
	}

	m, err := s.agg.MarketByID(r.Context(), r.PathValue("id"), source)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, m)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	markets, err := s.agg.Trending(r.Context(), intParam(r, "limit"))
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, markets)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	markets, err := s.agg.Search(r.Context(), query)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, markets)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.agg.Categories(r.Context())
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, categories)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.agg.Stats(r.Context())
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, stats)
}

func (s *Server) handleMarketsByCategory(w http.ResponseWriter, r *http.Request) {
	markets, err := s.agg.MarketsByCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, markets)
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	src, ok := s.requireAdapter(w, r)
	if !ok {
		return
	}

	book, err := src.OrderBook(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, book)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	src, ok := s.requireAdapter(w, r)
	if !ok {
		return
	}

	q := adapter.HistoryQuery{
		StartTime: r.URL.Query().Get("start_time"),
		EndTime:   r.URL.Query().Get("end_time"),
		Interval:  r.URL.Query().Get("interval"),
	}
	history, err := src.History(r.Context(), r.PathValue("id"), q)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, history)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	src, ok := s.requireAdapter(w, r)
	if !ok {
		return
	}

	q := adapter.TradesQuery{
		Limit:  intParam(r, "limit"),
		Cursor: r.URL.Query().Get("cursor"),
		Offset: intParam(r, "offset"),
	}
	trades, err := src.Trades(r.Context(), r.PathValue("id"), q)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeData(w, trades)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, map[string]any{
		"status":    "ok",
		"uptimeSec": int(s.now().Sub(s.start).Seconds()),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// requireSource parses the mandatory source query parameter. Market ids are
// only unique within a venue, so per-market routes refuse to guess.
func (s *Server) requireSource(w http.ResponseWriter, r *http.Request) (market.Source, bool) {
	raw := r.URL.Query().Get("source")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter source is required")
		return "", false
	}
	source, err := market.ParseSource(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return source, true
}

func (s *Server) requireAdapter(w http.ResponseWriter, r *http.Request) (adapter.Source, bool) {
	source, ok := s.requireSource(w, r)
	if !ok {
		return nil, false
	}
	src, known := s.sources[source]
	if !known {
		s.writeError(w, http.StatusBadRequest, "unknown source")
		return nil, false
	}
	return src, true
}

func (s *Server) writeData(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, envelope{Success: false, Error: msg})
}

// writeUpstreamError maps adapter failures onto status codes: a vendor 404
// stays a 404, any other upstream failure is a 502, everything else a 500.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	var fetchErr *adapter.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.StatusCode == http.StatusNotFound {
			s.writeError(w, http.StatusNotFound, "market not found")
			return
		}
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	var authErr *adapter.AuthError
	if errors.As(err, &authErr) {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.log.Error().Err(err).Msg("unexpected handler error")
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("write response failed")
	}
}

func intParam(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
