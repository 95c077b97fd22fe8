package kalshi

import (
	"strings"
	"time"

	"github.com/marketmux/marketmux/internal/market"
)

// normalizeMarket maps a vendor market onto the canonical model. A binary
// Kalshi market always yields exactly two outcome tokens: Yes derived from
// last_price, No as its complement.
func (a *Adapter) normalizeMarket(rm rawMarket) market.Market {
	lastPrice := float64(rm.LastPrice) / 100

	yes := market.OutcomeToken{
		ID:          rm.Ticker + "-yes",
		MarketID:    rm.Ticker,
		Name:        "Yes",
		Ticker:      rm.Ticker + "-YES",
		Probability: lastPrice,
		Price:       lastPrice,
		LastPrice:   lastPrice,
		Volume24h:   rm.Volume,
		BestBid:     market.Float(float64(rm.YesBid) / 100),
		BestAsk:     market.Float(float64(rm.YesAsk) / 100),
		Spread:      market.Float(float64(rm.YesAsk-rm.YesBid) / 100),
	}

	no := market.OutcomeToken{
		ID:          rm.Ticker + "-no",
		MarketID:    rm.Ticker,
		Name:        "No",
		Ticker:      rm.Ticker + "-NO",
		Probability: 1 - lastPrice,
		Price:       float64(100-rm.LastPrice) / 100,
		LastPrice:   float64(100-rm.LastPrice) / 100,
		Volume24h:   rm.Volume,
		BestBid:     market.Float(float64(rm.NoBid) / 100),
		BestAsk:     market.Float(float64(rm.NoAsk) / 100),
		Spread:      market.Float(float64(rm.NoAsk-rm.NoBid) / 100),
	}

	question := rm.Subtitle
	if question == "" {
		question = rm.Title
	}

	m := market.Market{
		ID:            rm.Ticker,
		Source:        market.SourceKalshi,
		Title:         rm.Title,
		Question:      question,
		Description:   rm.Subtitle,
		Category:      rm.Category,
		Status:        normalizeStatus(rm.Status),
		CloseTime:     parseTime(rm.CloseTime),
		Volume24h:     rm.Volume,
		TotalVolume:   rm.Volume,
		Liquidity:     rm.Liquidity,
		OutcomeTokens: []market.OutcomeToken{yes, no},
		Metadata: map[string]any{
			"event_ticker":  rm.EventTicker,
			"open_interest": rm.OpenInterest,
			"open_time":     rm.OpenTime,
		},
		CreatedAt: parseTime(rm.OpenTime),
		UpdatedAt: a.now(),
	}

	if rm.ExpirationTime != "" {
		t := parseTime(rm.ExpirationTime)
		m.ResolveTime = &t
	}

	return m
}

// normalizeOrderBook maps the vendor depth snapshot onto the canonical book.
//
// Both canonical sides are built from the vendor's "yes" array; "no" is
// decoded but never read. Suspected vendor-mapping bug kept for
// compatibility. See DESIGN.md before changing it.
func (a *Adapter) normalizeOrderBook(ticker string, raw rawOrderBook) market.OrderBook {
	side := func(levels []rawBookLevel) []market.OrderBookLevel {
		out := make([]market.OrderBookLevel, 0, len(levels))
		for _, l := range levels {
			out = append(out, market.OrderBookLevel{
				Price:  float64(l.Price) / 100,
				Size:   l.Quantity,
				Orders: 1,
			})
		}
		return out
	}

	return market.OrderBook{
		MarketID:  ticker,
		OutcomeID: ticker + "-yes",
		Timestamp: a.now(),
		Bids:      side(raw.Yes),
		Asks:      side(raw.Yes),
	}
}

// normalizeStatus maps vendor status strings, case-insensitively. Unknown
// values default to resolved.
func normalizeStatus(status string) market.Status {
	switch strings.ToLower(status) {
	case "active", "open":
		return market.StatusActive
	case "closed":
		return market.StatusClosed
	default:
		return market.StatusResolved
	}
}

// parseTime decodes a vendor RFC 3339 timestamp, returning the zero time on
// malformed input rather than failing the whole market.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
