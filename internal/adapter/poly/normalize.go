package poly

import (
	"strconv"
	"strings"
	"time"

	"github.com/marketmux/marketmux/internal/market"
)

// normalizeMarket maps a vendor market onto the canonical model. The vendor
// only reports an aggregate volume, so it is split evenly across the
// outcomes to approximate per-outcome 24h volume.
func (a *Adapter) normalizeMarket(rm rawMarket) market.Market {
	totalVolume := parseDecimal(rm.Volume)

	tokens := make([]market.OutcomeToken, 0, len(rm.Outcomes))
	for i, outcome := range rm.Outcomes {
		price := 0.0
		if i < len(rm.OutcomePrices) {
			price = parseDecimal(rm.OutcomePrices[i])
		}
		tokens = append(tokens, market.OutcomeToken{
			ID:          rm.ID + "-" + strconv.Itoa(i),
			MarketID:    rm.ID,
			Name:        outcome,
			Ticker:      rm.ID + "-" + strings.ToUpper(outcome),
			Probability: price,
			Price:       price,
			LastPrice:   price,
			Volume24h:   totalVolume / float64(len(rm.Outcomes)),
		})
	}

	category := "Other"
	if len(rm.Tags) > 0 {
		category = rm.Tags[0]
	}

	m := market.Market{
		ID:            rm.ID,
		Source:        market.SourcePolymarket,
		Title:         rm.Question,
		Question:      rm.Question,
		Description:   rm.Description,
		Category:      category,
		Status:        normalizeStatus(rm.Active, rm.Closed),
		CloseTime:     parseTime(rm.EndDate),
		Volume24h:     totalVolume,
		TotalVolume:   totalVolume,
		Liquidity:     parseDecimal(rm.Liquidity),
		OutcomeTokens: tokens,
		Metadata: map[string]any{
			"marketType": rm.MarketType,
			"tags":       rm.Tags,
		},
		CreatedAt: a.now(),
		UpdatedAt: a.now(),
	}

	if rm.ResolvedAt != "" {
		t := parseTime(rm.ResolvedAt)
		m.ResolveTime = &t
	}

	return m
}

// normalizeOrderBook maps the vendor depth snapshot onto the canonical book.
// The vendor timestamp is Unix seconds.
func normalizeOrderBook(tokenID string, raw rawOrderBook) market.OrderBook {
	side := func(levels []rawBookLevel) []market.OrderBookLevel {
		out := make([]market.OrderBookLevel, 0, len(levels))
		for _, l := range levels {
			out = append(out, market.OrderBookLevel{
				Price:  parseDecimal(l.Price),
				Size:   parseDecimal(l.Size),
				Orders: 1,
			})
		}
		return out
	}

	return market.OrderBook{
		MarketID:  tokenID,
		OutcomeID: tokenID,
		Timestamp: time.UnixMilli(raw.Timestamp * 1000).UTC(),
		Bids:      side(raw.Bids),
		Asks:      side(raw.Asks),
	}
}

// normalizeStatus maps the vendor's active/closed boolean pair. The
// active=false, closed=false corner maps to closed, not resolved. See
// DESIGN.md before changing it.
func normalizeStatus(active, closed bool) market.Status {
	if active && !closed {
		return market.StatusActive
	}
	if closed {
		return market.StatusResolved
	}
	return market.StatusClosed
}

// parseDecimal parses a vendor decimal string, returning 0 on malformed or
// empty input rather than failing the whole market.
func parseDecimal(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
