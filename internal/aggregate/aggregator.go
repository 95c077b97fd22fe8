// Package aggregate fans requests out to the source adapters, merges their
// normalized markets into one view, and fronts everything with the
// cache-aside layer.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/cache"
	"github.com/marketmux/marketmux/internal/market"
)

// SourceAll selects both venues in a Query.
const SourceAll = "all"

// TTLs control how long each read stays cached.
type TTLs struct {
	Markets    time.Duration
	Market     time.Duration
	Categories time.Duration
	Stats      time.Duration
}

// DefaultTTLs returns the standard cache lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Markets:    30 * time.Second,
		Market:     15 * time.Second,
		Categories: 300 * time.Second,
		Stats:      60 * time.Second,
	}
}

// Query filters a market listing. Source may be "kalshi", "polymarket",
// "all", or empty (same as "all").
type Query struct {
	Source   string
	Status   string
	Category string
	Limit    int
}

// Aggregator is the read-only aggregation engine over the two source
// adapters. Every operation is a pure function of current upstream state
// plus the cache; the only side effects are cache population and logging.
type Aggregator struct {
	kalshi adapter.Source
	poly   adapter.Source
	cache  *cache.Cache
	ttls   TTLs
	log    zerolog.Logger
}

// New creates an Aggregator over the given adapters.
func New(kalshi, poly adapter.Source, c *cache.Cache, ttls TTLs, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		kalshi: kalshi,
		poly:   poly,
		cache:  c,
		ttls:   ttls,
		log:    log.With().Str("component", "aggregate").Logger(),
	}
}

// AllMarkets lists markets from one or both venues. With source "all" the
// adapters are queried concurrently and a single failing venue degrades to
// partial results: its error is logged, the other venue's markets are still
// returned. Both venues failing yields an empty list, not an error.
// Merge order is deterministic: Kalshi first, then Polymarket.
func (a *Aggregator) AllMarkets(ctx context.Context, q Query) ([]market.Market, error) {
	source := q.Source
	if source == "" {
		source = SourceAll
	}

	key := fmt.Sprintf("markets:%s:%s:%s", source, orAll(q.Status), orAll(q.Category))

	return cache.GetOrSet(ctx, a.cache, key, a.ttls.Markets, func(ctx context.Context) ([]market.Market, error) {
		var (
			wg            sync.WaitGroup
			kalshiMarkets []market.Market
			polyMarkets   []market.Market
		)

		mq := adapter.MarketsQuery{Status: q.Status, Limit: q.Limit}

		if source == SourceAll || source == string(market.SourceKalshi) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ms, err := a.kalshi.Markets(ctx, mq)
				if err != nil {
					a.log.Error().Err(err).Str("source", "kalshi").Msg("fan-out fetch failed")
					return
				}
				kalshiMarkets = ms
			}()
		}

		if source == SourceAll || source == string(market.SourcePolymarket) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ms, err := a.poly.Markets(ctx, mq)
				if err != nil {
					a.log.Error().Err(err).Str("source", "polymarket").Msg("fan-out fetch failed")
					return
				}
				polyMarkets = ms
			}()
		}

		wg.Wait()

		merged := make([]market.Market, 0, len(kalshiMarkets)+len(polyMarkets))
		merged = append(merged, kalshiMarkets...)
		merged = append(merged, polyMarkets...)

		if q.Category != "" {
			merged = filterByCategory(merged, q.Category)
		}
		return merged, nil
	})
}

// MarketByID is a point lookup on one venue. Source is mandatory: ids are
// only unique within a venue. Unlike the fan-out path, a failure here
// propagates to the caller.
func (a *Aggregator) MarketByID(ctx context.Context, id string, source market.Source) (market.Market, error) {
	key := fmt.Sprintf("market:%s:%s", source, id)

	return cache.GetOrSet(ctx, a.cache, key, a.ttls.Market, func(ctx context.Context) (market.Market, error) {
		return a.adapterFor(source).Market(ctx, id)
	})
}

// MarketsByCategory lists all markets in one category, case-insensitively.
func (a *Aggregator) MarketsByCategory(ctx context.Context, category string) ([]market.Market, error) {
	markets, err := a.AllMarkets(ctx, Query{})
	if err != nil {
		return nil, err
	}
	return filterByCategory(markets, category), nil
}

// Trending returns the top markets by 24h volume, descending. Ties keep the
// merge order (stable sort). limit <= 0 defaults to 10.
func (a *Aggregator) Trending(ctx context.Context, limit int) ([]market.Market, error) {
	if limit <= 0 {
		limit = 10
	}

	markets, err := a.AllMarkets(ctx, Query{Status: "active"})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].Volume24h > markets[j].Volume24h
	})
	if len(markets) > limit {
		markets = markets[:limit]
	}
	return markets, nil
}

// Search matches query case-insensitively against title, question and
// description.
func (a *Aggregator) Search(ctx context.Context, query string) ([]market.Market, error) {
	markets, err := a.AllMarkets(ctx, Query{})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	out := make([]market.Market, 0)
	for _, m := range markets {
		if strings.Contains(strings.ToLower(m.Title), needle) ||
			strings.Contains(strings.ToLower(m.Question), needle) ||
			strings.Contains(strings.ToLower(m.Description), needle) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Categories returns the deduplicated, alphabetically sorted category set
// across all markets.
func (a *Aggregator) Categories(ctx context.Context) ([]string, error) {
	return cache.GetOrSet(ctx, a.cache, "categories:all", a.ttls.Categories, func(ctx context.Context) ([]string, error) {
		markets, err := a.AllMarkets(ctx, Query{})
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{})
		out := make([]string, 0)
		for _, m := range markets {
			if _, ok := seen[m.Category]; ok {
				continue
			}
			seen[m.Category] = struct{}{}
			out = append(out, m.Category)
		}
		sort.Strings(out)
		return out, nil
	})
}

// Stats computes aggregate figures across all markets from both venues.
func (a *Aggregator) Stats(ctx context.Context) (market.Stats, error) {
	return cache.GetOrSet(ctx, a.cache, "stats:global", a.ttls.Stats, func(ctx context.Context) (market.Stats, error) {
		markets, err := a.AllMarkets(ctx, Query{})
		if err != nil {
			return market.Stats{}, err
		}

		stats := market.Stats{
			TotalMarkets: len(markets),
			MarketsBySource: map[market.Source]int{
				market.SourceKalshi:     0,
				market.SourcePolymarket: 0,
			},
		}
		for _, m := range markets {
			if m.Status == market.StatusActive {
				stats.ActiveMarkets++
			}
			stats.TotalVolume24h += m.Volume24h
			stats.TotalLiquidity += m.Liquidity
			stats.MarketsBySource[m.Source]++
		}
		return stats, nil
	})
}

func (a *Aggregator) adapterFor(source market.Source) adapter.Source {
	if source == market.SourcePolymarket {
		return a.poly
	}
	return a.kalshi
}

func filterByCategory(markets []market.Market, category string) []market.Market {
	out := make([]market.Market, 0)
	for _, m := range markets {
		if strings.EqualFold(m.Category, category) {
			out = append(out, m)
		}
	}
	return out
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
