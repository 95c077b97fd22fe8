package poly

// Raw wire types for the Polymarket Gamma API. Prices, volumes and liquidity
// arrive as decimal strings and are parsed at normalization time.

type rawMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Description   string   `json:"description"`
	MarketType    string   `json:"marketType"`
	Outcomes      []string `json:"outcomes"`
	OutcomePrices []string `json:"outcomePrices"`
	Volume        string   `json:"volume"`
	Active        bool     `json:"active"`
	Closed        bool     `json:"closed"`
	ResolvedAt    string   `json:"resolvedAt"`
	EndDate       string   `json:"endDate"`
	Liquidity     string   `json:"liquidity"`
	Tags          []string `json:"tags"`
}

type rawBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type rawOrderBook struct {
	AssetID   string         `json:"asset_id"`
	Bids      []rawBookLevel `json:"bids"`
	Asks      []rawBookLevel `json:"asks"`
	Timestamp int64          `json:"timestamp"`
}
