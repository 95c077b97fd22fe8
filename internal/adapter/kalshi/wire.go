package kalshi

import "encoding/json"

// Raw wire types for the Kalshi REST API. Decoded at the adapter boundary so
// malformed payloads fail here with a typed error instead of leaking
// undefined fields downstream.

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type rawMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Category       string  `json:"category"`
	CloseTime      string  `json:"close_time"`
	ExpirationTime string  `json:"expiration_time"`
	OpenTime       string  `json:"open_time"`
	Status         string  `json:"status"`
	YesBid         int     `json:"yes_bid"`
	YesAsk         int     `json:"yes_ask"`
	NoBid          int     `json:"no_bid"`
	NoAsk          int     `json:"no_ask"`
	LastPrice      int     `json:"last_price"`
	Volume         float64 `json:"volume"`
	OpenInterest   int     `json:"open_interest"`
	Liquidity      float64 `json:"liquidity"`
}

type marketsResponse struct {
	Markets []rawMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

type marketResponse struct {
	Market rawMarket `json:"market"`
}

type rawBookLevel struct {
	Price    int     `json:"price"`
	Quantity float64 `json:"quantity"`
}

type rawOrderBook struct {
	Yes []rawBookLevel `json:"yes"`
	No  []rawBookLevel `json:"no"`
}

type historyResponse struct {
	History []json.RawMessage `json:"history"`
}

type tradesResponse struct {
	Trades []json.RawMessage `json:"trades"`
}

type eventsResponse struct {
	Events []json.RawMessage `json:"events"`
}
