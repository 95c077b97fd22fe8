package ws

import "github.com/marketmux/marketmux/internal/market"

// clientMessage is the envelope for every inbound frame.
type clientMessage struct {
	Type    string        `json:"type"`
	Payload clientPayload `json:"payload"`
}

type clientPayload struct {
	MarketID string `json:"marketId"`
	Source   string `json:"source"`
}

// serverFrame is the envelope for every outbound frame. Unused fields are
// omitted per frame type.
type serverFrame struct {
	Type      string         `json:"type"`
	Message   string         `json:"message,omitempty"`
	MarketID  string         `json:"marketId,omitempty"`
	Source    string         `json:"source,omitempty"`
	Data      *market.Market `json:"data,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Error     string         `json:"error,omitempty"`
}

const (
	frameConnected    = "connected"
	frameSubscribed   = "subscribed"
	frameUnsubscribed = "unsubscribed"
	framePong         = "pong"
	frameMarketUpdate = "market_update"
	frameError        = "error"
)
