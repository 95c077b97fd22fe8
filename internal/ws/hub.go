// Package ws is the live update broadcaster: a WebSocket hub where clients
// subscribe to individual markets and receive fresh snapshots on a fixed
// polling interval. Delivery is best-effort, at most once per tick.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/market"
	"github.com/marketmux/marketmux/internal/metrics"
)

// Hub accepts WebSocket sessions and runs the heartbeat and market-refresh
// loops over them. Market fetches during a refresh tick bypass the cache:
// subscribers get live data.
type Hub struct {
	sources           map[market.Source]adapter.Source
	heartbeatInterval time.Duration
	refreshInterval   time.Duration
	log               zerolog.Logger
	upgrader          websocket.Upgrader
	now               func() time.Time

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// NewHub creates a Hub polling the given adapters.
func NewHub(sources map[market.Source]adapter.Source, heartbeat, refresh time.Duration, log zerolog.Logger) *Hub {
	return &Hub{
		sources:           sources,
		heartbeatInterval: heartbeat,
		refreshInterval:   refresh,
		log:               log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now:      time.Now,
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP upgrades the request and starts the session's read loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("upgrade failed")
		return
	}

	s := newSession(uuid.NewString(), conn)
	conn.SetPongHandler(func(string) error {
		s.alive.Store(true)
		return nil
	})

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	metrics.WSSessions.Inc()

	h.log.Info().Str("session", s.id).Msg("client connected")
	s.send(serverFrame{Type: frameConnected, Message: "Connected to market updates"})

	go h.readLoop(s)
}

// Run drives the heartbeat and refresh tickers. It blocks until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(h.heartbeatInterval)
	refresh := time.NewTicker(h.refreshInterval)
	defer heartbeat.Stop()
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-heartbeat.C:
			h.pingSessions()
		case <-refresh.C:
			h.broadcastUpdates(ctx)
		}
	}
}

func (h *Hub) readLoop(s *session) {
	defer h.drop(s)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleMessage(s, raw)
	}
}

func (h *Hub) handleMessage(s *session, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.send(serverFrame{Type: frameError, Error: "Invalid message format"})
		return
	}

	switch msg.Type {
	case "subscribe":
		h.handleSubscribe(s, msg.Payload)
	case "unsubscribe":
		h.handleUnsubscribe(s, msg.Payload)
	case "ping":
		s.send(serverFrame{Type: framePong})
	default:
		s.send(serverFrame{Type: frameError, Error: "Unknown message type"})
	}
}

func (h *Hub) handleSubscribe(s *session, p clientPayload) {
	if p.MarketID == "" || p.Source == "" {
		s.send(serverFrame{Type: frameError, Error: "marketId and source are required"})
		return
	}

	key := p.Source + ":" + p.MarketID
	s.subscribe(key)
	s.send(serverFrame{Type: frameSubscribed, MarketID: p.MarketID, Source: p.Source})
	h.log.Info().Str("session", s.id).Str("key", key).Msg("subscribed")
}

func (h *Hub) handleUnsubscribe(s *session, p clientPayload) {
	if p.MarketID == "" || p.Source == "" {
		s.send(serverFrame{Type: frameError, Error: "marketId and source are required"})
		return
	}

	key := p.Source + ":" + p.MarketID
	s.unsubscribe(key)
	s.send(serverFrame{Type: frameUnsubscribed, MarketID: p.MarketID, Source: p.Source})
	h.log.Info().Str("session", s.id).Str("key", key).Msg("unsubscribed")
}

// pingSessions terminates sessions that never answered the previous ping,
// then pings the rest. This is the sole disconnect-detection mechanism.
func (h *Hub) pingSessions() {
	for _, s := range h.snapshot() {
		if !s.alive.Load() {
			h.log.Info().Str("session", s.id).Msg("terminating unresponsive client")
			s.conn.Close()
			h.drop(s)
			continue
		}
		s.alive.Store(false)
		if err := s.ping(h.now().Add(5 * time.Second)); err != nil {
			h.log.Warn().Err(err).Str("session", s.id).Msg("ping failed")
		}
	}
}

// broadcastUpdates fetches each subscribed market once and fans the result
// out to the sessions holding that subscription. One key failing does not
// block the rest.
func (h *Hub) broadcastUpdates(ctx context.Context) {
	sessions := h.snapshot()

	union := make(map[string]struct{})
	for _, s := range sessions {
		for _, key := range s.subscriptionKeys() {
			union[key] = struct{}{}
		}
	}

	for key := range union {
		source, marketID, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		src, known := h.sources[market.Source(source)]
		if !known {
			h.log.Warn().Str("key", key).Msg("subscription for unknown source")
			continue
		}

		m, err := src.Market(ctx, marketID)
		if err != nil {
			h.log.Error().Err(err).Str("key", key).Msg("update fetch failed")
			continue
		}

		frame := serverFrame{
			Type:      frameMarketUpdate,
			Source:    source,
			MarketID:  marketID,
			Data:      &m,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		}
		for _, s := range sessions {
			if !s.subscribed(key) {
				continue
			}
			if err := s.send(frame); err != nil {
				h.log.Warn().Err(err).Str("session", s.id).Msg("update write failed")
				continue
			}
			metrics.WSUpdatesSent.Inc()
		}
	}
}

func (h *Hub) snapshot() []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *Hub) drop(s *session) {
	h.mu.Lock()
	_, present := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()

	if present {
		metrics.WSSessions.Dec()
		s.conn.Close()
		h.log.Info().Str("session", s.id).Msg("client disconnected")
	}
}

func (h *Hub) closeAll() {
	for _, s := range h.snapshot() {
		s.conn.Close()
		h.drop(s)
	}
}
