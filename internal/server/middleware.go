package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marketmux/marketmux/internal/metrics"
)

// statusRecorder captures the response code for metrics and access logging.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with the request counter and an access log line.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		begin := time.Now()

		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.code)).Inc()
		s.log.Debug().
			Str("route", pattern).
			Str("path", r.URL.Path).
			Int("code", rec.code).
			Dur("took", time.Since(begin)).
			Msg("request")
	})
}

// RateLimiter is a fixed-window per-client limiter. Counts reset when a
// client's window expires; there is no sliding behavior.
type RateLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*clientWindow
}

type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter with the given window and request cap.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		max:     max,
		now:     time.Now,
		windows: make(map[string]*clientWindow),
	}
}

// allow records one request for the client and reports whether it fits in the
// current window.
func (l *RateLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[client]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[client] = &clientWindow{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.max
}

func (l *RateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.allow(host) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
