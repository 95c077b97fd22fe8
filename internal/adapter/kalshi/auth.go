package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/marketmux/marketmux/internal/adapter"
	"github.com/marketmux/marketmux/internal/market"
)

// ensureToken authenticates if no token is held or the locally tracked
// expiry has passed.
func (a *Adapter) ensureToken(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.now().Before(a.tokenExpiry) {
		return nil
	}
	return a.authenticateLocked(ctx)
}

// reauthenticate discards the held token and performs a fresh login. Used
// when a request comes back 401: the server revoked the token sooner than
// the local estimate.
func (a *Adapter) reauthenticate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	return a.authenticateLocked(ctx)
}

// authenticateLocked exchanges credentials for a bearer token. Caller holds
// a.mu. The token is treated as valid for tokenLifetime from now; the server
// may still revoke it earlier.
func (a *Adapter) authenticateLocked(ctx context.Context) error {
	payload, err := json.Marshal(loginRequest{Email: a.email, Password: a.password})
	if err != nil {
		return &adapter.AuthError{Source: market.SourceKalshi, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return &adapter.AuthError{Source: market.SourceKalshi, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return &adapter.AuthError{Source: market.SourceKalshi, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &adapter.AuthError{
			Source: market.SourceKalshi,
			Err:    fmt.Errorf("login returned status %d", resp.StatusCode),
		}
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return &adapter.AuthError{Source: market.SourceKalshi, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if lr.Token == "" {
		return &adapter.AuthError{Source: market.SourceKalshi, Err: fmt.Errorf("login returned empty token")}
	}

	a.token = lr.Token
	a.tokenExpiry = a.now().Add(tokenLifetime)
	a.log.Info().Time("expires", a.tokenExpiry).Msg("authenticated")
	return nil
}

// bearer returns the currently held token, or "" when unauthenticated.
func (a *Adapter) bearer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}
