// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs:
// an app access token source and a stream liveness probe used to gate chat
// announcements while the broadcast is offline.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var helixStreamsURL = "https://api.twitch.tv/helix/streams"

// HelixClient provides the minimal Helix surface the bot needs.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	// StreamsURL overrides helixStreamsURL when set (tests).
	StreamsURL string
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

// Stream is one entry from the Helix streams listing.
type Stream struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`
}

// GetStreams returns live streams for a login; an empty slice means offline.
func (hc *HelixClient) GetStreams(ctx context.Context, login string) ([]Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return nil, err
	}
	u := hc.StreamsURL
	if u == "" {
		u = helixStreamsURL
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	q := req.URL.Query()
	q.Set("user_login", login)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		// App token revoked out from under us; force one refresh and retry.
		if _, err := hc.AppTokenSource.ForceRefresh(ctx); err != nil {
			return nil, err
		}
		return hc.getStreamsOnce(ctx, login)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helix streams request failed: %s", resp.Status)
	}
	return decodeStreams(resp)
}

// getStreamsOnce is the single post-refresh retry; a second 401 surfaces as an error.
func (hc *HelixClient) getStreamsOnce(ctx context.Context, login string) ([]Stream, error) {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return nil, err
	}
	u := hc.StreamsURL
	if u == "" {
		u = helixStreamsURL
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	q := req.URL.Query()
	q.Set("user_login", login)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helix streams request failed after token refresh: %s", resp.Status)
	}
	return decodeStreams(resp)
}

func decodeStreams(resp *http.Response) ([]Stream, error) {
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// LiveChecker caches the liveness answer to bound Helix call volume from the
// poll loop. A failed probe is treated as offline and cached like any answer.
type LiveChecker struct {
	Helix *HelixClient
	Login string
	TTL   time.Duration

	mu        sync.Mutex
	live      bool
	checkedAt time.Time
}

// IsLive returns the cached liveness state, refreshing it when older than TTL.
func (lc *LiveChecker) IsLive(ctx context.Context) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	ttl := lc.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if !lc.checkedAt.IsZero() && time.Since(lc.checkedAt) < ttl {
		return lc.live
	}
	streams, err := lc.Helix.GetStreams(ctx, lc.Login)
	if err != nil {
		slog.Debug("live check failed; assuming offline", slog.Any("err", err))
		lc.live = false
	} else {
		lc.live = len(streams) > 0
	}
	lc.checkedAt = time.Now()
	return lc.live
}
