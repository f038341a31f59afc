// Package spotify is a minimal client for the playback-state endpoint, plus a
// cached token source for the refresh-token grant.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var currentlyPlayingURL = "https://api.spotify.com/v1/me/player/currently-playing"

// ErrAuth marks an authentication failure that survived a forced token refresh.
var ErrAuth = errors.New("spotify: unauthorized after token refresh")

// Track is the currently-playing state read each poll cycle. Cycles compare
// tracks by ID only; progress feeds the announcement debounce.
type Track struct {
	ID         string
	Name       string
	Artists    string
	ProgressMs int
}

type Client struct {
	TokenSource *TokenSource
	HTTPClient  *http.Client
	// URL overrides currentlyPlayingURL when set (tests).
	URL string
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// CurrentlyPlaying returns the playing track, or nil when nothing is playing.
// A 401 triggers exactly one forced token refresh and retry; a second 401 is
// returned as ErrAuth.
func (c *Client) CurrentlyPlaying(ctx context.Context) (*Track, error) {
	track, status, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if _, err := c.TokenSource.ForceRefresh(ctx); err != nil {
			return nil, err
		}
		track, status, err = c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, ErrAuth
		}
	}
	return track, nil
}

// fetch performs one request. It reports a 401 through the status return so the
// caller owns the retry policy.
func (c *Client) fetch(ctx context.Context) (*Track, int, error) {
	tok, err := c.TokenSource.Get(ctx)
	if err != nil {
		return nil, 0, err
	}
	u := c.URL
	if u == "" {
		u = currentlyPlayingURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, http.StatusUnauthorized, nil
	case http.StatusNoContent:
		// Nothing playing.
		return nil, http.StatusNoContent, nil
	case http.StatusOK:
	default:
		return nil, resp.StatusCode, fmt.Errorf("spotify currently-playing failed: %s", resp.Status)
	}

	var body struct {
		IsPlaying  bool `json:"is_playing"`
		ProgressMs int  `json:"progress_ms"`
		Item       struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"item"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, err
	}
	if !body.IsPlaying || body.Item.ID == "" {
		return nil, resp.StatusCode, nil
	}
	names := make([]string, 0, len(body.Item.Artists))
	for _, a := range body.Item.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return &Track{
		ID:         body.Item.ID,
		Name:       body.Item.Name,
		Artists:    strings.Join(names, ", "),
		ProgressMs: body.ProgressMs,
	}, resp.StatusCode, nil
}
