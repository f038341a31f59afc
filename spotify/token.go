package spotify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"

	"github.com/stimodev/stimobot/telemetry"
)

// TokenSource caches a Spotify bearer token obtained through the refresh-token
// grant. The refresh token is long-lived and owned by this process; the access
// token is discarded and replaced near expiry, never mutated.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// Endpoint overrides the Spotify accounts endpoint (tests).
	Endpoint oauth2.Endpoint

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

const expiryMargin = 10 * time.Second

// Get returns a valid (fresh or cached) access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.token != "" && time.Until(ts.expiresAt) > expiryMargin {
		tok := ts.token
		ts.mu.RUnlock()
		return tok, nil
	}
	ts.mu.RUnlock()
	return ts.refresh(ctx)
}

// ForceRefresh discards the cached token and fetches a new one; callers use it
// after a 401 before their single retry.
func (ts *TokenSource) ForceRefresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	ts.token = ""
	ts.mu.Unlock()
	return ts.refresh(ctx)
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Until(ts.expiresAt) > expiryMargin {
		return ts.token, nil
	}
	if ts.ClientID == "" || ts.ClientSecret == "" || ts.RefreshToken == "" {
		return "", errors.New("missing spotify client id/secret/refresh token")
	}
	ep := ts.Endpoint
	if ep.TokenURL == "" {
		ep = spotifyauth.Endpoint
	}
	oc := &oauth2.Config{ClientID: ts.ClientID, ClientSecret: ts.ClientSecret, Endpoint: ep}
	newTok, err := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: ts.RefreshToken}).Token()
	if err != nil {
		return "", err
	}
	if newTok.AccessToken == "" {
		return "", errors.New("empty access_token in spotify response")
	}
	ts.token = newTok.AccessToken
	ts.expiresAt = newTok.Expiry
	if ts.expiresAt.IsZero() {
		ts.expiresAt = time.Now().Add(time.Hour)
	}
	telemetry.CountRefresh("spotify")
	return ts.token, nil
}
