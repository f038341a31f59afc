package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "spotify-tok",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func newTokenSource(t *testing.T, calls *int) *TokenSource {
	t.Helper()
	srv := newTokenServer(t, calls)
	t.Cleanup(srv.Close)
	return &TokenSource{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL},
	}
}

func TestTokenSourceCaches(t *testing.T) {
	calls := 0
	ts := newTokenSource(t, &calls)
	ctx := context.Background()

	tok, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tok != "spotify-tok" {
		t.Errorf("Get() = %q", tok)
	}
	if _, err := ts.Get(ctx); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("refresh calls = %d, want 1 (cached)", calls)
	}
}

func TestTokenSourceRefreshesWithinMargin(t *testing.T) {
	calls := 0
	ts := newTokenSource(t, &calls)
	ctx := context.Background()
	if _, err := ts.Get(ctx); err != nil {
		t.Fatal(err)
	}
	ts.mu.Lock()
	ts.expiresAt = time.Now().Add(5 * time.Second)
	ts.mu.Unlock()
	if _, err := ts.Get(ctx); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("refresh calls = %d, want 2 (within 10s margin)", calls)
	}
}

func TestTokenSourceMissingCreds(t *testing.T) {
	ts := &TokenSource{}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("Get() without credentials should fail")
	}
}

func playingBody(id, name string, progress int) map[string]any {
	return map[string]any{
		"is_playing":  true,
		"progress_ms": progress,
		"item": map[string]any{
			"id":   id,
			"name": name,
			"artists": []map[string]any{
				{"name": "Artist A"}, {"name": "Artist B"},
			},
		},
	}
}

func TestCurrentlyPlaying(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer spotify-tok" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(playingBody("track-1", "Song", 42000))
	}))
	defer srv.Close()

	c := &Client{TokenSource: newTokenSource(t, &tokenCalls), URL: srv.URL}
	track, err := c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatalf("CurrentlyPlaying() error = %v", err)
	}
	if track == nil || track.ID != "track-1" || track.Name != "Song" {
		t.Fatalf("track = %+v", track)
	}
	if track.Artists != "Artist A, Artist B" {
		t.Errorf("Artists = %q", track.Artists)
	}
	if track.ProgressMs != 42000 {
		t.Errorf("ProgressMs = %d", track.ProgressMs)
	}
}

func TestCurrentlyPlayingNothing(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := &Client{TokenSource: newTokenSource(t, &tokenCalls), URL: srv.URL}
	track, err := c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatalf("CurrentlyPlaying() error = %v", err)
	}
	if track != nil {
		t.Errorf("track = %+v, want nil on 204", track)
	}
}

func TestCurrentlyPlayingPausedIsNil(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := playingBody("track-1", "Song", 1000)
		body["is_playing"] = false
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := &Client{TokenSource: newTokenSource(t, &tokenCalls), URL: srv.URL}
	track, err := c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if track != nil {
		t.Errorf("track = %+v, want nil when paused", track)
	}
}

func TestCurrentlyPlayingRetriesOnceOn401(t *testing.T) {
	tokenCalls := 0
	apiCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls++
		if apiCalls == 1 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(playingBody("track-2", "Next", 9000))
	}))
	defer srv.Close()

	c := &Client{TokenSource: newTokenSource(t, &tokenCalls), URL: srv.URL}
	track, err := c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatalf("CurrentlyPlaying() error = %v", err)
	}
	if track == nil || track.ID != "track-2" {
		t.Fatalf("track = %+v", track)
	}
	if apiCalls != 2 {
		t.Errorf("api calls = %d, want 2 (single retry)", apiCalls)
	}
	if tokenCalls != 2 {
		t.Errorf("token calls = %d, want 2 (initial + forced refresh)", tokenCalls)
	}
}

func TestCurrentlyPlayingSecond401IsAuthError(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &Client{TokenSource: newTokenSource(t, &tokenCalls), URL: srv.URL}
	if _, err := c.CurrentlyPlaying(context.Background()); !errors.Is(err, ErrAuth) {
		t.Errorf("error = %v, want ErrAuth", err)
	}
}

func TestCurrentlyPlayingServerError(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{TokenSource: newTokenSource(t, &tokenCalls), URL: srv.URL}
	if _, err := c.CurrentlyPlaying(context.Background()); err == nil {
		t.Error("CurrentlyPlaying() should surface a 500")
	}
}
