package proclubs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{Platform: "common-gen5", BaseURL: srv.URL}
}

func TestSearchClubs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/allTimeLeaderboard/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("platform"); got != "common-gen5" {
			t.Errorf("platform = %q", got)
		}
		if got := r.URL.Query().Get("clubName"); got != "dragons" {
			t.Errorf("clubName = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "Mozilla/5.0" {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"clubInfo": {"name": "Dragons", "clubId": 1001}},
			{"clubInfo": {"name": "Dragonfly", "clubId": 1002}},
			{"clubInfo": {"name": "", "clubId": 9}}
		]`))
	})
	results, err := c.SearchClubs(context.Background(), "dragons")
	if err != nil {
		t.Fatalf("SearchClubs() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (nameless entry dropped)", len(results))
	}
	if results[0].ClubID != "1001" || results[0].Name != "Dragons" {
		t.Errorf("results[0] = %+v", results[0])
	}
}

func TestOverallStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clubs/overallStats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"clubId": "1001", "name": "Dragons", "skillRating": "1500",
			"gamesPlayed": "100", "wins": "60", "ties": "20", "losses": "20",
			"wstreak": "3", "unbeatenstreak": "12"}]`))
	})
	stats, err := c.OverallStats(context.Background(), "1001")
	if err != nil {
		t.Fatalf("OverallStats() error = %v", err)
	}
	if stats.Name != "Dragons" || stats.Wins != "60" || stats.UnbeatenStreak != "12" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestOverallStatsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	if _, err := c.OverallStats(context.Background(), "1001"); err == nil {
		t.Error("OverallStats() should fail on an empty body")
	}
}

func TestMatches(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("matchType"); got != MatchTypeLeague {
			t.Errorf("matchType = %q", got)
		}
		_, _ = w.Write([]byte(`[{"matchId": "m1", "timestamp": 1700000000,
			"clubs": {"1001": {"goals": "2", "details": {"name": "Dragons"}},
			          "2002": {"goals": "1", "details": {"name": "Blues"}}}}]`))
	})
	matches, err := c.Matches(context.Background(), "1001", MatchTypeLeague)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d", len(matches))
	}
	m := matches[0]
	if m.Clubs["2002"].Goals != "1" || m.Clubs["2002"].Details.Name != "Blues" {
		t.Errorf("match = %+v", m)
	}
}

func TestLeaderboardRank(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"clubInfo": {"clubId": 9}},
			{"clubInfo": {"clubId": 1001}},
			{"clubInfo": {"clubId": 55}}
		]`))
	})
	rank, err := c.LeaderboardRank(context.Background(), "1001")
	if err != nil {
		t.Fatalf("LeaderboardRank() error = %v", err)
	}
	if rank != 2 {
		t.Errorf("rank = %d, want 2", rank)
	}

	rank, err = c.LeaderboardRank(context.Background(), "424242")
	if err != nil {
		t.Fatal(err)
	}
	if rank != 0 {
		t.Errorf("rank = %d, want 0 for unranked club", rank)
	}
}

func TestNonOKStatusIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	if _, err := c.SearchClubs(context.Background(), "x"); err == nil {
		t.Error("SearchClubs() should surface non-200")
	}
	if _, err := c.Matches(context.Background(), "1", MatchTypeLeague); err == nil {
		t.Error("Matches() should surface non-200")
	}
	if _, err := c.LeaderboardRank(context.Background(), "1"); err == nil {
		t.Error("LeaderboardRank() should surface non-200")
	}
}
