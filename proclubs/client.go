// Package proclubs wraps the read-only EA Sports FC Pro Clubs endpoints the bot
// uses: club search, overall stats, match history, and the all-time leaderboard.
// The API is unauthenticated but rejects requests without a browser User-Agent.
package proclubs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/stimodev/stimobot/telemetry"
)

const defaultBaseURL = "https://proclubs.ea.com/api/fc"

// userAgent mimics a browser; EA's edge returns 403 for default Go clients.
const userAgent = "Mozilla/5.0"

// Match types accepted by the matches endpoint.
const (
	MatchTypeLeague  = "leagueMatch"
	MatchTypePlayoff = "playoffMatch"
)

// ClubStats is a snapshot of one club's aggregate record. EA serves every
// numeric field as a string; values are kept raw and parsed where compared.
type ClubStats struct {
	ClubID         string `json:"clubId"`
	Name           string `json:"name"`
	SkillRating    string `json:"skillRating"`
	GamesPlayed    string `json:"gamesPlayed"`
	Wins           string `json:"wins"`
	Ties           string `json:"ties"`
	Losses         string `json:"losses"`
	WinStreak      string `json:"wstreak"`
	UnbeatenStreak string `json:"unbeatenstreak"`
}

// ClubDetails is the nested club record inside match entries.
type ClubDetails struct {
	Name string `json:"name"`
}

// MatchClub is one side of a match record.
type MatchClub struct {
	Goals   string       `json:"goals"`
	Name    string       `json:"name"`
	Details *ClubDetails `json:"details"`
}

// Match is one historical match involving two clubs, keyed by club id.
type Match struct {
	MatchID          string               `json:"matchId"`
	Timestamp        int64                `json:"timestamp"`
	OpponentClubName string               `json:"opponentClubName"`
	Clubs            map[string]MatchClub `json:"clubs"`
}

// SearchResult is one candidate from the club-name search.
type SearchResult struct {
	ClubID string
	Name   string
}

type Client struct {
	Platform   string
	HTTPClient *http.Client
	// BaseURL overrides defaultBaseURL when set (tests).
	BaseURL string
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// get performs a GET against path with query params and decodes the body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.base() + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http().Do(req)
	if err != nil {
		telemetry.CountProClubsError()
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		telemetry.CountProClubsError()
		return fmt.Errorf("proclubs %s failed: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		telemetry.CountProClubsError()
		return fmt.Errorf("proclubs %s decode: %w", path, err)
	}
	return nil
}

// SearchClubs searches clubs by name on the configured platform.
func (c *Client) SearchClubs(ctx context.Context, name string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("platform", c.Platform)
	params.Set("clubName", name)
	var body []struct {
		ClubInfo struct {
			Name   string      `json:"name"`
			ClubID json.Number `json:"clubId"`
		} `json:"clubInfo"`
	}
	if err := c.get(ctx, "/allTimeLeaderboard/search", params, &body); err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(body))
	for _, e := range body {
		if e.ClubInfo.ClubID.String() == "" || e.ClubInfo.Name == "" {
			continue
		}
		out = append(out, SearchResult{ClubID: e.ClubInfo.ClubID.String(), Name: e.ClubInfo.Name})
	}
	return out, nil
}

// OverallStats fetches the aggregate record for a club id.
func (c *Client) OverallStats(ctx context.Context, clubID string) (*ClubStats, error) {
	params := url.Values{}
	params.Set("platform", c.Platform)
	params.Set("clubIds", clubID)
	var body []ClubStats
	if err := c.get(ctx, "/clubs/overallStats", params, &body); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("proclubs: no stats for club %s", clubID)
	}
	return &body[0], nil
}

// Matches fetches the match history feed of the given type for a club id.
func (c *Client) Matches(ctx context.Context, clubID, matchType string) ([]Match, error) {
	params := url.Values{}
	params.Set("platform", c.Platform)
	params.Set("clubIds", clubID)
	params.Set("matchType", matchType)
	var body []Match
	if err := c.get(ctx, "/clubs/matches", params, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// LeaderboardRank returns the 1-based all-time leaderboard position of a club,
// or 0 when the club is unranked.
func (c *Client) LeaderboardRank(ctx context.Context, clubID string) (int, error) {
	params := url.Values{}
	params.Set("platform", c.Platform)
	var body []struct {
		ClubInfo struct {
			ClubID json.Number `json:"clubId"`
		} `json:"clubInfo"`
	}
	if err := c.get(ctx, "/allTimeLeaderboard", params, &body); err != nil {
		return 0, err
	}
	for i, e := range body {
		if e.ClubInfo.ClubID.String() == clubID {
			return i + 1, nil
		}
	}
	return 0, nil
}
