// Package stats composes the chat-facing club report: overall record, all-time
// rank, recent form, and a last-match summary. Each upstream field degrades to a
// placeholder on failure; only a total stats failure makes the report unavailable.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stimodev/stimobot/alias"
	"github.com/stimodev/stimobot/proclubs"
	"github.com/stimodev/stimobot/telemetry"
)

// ErrUnavailable is returned when the stats endpoint itself fails; without it
// there is nothing worth reporting.
var ErrUnavailable = errors.New("stats: opponent stats unavailable")

// formLength bounds the recent-form sequence.
const formLength = 5

// Provider is the slice of the Pro Clubs client the aggregator uses.
type Provider interface {
	OverallStats(ctx context.Context, clubID string) (*proclubs.ClubStats, error)
	Matches(ctx context.Context, clubID, matchType string) ([]proclubs.Match, error)
	LeaderboardRank(ctx context.Context, clubID string) (int, error)
}

type Aggregator struct {
	Clubs   Provider
	Aliases *alias.Store // optional; opponent names found in history are recorded
	// MessageLimit truncates the final report (rune count). Zero means 480.
	MessageLimit int
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Aggregator) limit() int {
	if a.MessageLimit > 0 {
		return a.MessageLimit
	}
	return 480
}

// BuildReport fetches everything for a club concurrently and formats one line.
func (a *Aggregator) BuildReport(ctx context.Context, clubID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "stats", "build_report")
	defer span.End()

	var (
		overall *proclubs.ClubStats
		matches []proclubs.Match
		rank    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overall, err = a.Clubs.OverallStats(gctx, clubID)
		return err // only the stats fetch is load-bearing
	})
	g.Go(func() error {
		matches = a.fetchMatches(gctx, clubID)
		return nil
	})
	g.Go(func() error {
		r, err := a.Clubs.LeaderboardRank(gctx, clubID)
		if err != nil {
			slog.Debug("leaderboard fetch failed", slog.Any("err", err))
			return nil
		}
		rank = r
		return nil
	})
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		telemetry.ReportsFailed.Inc()
		return "", ErrUnavailable
	}

	a.recordOpponents(clubID, matches)

	report := a.format(clubID, overall, matches, rank)
	telemetry.ReportsBuilt.Inc()
	telemetry.SetSpanSuccess(span)
	return report, nil
}

// fetchMatches merges the league and playoff feeds, newest first. Either feed
// failing just shortens the merged history.
func (a *Aggregator) fetchMatches(ctx context.Context, clubID string) []proclubs.Match {
	var merged []proclubs.Match
	for _, mt := range []string{proclubs.MatchTypeLeague, proclubs.MatchTypePlayoff} {
		ms, err := a.Clubs.Matches(ctx, clubID, mt)
		if err != nil {
			slog.Debug("match history fetch failed", slog.String("match_type", mt), slog.Any("err", err))
			continue
		}
		merged = append(merged, ms...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Timestamp > merged[j].Timestamp })
	return merged
}

// recordOpponents persists opponent names discovered in match history.
func (a *Aggregator) recordOpponents(clubID string, matches []proclubs.Match) {
	if a.Aliases == nil {
		return
	}
	for _, m := range matches {
		oppID, opp := opponentSide(m, clubID)
		if oppID == "" {
			continue
		}
		name := opponentName(m, opp)
		if name == "" || name == "Unknown" {
			continue
		}
		if _, known := a.Aliases.Get(oppID); known {
			continue
		}
		if err := a.Aliases.Put(oppID, name); err != nil {
			slog.Warn("failed to record opponent alias", slog.String("club_id", oppID), slog.Any("err", err))
		}
	}
}

// Marker is a single win/draw/loss outcome derived from one match.
func marker(us, them int) string {
	switch {
	case us > them:
		return "✅"
	case us < them:
		return "❌"
	default:
		return "➖"
	}
}

// recentForm maps the newest matches to outcome markers. Matches missing either
// side's goals are skipped, not counted as draws.
func recentForm(matches []proclubs.Match, clubID string) []string {
	var form []string
	for _, m := range matches {
		if len(form) == formLength {
			break
		}
		_, opp := opponentSide(m, clubID)
		our, ok := m.Clubs[clubID]
		if !ok || opp == nil {
			continue
		}
		us, err1 := strconv.Atoi(our.Goals)
		them, err2 := strconv.Atoi(opp.Goals)
		if err1 != nil || err2 != nil {
			continue
		}
		form = append(form, marker(us, them))
	}
	return form
}

// opponentSide finds the non-us club entry in a match record.
func opponentSide(m proclubs.Match, clubID string) (string, *proclubs.MatchClub) {
	for id, c := range m.Clubs {
		if id != clubID {
			side := c
			return id, &side
		}
	}
	return "", nil
}

// opponentName resolves a display name through the fallback chain: explicit
// name field, nested details, the match-level opponent club name, then Unknown.
func opponentName(m proclubs.Match, opp *proclubs.MatchClub) string {
	if opp != nil && opp.Name != "" {
		return opp.Name
	}
	if opp != nil && opp.Details != nil && opp.Details.Name != "" {
		return opp.Details.Name
	}
	if m.OpponentClubName != "" {
		return m.OpponentClubName
	}
	return "Unknown"
}

// streakBadge tiers a streak count: ≤5 cold, 6–9 warm, 10–19 hot, 20+ blazing.
func streakBadge(raw string) string {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "❓"
	}
	switch {
	case n <= 5:
		return "❄️"
	case n <= 9:
		return "🔥"
	case n <= 19:
		return "🔥🔥"
	default:
		return "🔥🔥🔥"
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// lastMatchSummary describes the newest match, or a placeholder without one.
func (a *Aggregator) lastMatchSummary(matches []proclubs.Match, clubID string) string {
	for _, m := range matches {
		_, opp := opponentSide(m, clubID)
		our, ok := m.Clubs[clubID]
		if !ok || opp == nil {
			continue
		}
		name := opponentName(m, opp)
		summary := fmt.Sprintf("Last: %s-%s vs %s", orNA(our.Goals), orNA(opp.Goals), name)
		if m.Timestamp > 0 {
			days := int(a.now().Sub(time.Unix(m.Timestamp, 0)).Hours() / 24)
			if days >= 0 {
				summary += fmt.Sprintf(" (%dd ago)", days)
			}
		}
		return summary
	}
	return "Last match data not available"
}

// format builds the final status line and truncates it to the chat limit.
func (a *Aggregator) format(clubID string, s *proclubs.ClubStats, matches []proclubs.Match, rank int) string {
	name := s.Name
	if name == "" {
		name = "Club " + clubID
	}
	rankStr := "Unranked"
	if rank > 0 {
		rankStr = fmt.Sprintf("#%d", rank)
	}
	form := strings.Join(recentForm(matches, clubID), " ")
	if form == "" {
		form = "No matches"
	}

	line := fmt.Sprintf(
		"%s's Record | 📈 Rank: %s | 🏅 SR: %s | 🎮 %s | ✅ %s | ➖ %s | ❌ %s | "+
			"🔥 Win Streak: %s %s | 🛡️ Unbeaten: %s %s | %s | Recent Form: %s",
		strings.ToUpper(name), rankStr, orNA(s.SkillRating), orNA(s.GamesPlayed),
		orNA(s.Wins), orNA(s.Ties), orNA(s.Losses),
		orZero(s.WinStreak), streakBadge(orZero(s.WinStreak)),
		orZero(s.UnbeatenStreak), streakBadge(orZero(s.UnbeatenStreak)),
		a.lastMatchSummary(matches, clubID), form,
	)
	return truncate(line, a.limit())
}

// truncate bounds the line by rune count so a multi-byte emoji is never split.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
