package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/stimodev/stimobot/alias"
	"github.com/stimodev/stimobot/proclubs"
	"github.com/stimodev/stimobot/resolver"
	"github.com/stimodev/stimobot/stats"
	"github.com/stimodev/stimobot/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

type fakeClubs struct {
	stats    *proclubs.ClubStats
	statsErr error
	search   []proclubs.SearchResult
}

func (f *fakeClubs) OverallStats(ctx context.Context, clubID string) (*proclubs.ClubStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeClubs) Matches(ctx context.Context, clubID, matchType string) ([]proclubs.Match, error) {
	return nil, nil
}

func (f *fakeClubs) LeaderboardRank(ctx context.Context, clubID string) (int, error) {
	return 0, nil
}

func (f *fakeClubs) SearchClubs(ctx context.Context, name string) ([]proclubs.SearchResult, error) {
	return f.search, nil
}

func newTestBot(t *testing.T, clubs *fakeClubs, vipOnly bool) (*Bot, *[]string) {
	t.Helper()
	store, err := alias.Load(filepath.Join(t.TempDir(), "aliases.json"))
	if err != nil {
		t.Fatal(err)
	}
	var sent []string
	b := &Bot{
		Channel:       "stimo",
		OwnClubID:     "12345",
		VersusVIPOnly: vipOnly,
		Resolver:      &resolver.Resolver{Aliases: store, Search: clubs, MinScore: 50, Band: 5},
		Stats:         &stats.Aggregator{Clubs: clubs},
		say:           func(channel, text string) { sent = append(sent, text) },
	}
	return b, &sent
}

func msg(text string, badges map[string]int) twitch.PrivateMessage {
	return twitch.PrivateMessage{
		Message: text,
		User:    twitch.User{Name: "viewer", DisplayName: "Viewer", Badges: badges},
	}
}

func TestFixedReplies(t *testing.T) {
	b, sent := newTestBot(t, &fakeClubs{}, false)
	b.HandleMessage(context.Background(), msg("!hi", nil))
	b.HandleMessage(context.Background(), msg("!ping", nil))
	if len(*sent) != 2 || (*sent)[0] != "Bye." || !strings.HasPrefix((*sent)[1], "Pong!") {
		t.Errorf("sent = %v", *sent)
	}
}

func TestNonCommandIgnored(t *testing.T) {
	b, sent := newTestBot(t, &fakeClubs{}, false)
	b.HandleMessage(context.Background(), msg("hello there", nil))
	b.HandleMessage(context.Background(), msg("", nil))
	b.HandleMessage(context.Background(), msg("!unknowncommand", nil))
	if len(*sent) != 0 {
		t.Errorf("sent = %v, want nothing", *sent)
	}
}

func TestVersusUsage(t *testing.T) {
	b, sent := newTestBot(t, &fakeClubs{}, false)
	b.HandleMessage(context.Background(), msg("!versus", nil))
	if len(*sent) != 1 || !strings.HasPrefix((*sent)[0], "Usage:") {
		t.Errorf("sent = %v, want usage message", *sent)
	}
}

func TestVersusUnavailableStatsSingleMessage(t *testing.T) {
	clubs := &fakeClubs{statsErr: errors.New("down")}
	b, sent := newTestBot(t, clubs, false)
	b.HandleMessage(context.Background(), msg("!versus 42", nil))
	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want exactly 1", len(*sent))
	}
	if (*sent)[0] != "Could not fetch opponent stats." {
		t.Errorf("sent = %q", (*sent)[0])
	}
}

func TestVersusNotFound(t *testing.T) {
	b, sent := newTestBot(t, &fakeClubs{}, false)
	b.HandleMessage(context.Background(), msg("!versus no such club", nil))
	if len(*sent) != 1 || (*sent)[0] != "Could not find matching club." {
		t.Errorf("sent = %v", *sent)
	}
}

func TestVersusAmbiguousListsCandidates(t *testing.T) {
	clubs := &fakeClubs{search: []proclubs.SearchResult{
		{ClubID: "1", Name: "Wolves FC"},
		{ClubID: "2", Name: "Wolves FC"},
	}}
	b, sent := newTestBot(t, clubs, false)
	b.HandleMessage(context.Background(), msg("!vs wolves fc", nil))
	if len(*sent) != 1 {
		t.Fatalf("sent = %v", *sent)
	}
	reply := (*sent)[0]
	if !strings.HasPrefix(reply, "Did you mean:") || !strings.Contains(reply, "id 1") || !strings.Contains(reply, "id 2") {
		t.Errorf("reply = %q", reply)
	}
}

func TestVersusVIPGate(t *testing.T) {
	clubs := &fakeClubs{stats: &proclubs.ClubStats{Name: "Dragons", Wins: "1"}}
	b, sent := newTestBot(t, clubs, true)

	b.HandleMessage(context.Background(), msg("!versus 42", nil))
	if len(*sent) != 1 || !strings.Contains((*sent)[0], "limited to VIPs") {
		t.Fatalf("unprivileged sent = %v", *sent)
	}

	for _, badge := range []string{"broadcaster", "moderator", "vip"} {
		*sent = nil
		b.HandleMessage(context.Background(), msg("!versus 42", map[string]int{badge: 1}))
		if len(*sent) != 1 || !strings.Contains((*sent)[0], "DRAGONS") {
			t.Errorf("%s sent = %v, want a report", badge, *sent)
		}
	}
}

func TestRecordUsesOwnClub(t *testing.T) {
	clubs := &fakeClubs{stats: &proclubs.ClubStats{Name: "Home Club", Wins: "9"}}
	b, sent := newTestBot(t, clubs, false)
	b.HandleMessage(context.Background(), msg("!record", nil))
	if len(*sent) != 1 || !strings.Contains((*sent)[0], "HOME CLUB") {
		t.Errorf("sent = %v", *sent)
	}
}
