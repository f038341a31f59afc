// Package nowplaying polls the Spotify playback state on a fixed interval and
// announces track changes in chat. A short debounce protects against skipped
// tracks flapping the announcement, and an optional live gate keeps the bot
// quiet while the broadcast is offline.
package nowplaying

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stimodev/stimobot/spotify"
	"github.com/stimodev/stimobot/telemetry"
)

// PlaybackSource reads the current playback state; satisfied by *spotify.Client.
type PlaybackSource interface {
	CurrentlyPlaying(ctx context.Context) (*spotify.Track, error)
}

type Announcer struct {
	Source PlaybackSource
	// Say sends one chat message; wired to the chat bot's send path.
	Say func(text string)
	// Live gates announcements when set. Track bookkeeping still advances while
	// offline so going live doesn't replay a backlog.
	Live func(ctx context.Context) bool
	// Interval between polls; zero means 5s.
	Interval time.Duration
	// DebounceBelowMs re-checks a change first seen under this progress. Zero means 1500.
	DebounceBelowMs int
	// DebounceWait is the re-read delay; zero means 1500ms.
	DebounceWait time.Duration

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration)

	lastID string
}

func (a *Announcer) interval() time.Duration {
	if a.Interval > 0 {
		return a.Interval
	}
	return 5 * time.Second
}

func (a *Announcer) debounceBelow() int {
	if a.DebounceBelowMs > 0 {
		return a.DebounceBelowMs
	}
	return 1500
}

func (a *Announcer) debounceWait() time.Duration {
	if a.DebounceWait > 0 {
		return a.DebounceWait
	}
	return 1500 * time.Millisecond
}

func (a *Announcer) doSleep(ctx context.Context, d time.Duration) {
	if a.sleep != nil {
		a.sleep(ctx, d)
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Run polls until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval())
	defer ticker.Stop()
	slog.Info("now-playing poller started", slog.Duration("interval", a.interval()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// poll runs one cycle of the Idle/Tracking state machine.
func (a *Announcer) poll(ctx context.Context) {
	track, err := a.Source.CurrentlyPlaying(ctx)
	if err != nil {
		slog.Debug("playback read failed", slog.Any("err", err))
		return
	}
	if track == nil {
		// Nothing playing: back to idle without emitting.
		if a.lastID != "" {
			a.lastID = ""
			telemetry.SetTracking(false)
		}
		return
	}
	if track.ID == a.lastID {
		return
	}

	// A change seen very early in the track may be a skip in progress; re-read
	// and require both reads to agree before announcing.
	if track.ProgressMs < a.debounceBelow() {
		a.doSleep(ctx, a.debounceWait())
		if ctx.Err() != nil {
			return
		}
		confirm, err := a.Source.CurrentlyPlaying(ctx)
		if err != nil || confirm == nil || confirm.ID != track.ID {
			return
		}
	}

	a.lastID = track.ID
	telemetry.SetTracking(true)

	if a.Live != nil && !a.Live(ctx) {
		slog.Debug("stream offline; skipping announcement", slog.String("track", track.Name))
		return
	}
	a.Say(announcement(track))
	if telemetry.AnnouncementsSent != nil {
		telemetry.AnnouncementsSent.Inc()
	}
}

func announcement(t *spotify.Track) string {
	if t.Artists == "" {
		return fmt.Sprintf("🎵 Now playing: %s", t.Name)
	}
	return fmt.Sprintf("🎵 Now playing: %s by %s", t.Name, t.Artists)
}
