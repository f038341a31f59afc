// Package chat runs the Twitch IRC bot: it joins the configured channel,
// answers the stat commands, and is the single outbound send path used by the
// now-playing announcer.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/stimodev/stimobot/resolver"
	"github.com/stimodev/stimobot/stats"
	"github.com/stimodev/stimobot/telemetry"
)

const commandPrefix = "!"

// Bot wires the IRC client to the resolver and aggregator.
type Bot struct {
	Channel       string
	BotUsername   string
	OAuthToken    string
	OwnClubID     string
	VersusVIPOnly bool

	Resolver  *resolver.Resolver
	Stats     *stats.Aggregator

	client *twitch.Client
	// say is the outbound send path; replaced in tests.
	say func(channel, text string)
}

// New builds a Bot with a connected-client send path.
func New(channel, username, oauthToken, ownClubID string, vipOnly bool, res *resolver.Resolver, agg *stats.Aggregator) *Bot {
	b := &Bot{
		Channel:       channel,
		BotUsername:   username,
		OAuthToken:    oauthToken,
		OwnClubID:     ownClubID,
		VersusVIPOnly: vipOnly,
		Resolver:      res,
		Stats:         agg,
	}
	b.client = twitch.NewClient(username, oauthToken)
	b.say = b.client.Say
	return b
}

// Say sends a message to the bot's channel. Exposed for the announcer.
func (b *Bot) Say(text string) {
	b.say(b.Channel, text)
}

// Run connects and blocks until ctx is cancelled or the connection fails.
func (b *Bot) Run(ctx context.Context) error {
	b.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.HandleMessage(ctx, msg)
	})
	b.client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("channel", b.Channel), slog.String("bot", b.BotUsername))
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := b.client.Disconnect(); err != nil {
			slog.Debug("twitch disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	b.client.Join(b.Channel)
	if err := b.client.Connect(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	<-done
	return nil
}

// HandleMessage routes one inbound chat message. Exported for tests.
func (b *Bot) HandleMessage(ctx context.Context, msg twitch.PrivateMessage) {
	text := strings.TrimSpace(msg.Message)
	if !strings.HasPrefix(text, commandPrefix) {
		return
	}
	parts := strings.SplitN(strings.TrimPrefix(text, commandPrefix), " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "hi":
		telemetry.CountCommand("hi")
		b.Say("Bye.")
	case "ping":
		telemetry.CountCommand("ping")
		b.Say("Pong! 🏓")
	case "record":
		telemetry.CountCommand("record")
		b.sendReport(ctx, b.OwnClubID)
	case "versus", "vs":
		telemetry.CountCommand("versus")
		if b.VersusVIPOnly && !isPrivileged(msg.User) {
			b.Say(fmt.Sprintf("@%s sorry, !versus is limited to VIPs and mods.", msg.User.DisplayName))
			return
		}
		if arg == "" {
			b.Say("Usage: !versus <Club Name or ID>")
			return
		}
		b.handleVersus(ctx, arg)
	}
}

// isPrivileged reports whether the sender may use gated commands.
func isPrivileged(u twitch.User) bool {
	for _, badge := range []string{"broadcaster", "moderator", "vip"} {
		if u.Badges[badge] > 0 {
			return true
		}
	}
	return false
}

func (b *Bot) handleVersus(ctx context.Context, query string) {
	res := b.Resolver.Resolve(ctx, query)
	switch res.Kind {
	case resolver.NotFound:
		b.Say("Could not find matching club.")
	case resolver.Ambiguous:
		names := make([]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			names = append(names, fmt.Sprintf("%s (id %s)", c.Name, c.ClubID))
		}
		b.Say("Did you mean: " + strings.Join(names, ", ") + "? Try !versus <id>.")
	default:
		b.sendReport(ctx, res.ClubID)
	}
}

func (b *Bot) sendReport(ctx context.Context, clubID string) {
	if clubID == "" {
		b.Say("Could not find matching club.")
		return
	}
	report, err := b.Stats.BuildReport(ctx, clubID)
	if err != nil {
		slog.Warn("report unavailable", slog.String("club_id", clubID), slog.Any("err", err))
		b.Say("Could not fetch opponent stats.")
		return
	}
	b.Say(report)
}
