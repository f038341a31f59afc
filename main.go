// Command stimobot is a single-process Twitch chat bot for a Pro Clubs stream.
// It:
//   - Loads configuration and initializes structured logging.
//   - Joins the configured Twitch channel and answers !hi, !ping, !record,
//     and !versus/!vs with EA Pro Clubs stat reports.
//   - Polls Spotify and announces track changes in chat, optionally only
//     while the broadcast is live.
//   - Posts a one-shot Discord "bot online" notification at startup.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stimodev/stimobot/alias"
	"github.com/stimodev/stimobot/chat"
	"github.com/stimodev/stimobot/config"
	"github.com/stimodev/stimobot/discord"
	"github.com/stimodev/stimobot/nowplaying"
	"github.com/stimodev/stimobot/proclubs"
	"github.com/stimodev/stimobot/resolver"
	"github.com/stimodev/stimobot/server"
	"github.com/stimodev/stimobot/spotify"
	"github.com/stimodev/stimobot/stats"
	"github.com/stimodev/stimobot/telemetry"
	"github.com/stimodev/stimobot/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config; missing required credentials are the only fatal startup path.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("stimobot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Alias table (single JSON document, serialized through the store's mutex)
	aliases, err := alias.Load(cfg.AliasFile)
	if err != nil {
		slog.Error("failed to load alias table", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("alias table loaded", slog.String("file", cfg.AliasFile), slog.Int("count", aliases.Len()))

	// Clients
	clubs := &proclubs.Client{Platform: cfg.Platform}
	res := &resolver.Resolver{
		Aliases:  aliases,
		Search:   clubs,
		MinScore: cfg.ResolveMinScore,
		Band:     cfg.ResolveAmbiguityBand,
	}
	agg := &stats.Aggregator{Clubs: clubs, Aliases: aliases, MessageLimit: cfg.ChatMessageLimit}
	bot := chat.New(cfg.TwitchChannel, cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.ClubID, cfg.VersusVIPOnly, res, agg)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One-shot Discord presence notification
	if cfg.DiscordEnabled() {
		notifier := &discord.Notifier{
			WebhookURL: cfg.DiscordWebhookURL,
			BotToken:   cfg.DiscordToken,
			ChannelID:  cfg.DiscordChannelID,
		}
		go notifier.AnnounceOnline(ctx, cfg.TwitchBotUsername)
	}

	// Spotify now-playing announcer
	if cfg.SpotifyEnabled() {
		player := &spotify.Client{TokenSource: &spotify.TokenSource{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RefreshToken: cfg.SpotifyRefreshToken,
		}}
		announcer := &nowplaying.Announcer{
			Source:   player,
			Say:      bot.Say,
			Interval: cfg.SpotifyPollInterval,
		}
		if cfg.AnnounceRequireLive && cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
			checker := &twitchapi.LiveChecker{
				Helix: &twitchapi.HelixClient{
					AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
					ClientID:       cfg.TwitchClientID,
				},
				Login: cfg.BroadcasterLogin,
			}
			announcer.Live = checker.IsLive
		}
		go announcer.Run(ctx)
	} else {
		slog.Info("spotify poller disabled (missing credentials)")
	}

	// HTTP server (health/status/metrics)
	go func() {
		if err := server.Start(ctx, aliases, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Chat bot blocks until shutdown
	if err := bot.Run(ctx); err != nil {
		slog.Error("twitch chat error", slog.Any("err", err))
	}
	slog.Info("shutting down")
}
