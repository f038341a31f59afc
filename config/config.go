// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Required credentials are checked by Validate, which is the only fatal path at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Twitch chat
	TwitchChannel      string
	TwitchBotUsername  string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string
	// Login used for the is-live check; defaults to TwitchChannel.
	BroadcasterLogin string

	// Pro Clubs
	ClubID   string
	Platform string

	// Spotify
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	SpotifyPollInterval time.Duration

	// Discord presence notification
	DiscordToken      string
	DiscordChannelID  string
	DiscordWebhookURL string

	// Behavior knobs
	AliasFile            string
	VersusVIPOnly        bool
	AnnounceRequireLive  bool
	ChatMessageLimit     int
	ResolveMinScore      int
	ResolveAmbiguityBand int

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail on missing
// optional variables; those disable features (Spotify poller, Discord notify).
// Use Validate() for the required chat credentials.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.BroadcasterLogin = os.Getenv("TWITCH_BROADCASTER_LOGIN")
	if cfg.BroadcasterLogin == "" {
		cfg.BroadcasterLogin = cfg.TwitchChannel
	}

	cfg.ClubID = os.Getenv("CLUB_ID")
	cfg.Platform = os.Getenv("PLATFORM")
	if cfg.Platform == "" {
		cfg.Platform = "common-gen5"
	}

	cfg.SpotifyClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	cfg.SpotifyClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	cfg.SpotifyRefreshToken = os.Getenv("SPOTIFY_REFRESH_TOKEN")
	cfg.SpotifyPollInterval = 5 * time.Second
	if v := os.Getenv("SPOTIFY_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SPOTIFY_POLL_INTERVAL %q", v)
		}
		cfg.SpotifyPollInterval = d
	}

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	cfg.DiscordChannelID = os.Getenv("DISCORD_CHANNEL_ID")
	cfg.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")

	cfg.AliasFile = os.Getenv("ALIAS_FILE")
	if cfg.AliasFile == "" {
		cfg.AliasFile = "club_aliases.json"
	}
	cfg.VersusVIPOnly = os.Getenv("VERSUS_VIP_ONLY") == "1"
	cfg.AnnounceRequireLive = os.Getenv("ANNOUNCE_REQUIRE_LIVE") == "1"

	cfg.ChatMessageLimit = 480
	if v := os.Getenv("CHAT_MESSAGE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CHAT_MESSAGE_LIMIT %q", v)
		}
		cfg.ChatMessageLimit = n
	}

	// Fuzzy-resolution tunables. The right cutoff depends on how similar real
	// club names are on a platform, so both are adjustable rather than fixed.
	cfg.ResolveMinScore = 50
	if v := os.Getenv("RESOLVE_MIN_SCORE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return nil, fmt.Errorf("invalid RESOLVE_MIN_SCORE %q", v)
		}
		cfg.ResolveMinScore = n
	}
	cfg.ResolveAmbiguityBand = 5
	if v := os.Getenv("RESOLVE_AMBIGUITY_BAND"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid RESOLVE_AMBIGUITY_BAND %q", v)
		}
		cfg.ResolveAmbiguityBand = n
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// Validate checks the required startup credentials for the chat bot.
func (c *Config) Validate() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	if c.ClubID == "" {
		return fmt.Errorf("missing CLUB_ID: the bot needs its own club identifier for !record")
	}
	return nil
}

// SpotifyEnabled reports whether the now-playing poller has enough credentials to run.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != "" && c.SpotifyRefreshToken != ""
}

// DiscordEnabled reports whether any Discord notification path is configured.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordWebhookURL != "" || (c.DiscordToken != "" && c.DiscordChannelID != "")
}
