// Package discord posts the one-shot "bot is online" notification. Two paths
// exist: a webhook fire-and-forget POST, and a bot-token message that is
// deleted after a fixed delay. Failures are logged and never fatal.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// deleteAfter is how long the bot-token announcement stays visible.
const deleteAfter = 60 * time.Second

type Notifier struct {
	WebhookURL string
	BotToken   string
	ChannelID  string
	HTTPClient *http.Client
	// DeleteAfter overrides deleteAfter (tests).
	DeleteAfter time.Duration
}

func (n *Notifier) http() *http.Client {
	if n.HTTPClient != nil {
		return n.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// AnnounceOnline sends the startup notification. The webhook path wins when
// both are configured.
func (n *Notifier) AnnounceOnline(ctx context.Context, botName string) {
	text := fmt.Sprintf("✅ - %s is now online!", botName)
	if n.WebhookURL != "" {
		n.postWebhook(ctx, text)
		return
	}
	if n.BotToken != "" && n.ChannelID != "" {
		n.sendAndDelete(ctx, text)
	}
}

// postWebhook fires the webhook and only logs the outcome.
func (n *Notifier) postWebhook(ctx context.Context, text string) {
	payload, _ := json.Marshal(map[string]string{"content": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("discord webhook request build failed", slog.Any("err", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http().Do(req)
	if err != nil {
		slog.Warn("discord webhook post failed", slog.Any("err", err))
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode >= 300 {
		slog.Warn("discord webhook post rejected", slog.String("status", resp.Status))
		return
	}
	slog.Info("discord online notification posted via webhook")
}

// sendAndDelete opens a short-lived session, posts the message, waits, deletes it.
func (n *Notifier) sendAndDelete(ctx context.Context, text string) {
	session, err := discordgo.New("Bot " + n.BotToken)
	if err != nil {
		slog.Warn("discord session create failed", slog.Any("err", err))
		return
	}
	if err := session.Open(); err != nil {
		slog.Warn("discord session open failed", slog.Any("err", err))
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Debug("discord session close", slog.Any("err", err))
		}
	}()

	msg, err := session.ChannelMessageSend(n.ChannelID, text)
	if err != nil {
		slog.Warn("discord announce failed", slog.Any("err", err))
		return
	}
	slog.Info("discord online notification sent", slog.String("channel_id", n.ChannelID))

	wait := n.DeleteAfter
	if wait <= 0 {
		wait = deleteAfter
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(wait):
	}
	if err := session.ChannelMessageDelete(n.ChannelID, msg.ID); err != nil {
		slog.Warn("discord announce delete failed", slog.Any("err", err))
	}
}
