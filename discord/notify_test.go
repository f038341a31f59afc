package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnnounceOnlineWebhook(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &Notifier{WebhookURL: srv.URL}
	n.AnnounceOnline(context.Background(), "stimobot")

	if !strings.Contains(got["content"], "stimobot is now online") {
		t.Errorf("content = %q", got["content"])
	}
}

func TestAnnounceOnlineWebhookFailureIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	// Must not panic or error; failures are logged only.
	n := &Notifier{WebhookURL: srv.URL}
	n.AnnounceOnline(context.Background(), "stimobot")
}

func TestAnnounceOnlineUnconfiguredIsNoop(t *testing.T) {
	n := &Notifier{}
	n.AnnounceOnline(context.Background(), "stimobot")
}

func TestWebhookWinsOverBotToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// A bot token is configured too, but the webhook path must be taken; the
	// bogus token would otherwise fail loudly trying to open a session.
	n := &Notifier{WebhookURL: srv.URL, BotToken: "bogus", ChannelID: "123"}
	n.AnnounceOnline(context.Background(), "stimobot")
	if !called {
		t.Error("webhook was not called")
	}
}
