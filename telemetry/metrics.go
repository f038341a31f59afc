// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsHandled    *prometheus.CounterVec
	ReportsBuilt       prometheus.Counter
	ReportsFailed      prometheus.Counter
	AnnouncementsSent  prometheus.Counter
	ProClubsErrors     prometheus.Counter
	TokenRefreshes     *prometheus.CounterVec
	AliasesDiscovered  prometheus.Counter

	// Gauges
	TrackPlayingGauge prometheus.Gauge // 1=tracking a song, 0=idle
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_handled_total", Help: "Chat commands handled, by command name"}, []string{"command"})
		ReportsBuilt = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_reports_built_total", Help: "Stat reports built successfully"})
		ReportsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_reports_failed_total", Help: "Stat reports that came back unavailable"})
		AnnouncementsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_track_announcements_total", Help: "Now-playing announcements sent to chat"})
		ProClubsErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_proclubs_errors_total", Help: "Failed Pro Clubs API requests"})
		TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_token_refreshes_total", Help: "OAuth token refreshes, by provider"}, []string{"provider"})
		AliasesDiscovered = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_club_aliases_discovered_total", Help: "New club aliases persisted"})
		TrackPlayingGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_track_playing", Help: "Whether the poller is tracking a song (1) or idle (0)"})
	})
}

// CountProClubsError increments the EA request failure counter if metrics are initialized.
func CountProClubsError() {
	if ProClubsErrors != nil {
		ProClubsErrors.Inc()
	}
}

// CountCommand increments the per-command counter if metrics are initialized.
func CountCommand(name string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(name).Inc()
	}
}

// CountRefresh increments the per-provider token refresh counter.
func CountRefresh(provider string) {
	if TokenRefreshes != nil {
		TokenRefreshes.WithLabelValues(provider).Inc()
	}
}

// SetTracking sets the playing gauge to 1 when tracking else 0.
func SetTracking(tracking bool) {
	if TrackPlayingGauge != nil {
		if tracking {
			TrackPlayingGauge.Set(1)
		} else {
			TrackPlayingGauge.Set(0)
		}
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
