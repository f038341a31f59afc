// Package server exposes the operational HTTP surface: health, status, and
// Prometheus metrics. It injects correlation IDs into request contexts for
// consistent logging.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stimodev/stimobot/alias"
	"github.com/stimodev/stimobot/telemetry"
)

type Handlers struct {
	aliases   *alias.Store
	startedAt time.Time
}

func NewHandlers(aliases *alias.Store) *Handlers {
	return &Handlers{aliases: aliases, startedAt: time.Now()}
}

// NewMux returns the HTTP handler with all routes.
func NewMux(aliases *alias.Store) http.Handler {
	h := NewHandlers(aliases)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.HandleFunc("/status", h.HandleStatus)

	return withCorrelation(mux)
}

// withCorrelation tags every request context with a correlation id, honoring an
// incoming X-Correlation-Id header when present.
func withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-Id")
		if corr == "" {
			corr = uuid.NewString()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-Id", corr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandleHealthz responds to liveness probes.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.aliases == nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStatus reports coarse process state for dashboards.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	aliasCount := 0
	if h.aliases != nil {
		aliasCount = h.aliases.Len()
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"alias_count":    aliasCount,
	})
}

// Start runs the HTTP server until ctx is cancelled.
func Start(ctx context.Context, aliases *alias.Store, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(aliases),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", slog.Any("err", err))
		}
	}()
	slog.Info("http server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
