package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	Started time.Time
	DB      Pinger
	Log     *slog.Logger
}

// Health reports liveness and whole seconds since start.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, map[string]any{
		"status": "OK",
		"uptime": int64(time.Since(h.Started).Seconds()),
	}, http.StatusOK)
}

// Ready pings the database.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		h.Log.WarnContext(r.Context(), "readiness check failed", "error", err)
		JSONError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	JSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}
