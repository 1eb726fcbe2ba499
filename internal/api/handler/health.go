package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/redis/go-redis/v9"
)

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
type HealthHandler struct {
	ledger  ledger.Pinger
	redis   redis.Cmdable
	enabled bool
}

// NewHealthHandler builds the probes. ledger and redis may be nil when the
// backend has nothing to ping. enabled is false when the economy failed to
// bootstrap.
func NewHealthHandler(l ledger.Pinger, redis redis.Cmdable, enabled bool) *HealthHandler {
	return &HealthHandler{ledger: l, redis: redis, enabled: enabled}
}

// Live always reports OK – if the process is up, it's live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks the ledger and Redis, and that the economy is enabled.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if !h.enabled {
		RespondError(w, r, http.StatusServiceUnavailable, "health/economy-disabled", "system account bootstrap failed")
		return
	}

	if h.ledger != nil {
		if err := h.ledger.Ping(ctx); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/ledger-unavailable", "ledger unavailable")
			return
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/redis-unavailable", "redis unavailable")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
