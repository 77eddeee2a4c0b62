package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type HealthController struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func NewHealthController(pool *pgxpool.Pool, redis *redis.Client) *HealthController {
	return &HealthController{pool: pool, redis: redis}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness pings every backing store; the response lists each one so an
// operator can tell which dependency is down.
func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"postgres": h.pool.Ping,
		"redis":    func(ctx context.Context) error { return h.redis.Ping(ctx).Err() },
	}

	result := make(map[string]string, len(checks)+1)
	ready := true
	for name, ping := range checks {
		if err := ping(ctx); err != nil {
			result[name] = "unavailable"
			ready = false
			continue
		}
		result[name] = "ok"
	}

	if !ready {
		result["status"] = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, result)
		return
	}
	result["status"] = "ready"
	writeJSON(w, http.StatusOK, result)
}
