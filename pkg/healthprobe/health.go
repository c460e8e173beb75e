package healthprobe

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker backs the /health and /ready endpoints. Liveness is
// unconditional; readiness flips on once the feed and engine are up and
// flips off first thing during shutdown so the balancer drains us.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
}

// New creates a HealthChecker. Not ready until SetReady(true).
func New() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetReady marks the application ready (or not) to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime,omitempty"`
}

func (h *HealthChecker) write(w http.ResponseWriter, code int, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Health is the liveness handler: 200 whenever the process is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, probeResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready is the readiness handler: 200 when ready, 503 otherwise.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			h.write(w, http.StatusServiceUnavailable, probeResponse{Status: "not_ready"})
			return
		}
		h.write(w, http.StatusOK, probeResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}
