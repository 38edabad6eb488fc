package api

import (
	"context"
	"net/http"
	"time"
)

// Check reports whether a backing service answers.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness. Readiness runs every check
// with a shared deadline.
type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
	now     func() time.Time
}

func NewHealthHandler(checks map[string]Check, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout, now: time.Now}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status, code = "unavailable", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": results,
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}
