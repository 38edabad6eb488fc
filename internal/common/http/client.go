// internal/common/http/client.go
package http

import (
	"net/http"
	"time"

	"consult-intake/internal/common/logger"
)

// NewClient returns an *http.Client for outbound collaborator calls
// (payment provider, search cluster). Requests are logged at debug level
// with their duration; failures at warn.
func NewClient(timeout time.Duration, log logger.Logger) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewLoggingTransport(http.DefaultTransport, log),
	}
}

// NewLoggingTransport wraps next so every round trip is logged.
func NewLoggingTransport(next http.RoundTripper, log logger.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next, logger: log}
}

type loggingTransport struct {
	next   http.RoundTripper
	logger logger.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	fields := map[string]interface{}{
		"method":     req.Method,
		"host":       req.URL.Host,
		"path":       req.URL.Path,
		"durationMs": time.Since(start).Milliseconds(),
	}
	log := logger.FromContext(req.Context(), t.logger)
	if err != nil {
		fields["error"] = err
		log.Warn("Outbound request failed", fields)
		return nil, err
	}
	fields["status"] = resp.StatusCode
	log.Debug("Outbound request", fields)
	return resp, nil
}
