package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"consult-intake/internal/common/logger"
)

func TestClient_LogsRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	client := NewClient(time.Second, logger.NewZapAdapter(zap.New(core)))

	resp, err := client.Get(srv.URL + "/v1/checkout/sessions")
	require.NoError(t, err)
	resp.Body.Close()

	entries := logs.FilterMessage("Outbound request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/v1/checkout/sessions", fields["path"])
	assert.EqualValues(t, http.StatusAccepted, fields["status"])
}

func TestClient_LogsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	client := NewClient(time.Second, logger.NewZapAdapter(zap.New(core)))

	_, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Outbound request failed").Len())
}
