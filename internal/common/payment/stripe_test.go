package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/logger"
)

const (
	testSecret  = "whsec_test"
	consultID   = "3f2b8c1a-9d4e-4f6a-8b7c-1234567890ab"
	checkoutURL = "https://checkout.stripe.com/c/pay/cs_test_1"
)

func newTestGateway(t *testing.T, backend string) *StripeGateway {
	cfg := config.PaymentConfig{SecretKey: "sk_test_123", WebhookSecret: testSecret}
	return NewStripeGateway(cfg, http.DefaultClient, logger.NewTestLogger(t), WithBackendURL(backend))
}

func TestCreateSession(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"` + checkoutURL + `"}`))
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL)
	s, err := gw.CreateSession(context.Background(), SessionRequest{
		CorrelationID: consultID,
		AmountCents:   1400,
		Currency:      "eur",
		ProductName:   "Arrêt de travail médical",
		CustomerEmail: "jean.dupont@example.fr",
		SuccessURL:    "https://app.test/merci?consultation_id={CONSULTATION_ID}&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://app.test/annule?consultation_id={CONSULTATION_ID}",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, checkoutURL, s.RedirectURL)

	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, consultID, form["client_reference_id"])
	assert.Equal(t, consultID, form["metadata[consultation_id]"])
	assert.Equal(t, consultID, form["payment_intent_data[metadata][consultation_id]"])
	assert.Equal(t, "1400", form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, "eur", form["line_items[0][price_data][currency]"])
	assert.Equal(t, "1", form["line_items[0][quantity]"])
	assert.Equal(t, "jean.dupont@example.fr", form["customer_email"])
	assert.Equal(t,
		"https://app.test/merci?consultation_id="+consultID+"&session_id={CHECKOUT_SESSION_ID}",
		form["success_url"])
}

func TestCreateSession_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	}))
	defer srv.Close()

	_, err := newTestGateway(t, srv.URL).CreateSession(context.Background(), SessionRequest{CorrelationID: consultID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create checkout session")
}

func sign(t *testing.T, payload string, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParseEvent(t *testing.T) {
	gw := newTestGateway(t, "http://unused")

	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name: "checkout completed",
			payload: `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":` +
				`{"id":"cs_1","object":"checkout.session","client_reference_id":"` + consultID + `",` +
				`"payment_status":"paid","payment_intent":"pi_123"}}}`,
			want: Event{ID: "evt_1", Type: EventCompleted, ProviderType: "checkout.session.completed",
				CorrelationID: consultID, PaymentReference: "pi_123"},
		},
		{
			name: "completed falls back to metadata",
			payload: `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":` +
				`{"id":"cs_2","object":"checkout.session","metadata":{"consultation_id":"` + consultID + `"},` +
				`"payment_status":"paid","payment_intent":"pi_456"}}}`,
			want: Event{ID: "evt_2", Type: EventCompleted, ProviderType: "checkout.session.completed",
				CorrelationID: consultID, PaymentReference: "pi_456"},
		},
		{
			name: "unpaid completion is ignored",
			payload: `{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":` +
				`{"id":"cs_3","object":"checkout.session","client_reference_id":"x","payment_status":"unpaid"}}}`,
			want: Event{ID: "evt_3", Type: EventIgnored, ProviderType: "checkout.session.completed"},
		},
		{
			name: "payment failed",
			payload: `{"id":"evt_4","object":"event","type":"payment_intent.payment_failed","data":{"object":` +
				`{"id":"pi_9","object":"payment_intent","metadata":{"consultation_id":"` + consultID + `"}}}}`,
			want: Event{ID: "evt_4", Type: EventFailed, ProviderType: "payment_intent.payment_failed",
				CorrelationID: consultID, PaymentReference: "pi_9"},
		},
		{
			name:    "other events are ignored",
			payload: `{"id":"evt_5","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`,
			want:    Event{ID: "evt_5", Type: EventIgnored, ProviderType: "customer.created"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := gw.ParseEvent([]byte(tt.payload), sign(t, tt.payload, testSecret))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *ev)
		})
	}
}

func TestParseEvent_RejectsBadSignature(t *testing.T) {
	gw := newTestGateway(t, "http://unused")
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`

	_, err := gw.ParseEvent([]byte(payload), sign(t, payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = gw.ParseEvent([]byte(payload), "")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}
