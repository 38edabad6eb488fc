package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/logger"
)

// CorrelationPlaceholder is substituted with the consultation id in the
// success and cancel URLs. Stripe's own {CHECKOUT_SESSION_ID} is left alone.
const CorrelationPlaceholder = "{CONSULTATION_ID}"

const metadataKey = "consultation_id"

type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        logger.Logger
}

type StripeOption func(*stripe.BackendConfig)

// WithBackendURL points the API backend somewhere other than api.stripe.com.
func WithBackendURL(url string) StripeOption {
	return func(c *stripe.BackendConfig) { c.URL = stripe.String(url) }
}

func NewStripeGateway(cfg config.PaymentConfig, httpClient *http.Client, log logger.Logger, opts ...StripeOption) *StripeGateway {
	log = log.WithFields(map[string]interface{}{"component": "stripe"})
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     &leveledLogger{l: log},
		MaxNetworkRetries: stripe.Int64(1),
	}
	for _, opt := range opts {
		opt(backendCfg)
	}
	api := client.New(cfg.SecretKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
	})
	return &StripeGateway{api: api, webhookSecret: cfg.WebhookSecret, logger: log}
}

// CreateSession opens a hosted checkout in payment mode with a single line
// item. The correlation id travels as client_reference_id and in metadata on
// both the session and its payment intent.
func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.CorrelationID),
		SuccessURL:        stripe.String(substitute(req.SuccessURL, req.CorrelationID)),
		CancelURL:         stripe.String(substitute(req.CancelURL, req.CorrelationID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataKey: req.CorrelationID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(metadataKey, req.CorrelationID)
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: s.ID, RedirectURL: s.URL}, nil
}

// ParseEvent verifies the Stripe-Signature header and maps the event.
func (g *StripeGateway) ParseEvent(payload []byte, signatureHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	out := &Event{ID: ev.ID, ProviderType: string(ev.Type), Type: EventIgnored}
	switch string(ev.Type) {
	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ErrInvalidEvent, err)
		}
		if string(s.PaymentStatus) == "unpaid" {
			return out, nil
		}
		out.Type = EventCompleted
		out.CorrelationID = s.ClientReferenceID
		if out.CorrelationID == "" {
			out.CorrelationID = s.Metadata[metadataKey]
		}
		if s.PaymentIntent != nil {
			out.PaymentReference = s.PaymentIntent.ID
		}
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", ErrInvalidEvent, err)
		}
		out.Type = EventFailed
		out.CorrelationID = pi.Metadata[metadataKey]
		out.PaymentReference = pi.ID
	}
	return out, nil
}

func substitute(url, correlationID string) string {
	return strings.ReplaceAll(url, CorrelationPlaceholder, correlationID)
}

// leveledLogger routes stripe-go's internal logging through our Logger.
type leveledLogger struct {
	l logger.Logger
}

func (s *leveledLogger) Debugf(format string, v ...interface{}) { s.l.Debug(fmt.Sprintf(format, v...), nil) }
func (s *leveledLogger) Infof(format string, v ...interface{})  { s.l.Debug(fmt.Sprintf(format, v...), nil) }
func (s *leveledLogger) Warnf(format string, v ...interface{})  { s.l.Warn(fmt.Sprintf(format, v...), nil) }
func (s *leveledLogger) Errorf(format string, v ...interface{}) { s.l.Error(fmt.Sprintf(format, v...), nil) }
