// Package payment is the boundary to the hosted checkout provider.
package payment

import (
	"context"
	"errors"
)

// EventType is the provider-neutral kind of a signed payment event.
type EventType string

const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventIgnored   EventType = "ignored"
)

// ErrInvalidEvent is returned by ParseEvent for bad signatures and payloads.
var ErrInvalidEvent = errors.New("invalid payment event")

type SessionRequest struct {
	CorrelationID string
	AmountCents   int64
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID          string
	RedirectURL string
}

// Event is a verified provider notification. CorrelationID is the
// consultation id passed to CreateSession.
type Event struct {
	ID               string    `json:"id,omitempty"`
	Type             EventType `json:"type"`
	ProviderType     string    `json:"providerType,omitempty"`
	CorrelationID    string    `json:"correlationId,omitempty"`
	PaymentReference string    `json:"paymentReference,omitempty"`
}

// Gateway creates checkout sessions and verifies the provider's signed events.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ParseEvent(payload []byte, signatureHeader string) (*Event, error)
}
