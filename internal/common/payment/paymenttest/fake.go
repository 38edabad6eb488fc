// Package paymenttest provides an in-memory payment.Gateway.
package paymenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"consult-intake/internal/common/payment"
)

// Signature is the only header value FakeGateway accepts on events.
const Signature = "t=1,v1=fake"

// FakeGateway records session requests and parses unsigned JSON events of the
// shape {"type","correlationId","paymentReference"}.
type FakeGateway struct {
	mu         sync.Mutex
	Requests   []payment.SessionRequest
	SessionErr error
}

func (f *FakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	id := fmt.Sprintf("cs_test_%d", len(f.Requests))
	return &payment.Session{ID: id, RedirectURL: "https://checkout.test/pay/" + id}, nil
}

func (f *FakeGateway) ParseEvent(payload []byte, signatureHeader string) (*payment.Event, error) {
	if signatureHeader != Signature {
		return nil, fmt.Errorf("%w: bad signature", payment.ErrInvalidEvent)
	}
	var ev payment.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidEvent, err)
	}
	return &ev, nil
}

// LastRequest returns the most recent session request, if any.
func (f *FakeGateway) LastRequest() (payment.SessionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return payment.SessionRequest{}, false
	}
	return f.Requests[len(f.Requests)-1], true
}

// CompletedEvent builds a payload FakeGateway parses as a completed payment.
func CompletedEvent(correlationID, reference string) []byte {
	raw, _ := json.Marshal(payment.Event{
		Type:             payment.EventCompleted,
		CorrelationID:    correlationID,
		PaymentReference: reference,
	})
	return raw
}
