package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/common/observability"
	"consult-intake/internal/models"
	"consult-intake/internal/repository"
)

const (
	consultationID = "3f2b8c1a-9d4e-4f6a-8b7c-1234567890ab"
	supportEmail   = "contact@consult-chrono.fr"
)

type MockRecords struct {
	mock.Mock
}

func (m *MockRecords) FindByID(ctx context.Context, id string) (*models.SubmittedRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*models.SubmittedRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRecords) MarkPaid(ctx context.Context, id string, ref *string, via models.ConfirmedVia) (bool, error) {
	args := m.Called(ctx, id, ref, via)
	return args.Bool(0), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, id string, via models.ConfirmedVia) error {
	return m.Called(ctx, id, via).Error(0)
}

func record(status models.PaymentStatus) *models.SubmittedRecord {
	return &models.SubmittedRecord{ID: consultationID, PaymentStatus: status}
}

var notFound = fmt.Errorf("%w: %s", repository.ErrNotFound, consultationID)

type waitSpy struct {
	calls []time.Duration
	err   error
}

func (w *waitSpy) wait(_ context.Context, d time.Duration) error {
	w.calls = append(w.calls, d)
	return w.err
}

func newService(t *testing.T, records *MockRecords, dispatcher *MockDispatcher, w *waitSpy) *Service {
	return NewService(records, dispatcher, config.ReconciliationConfig{GracePeriod: 3000}, supportEmail,
		observability.NewNoop(), logger.NewTestLogger(t), WithWait(w.wait))
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(r *MockRecords, d *MockDispatcher)
		waitErr      error
		wantState    State
		wantPath     Path
		wantWaits    int
		wantMarkPaid bool
	}{
		{
			name: "already done on first read",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentDone), nil).Once()
			},
			wantState: StateConfirmed,
			wantPath:  PathWebhook,
		},
		{
			name: "webhook lands during grace period",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Once()
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentDone), nil).Once()
			},
			wantState: StateConfirmed,
			wantPath:  PathWebhook,
			wantWaits: 1,
		},
		{
			name: "fallback update flips the row",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Twice()
				r.On("MarkPaid", mock.Anything, consultationID, (*string)(nil), models.ViaFallback).Return(true, nil).Once()
				d.On("Dispatch", mock.Anything, consultationID, models.ViaFallback).Return(nil).Once()
			},
			wantState:    StateConfirmed,
			wantPath:     PathFallback,
			wantWaits:    1,
			wantMarkPaid: true,
		},
		{
			name: "fallback dispatch failure does not change the outcome",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Twice()
				r.On("MarkPaid", mock.Anything, consultationID, (*string)(nil), models.ViaFallback).Return(true, nil).Once()
				d.On("Dispatch", mock.Anything, consultationID, models.ViaFallback).Return(errors.New("broker down")).Once()
			},
			wantState:    StateConfirmed,
			wantPath:     PathFallback,
			wantWaits:    1,
			wantMarkPaid: true,
		},
		{
			name: "webhook wins the race against fallback",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Twice()
				r.On("MarkPaid", mock.Anything, consultationID, (*string)(nil), models.ViaFallback).Return(false, nil).Once()
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentDone), nil).Once()
			},
			wantState:    StateConfirmed,
			wantPath:     PathWebhook,
			wantWaits:    1,
			wantMarkPaid: true,
		},
		{
			name: "fallback update errors",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Twice()
				r.On("MarkPaid", mock.Anything, consultationID, (*string)(nil), models.ViaFallback).Return(false, errors.New("conn reset")).Once()
			},
			wantState:    StateFailed,
			wantPath:     PathUpdateFailed,
			wantWaits:    1,
			wantMarkPaid: true,
		},
		{
			name: "fallback affects no row and record still pending",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Times(3)
				r.On("MarkPaid", mock.Anything, consultationID, (*string)(nil), models.ViaFallback).Return(false, nil).Once()
			},
			wantState:    StateFailed,
			wantPath:     PathUpdateFailed,
			wantWaits:    1,
			wantMarkPaid: true,
		},
		{
			name: "no matching record",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(nil, notFound).Once()
			},
			wantState: StateFailed,
			wantPath:  PathNotFound,
		},
		{
			name: "lookup error",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(nil, errors.New("db down")).Once()
			},
			wantState: StateFailed,
			wantPath:  PathLookupFailed,
		},
		{
			name: "grace period cancelled",
			setup: func(r *MockRecords, d *MockDispatcher) {
				r.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Once()
			},
			waitErr:   context.Canceled,
			wantState: StateFailed,
			wantPath:  PathCancelled,
			wantWaits: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := new(MockRecords)
			dispatcher := new(MockDispatcher)
			tt.setup(records, dispatcher)
			w := &waitSpy{err: tt.waitErr}

			out := newService(t, records, dispatcher, w).Reconcile(context.Background(), consultationID)

			assert.Equal(t, tt.wantState, out.State)
			assert.Equal(t, tt.wantPath, out.Path)
			assert.Equal(t, consultationID, out.ConsultationID)
			if tt.wantState == StateFailed {
				assert.Equal(t, supportEmail, out.SupportEmail)
			} else {
				assert.Empty(t, out.SupportEmail)
			}

			require.Len(t, w.calls, tt.wantWaits)
			for _, d := range w.calls {
				assert.Equal(t, 3*time.Second, d)
			}
			if !tt.wantMarkPaid {
				records.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			if tt.wantPath != PathFallback {
				dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
			}
			records.AssertExpectations(t)
			dispatcher.AssertExpectations(t)
		})
	}
}

func TestReconcile_PathsAreDistinctInMetrics(t *testing.T) {
	webhookBefore := testutil.ToFloat64(metrics.ReconciliationOutcomes.WithLabelValues("confirmed", "webhook"))
	fallbackBefore := testutil.ToFloat64(metrics.ReconciliationOutcomes.WithLabelValues("confirmed", "fallback"))

	records := new(MockRecords)
	records.On("FindByID", mock.Anything, consultationID).Return(record(models.PaymentPending), nil).Twice()
	records.On("MarkPaid", mock.Anything, consultationID, (*string)(nil), models.ViaFallback).Return(true, nil).Once()
	dispatcher := new(MockDispatcher)
	dispatcher.On("Dispatch", mock.Anything, consultationID, models.ViaFallback).Return(nil).Once()

	out := newService(t, records, dispatcher, &waitSpy{}).Reconcile(context.Background(), consultationID)
	require.Equal(t, PathFallback, out.Path)

	assert.Equal(t, webhookBefore, testutil.ToFloat64(metrics.ReconciliationOutcomes.WithLabelValues("confirmed", "webhook")))
	assert.Equal(t, fallbackBefore+1, testutil.ToFloat64(metrics.ReconciliationOutcomes.WithLabelValues("confirmed", "fallback")))
}

func TestWait_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, wait(ctx, time.Hour), context.Canceled)
	assert.NoError(t, wait(context.Background(), time.Millisecond))
}
