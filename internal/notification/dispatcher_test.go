package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consult-intake/internal/common/logger"
	"consult-intake/internal/models"
)

type fakeStarter struct {
	processID string
	variables map[string]interface{}
	err       error
}

func (f *fakeStarter) CreateProcessInstance(_ context.Context, processID string, variables map[string]interface{}) (int64, error) {
	f.processID = processID
	f.variables = variables
	if f.err != nil {
		return 0, f.err
	}
	return 2251799813685249, nil
}

type recordingTask struct {
	name string
	err  error
	got  []models.NotificationRequest
}

func (r *recordingTask) Name() string { return r.name }

func (r *recordingTask) Run(_ context.Context, req models.NotificationRequest) error {
	r.got = append(r.got, req)
	return r.err
}

func TestProcessDispatcher_StartsInstance(t *testing.T) {
	starter := &fakeStarter{}
	d := NewProcessDispatcher(starter, "consultation-paid", logger.NewNoOpLogger())

	require.NoError(t, d.Dispatch(context.Background(), "c-1", models.ViaFallback))

	assert.Equal(t, "consultation-paid", starter.processID)
	assert.Equal(t, map[string]interface{}{
		"consultationId": "c-1",
		"confirmedVia":   "fallback",
	}, starter.variables)
}

func TestProcessDispatcher_StartFailure(t *testing.T) {
	starter := &fakeStarter{err: errors.New("broker unavailable")}
	d := NewProcessDispatcher(starter, "consultation-paid", logger.NewNoOpLogger())

	err := d.Dispatch(context.Background(), "c-1", models.ViaWebhook)
	require.Error(t, err)
	assert.ErrorIs(t, err, starter.err)
}

func TestInlineDispatcher_RunsAllTasksAndReturnsFirstError(t *testing.T) {
	email := &recordingTask{name: "send-consultation-email", err: errors.New("ses down")}
	index := &recordingTask{name: "index-consultation"}
	alert := &recordingTask{name: "alert-risk-factors", err: errors.New("sns down")}

	d := NewInlineDispatcher(logger.NewNoOpLogger(), email, index, alert)
	err := d.Dispatch(context.Background(), "c-2", models.ViaWebhook)

	require.Error(t, err)
	assert.ErrorIs(t, err, email.err)
	assert.Contains(t, err.Error(), "send-consultation-email")

	want := models.NotificationRequest{ConsultationID: "c-2", ConfirmedVia: "webhook"}
	for _, task := range []*recordingTask{email, index, alert} {
		assert.Equal(t, []models.NotificationRequest{want}, task.got, task.name)
	}
}

func TestInlineDispatcher_NoTasks(t *testing.T) {
	d := NewInlineDispatcher(logger.NewNoOpLogger())
	assert.NoError(t, d.Dispatch(context.Background(), "c-3", models.ViaWebhook))
}

type signalDispatcher struct {
	done chan context.Context
	err  error
}

func (s *signalDispatcher) Dispatch(ctx context.Context, _ string, _ models.ConfirmedVia) error {
	s.done <- ctx
	return s.err
}

func TestDetached_SurvivesCallerCancellation(t *testing.T) {
	next := &signalDispatcher{done: make(chan context.Context, 1), err: errors.New("ignored")}
	d := NewDetached(next, logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(ctx, "c-4", models.ViaFallback))
	cancel()

	select {
	case got := <-next.done:
		assert.NoError(t, got.Err())
	case <-time.After(2 * time.Second):
		t.Fatal("detached dispatch did not run")
	}
}
