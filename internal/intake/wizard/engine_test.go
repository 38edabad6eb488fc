package wizard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consult-intake/internal/common/config"
	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/intake/draft"
	"consult-intake/internal/intake/steps"
	"consult-intake/internal/intake/steps/stepstest"
	"consult-intake/internal/models"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// memorySlot records every save so tests can assert persistence ordering.
type memorySlot struct {
	rec     models.FormRecord
	saves   int
	cleared bool
}

func (m *memorySlot) Save(_ context.Context, rec models.FormRecord) {
	m.rec = rec.Clone()
	m.saves++
}

func (m *memorySlot) Load(context.Context) models.FormRecord {
	if m.rec == nil {
		return models.FormRecord{}
	}
	return m.rec.Clone()
}

func (m *memorySlot) Clear(context.Context) {
	m.rec = nil
	m.cleared = true
}

// lockingSlot adds an in-memory submission lock to memorySlot.
type lockingSlot struct {
	memorySlot
	held     bool
	releases int
}

func (l *lockingSlot) AcquireSubmit(context.Context) bool {
	if l.held {
		return false
	}
	l.held = true
	return true
}

func (l *lockingSlot) ReleaseSubmit(context.Context) {
	l.held = false
	l.releases++
}

type completionSpy struct {
	calls int
	got   models.FormRecord
	err   error
}

func (c *completionSpy) complete(_ context.Context, rec models.FormRecord) (*Handoff, error) {
	c.calls++
	c.got = rec
	if c.err != nil {
		return nil, c.err
	}
	return &Handoff{ConsultationID: "c-1", RedirectURL: "https://pay.example/s"}, nil
}

func newEngine(t *testing.T, slot DraftSlot, spy *completionSpy) *Engine {
	return New(steps.Default(), slot, spy.complete, logger.NewTestLogger(t),
		WithClock(func() time.Time { return fixedNow }))
}

func TestPrev_AtZeroIsNoOp(t *testing.T) {
	slot := &memorySlot{}
	e := newEngine(t, slot, &completionSpy{})
	st := e.Resume(context.Background())

	for i := 0; i < 3; i++ {
		e.Prev(st)
		assert.Equal(t, 0, st.Index)
		assert.Empty(t, st.Accumulated)
	}
	assert.Zero(t, slot.saves)
}

func TestNext_ValidInputAdvancesByOne(t *testing.T) {
	slot := &memorySlot{}
	e := newEngine(t, slot, &completionSpy{})
	ctx := context.Background()
	st := e.Resume(ctx)

	inputs := stepstest.ValidInputs()
	for i := 0; i < len(inputs)-1; i++ {
		res, err := e.Next(ctx, st, inputs[i])
		require.NoError(t, err)
		require.True(t, res.Advanced(), "step %d: %v", i, res.Errors)
		assert.Equal(t, i+1, st.Index)
		assert.Equal(t, i+1, res.Index)
		assert.Equal(t, i+1, slot.saves, "draft persisted before advancing")
	}
}

func TestNext_InvalidInputLeavesStateUnchanged(t *testing.T) {
	slot := &memorySlot{}
	e := newEngine(t, slot, &completionSpy{})
	ctx := context.Background()
	st := e.Resume(ctx)

	_, err := e.Next(ctx, st, stepstest.ValidInputs()[0])
	require.NoError(t, err)
	before := st.Accumulated.Clone()

	tests := []struct {
		name  string
		input map[string]any
	}{
		{"empty", map[string]any{}},
		{"unknown option", map[string]any{"symptomes": []any{"hoquet"}}},
		{"wrong type", map[string]any{"symptomes": "fievre"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Next(ctx, st, tt.input)
			require.NoError(t, err)
			assert.False(t, res.Advanced())
			assert.NotEmpty(t, res.Errors)
			assert.Equal(t, 1, st.Index)
			assert.Equal(t, before, st.Accumulated)
			assert.Equal(t, 1, slot.saves)
		})
	}
}

func TestNext_MergeKeepsEarlierFields(t *testing.T) {
	slot := &memorySlot{}
	e := newEngine(t, slot, &completionSpy{})
	ctx := context.Background()
	st := e.Resume(ctx)

	inputs := stepstest.ValidInputs()
	for i := 0; i < 5; i++ {
		// Later steps try to smuggle an earlier step's field.
		input := map[string]any{"maladie_presumee": "stress"}
		for k, v := range inputs[i] {
			input[k] = v
		}
		_, err := e.Next(ctx, st, input)
		require.NoError(t, err)
	}

	assert.Equal(t, inputs[0]["maladie_presumee"], st.Accumulated["maladie_presumee"])
	assert.Equal(t, []string{"fievre", "nausees"}, st.Accumulated.Strings("symptomes"))
	assert.Len(t, st.Accumulated, 5)
	assert.Equal(t, st.Accumulated, slot.rec)
}

func TestNext_TerminalStepCompletes(t *testing.T) {
	slot := &memorySlot{}
	spy := &completionSpy{}
	e := newEngine(t, slot, spy)
	ctx := context.Background()
	st := e.Resume(ctx)

	var last *Result
	for _, input := range stepstest.ValidInputs() {
		res, err := e.Next(ctx, st, input)
		require.NoError(t, err)
		last = res
	}

	require.NotNil(t, last.Handoff)
	assert.Equal(t, "c-1", last.Handoff.ConsultationID)
	assert.Equal(t, 1, spy.calls)
	assert.True(t, st.Finished)
	assert.Equal(t, 18, st.Index)
	assert.True(t, slot.cleared)
	assert.Equal(t, true, spy.got["conditions_acceptees"])

	_, err := e.Next(ctx, st, stepstest.ValidInputs()[18])
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeWizardFinished))
	assert.Equal(t, 1, spy.calls)

	e.Prev(st)
	assert.Equal(t, 18, st.Index)
}

func TestNext_CompletionFailureRetainsDraft(t *testing.T) {
	slot := &memorySlot{}
	spy := &completionSpy{err: errors.New("record store down")}
	e := newEngine(t, slot, spy)
	ctx := context.Background()
	st := e.Resume(ctx)

	inputs := stepstest.ValidInputs()
	for _, input := range inputs[:18] {
		_, err := e.Next(ctx, st, input)
		require.NoError(t, err)
	}
	_, err := e.Next(ctx, st, inputs[18])
	require.Error(t, err)

	assert.False(t, st.Finished)
	assert.Equal(t, 18, st.Index)
	assert.False(t, slot.cleared)
	assert.True(t, slot.rec.Bool("conditions_acceptees"))

	// A retry resumes on the terminal step and succeeds.
	spy.err = nil
	st = e.Resume(ctx)
	assert.Equal(t, 18, st.Index)
	res, err := e.Next(ctx, st, inputs[18])
	require.NoError(t, err)
	assert.NotNil(t, res.Handoff)
}

func fillToTerminal(t *testing.T, e *Engine, st *State) {
	t.Helper()
	for _, input := range stepstest.ValidInputs()[:18] {
		res, err := e.Next(context.Background(), st, input)
		require.NoError(t, err)
		require.True(t, res.Advanced())
	}
}

func TestNext_TerminalStepRefusedWhileSubmitLockHeld(t *testing.T) {
	slot := &lockingSlot{}
	spy := &completionSpy{}
	e := newEngine(t, slot, spy)
	ctx := context.Background()
	st := e.Resume(ctx)
	fillToTerminal(t, e, st)

	slot.held = true
	saves := slot.saves
	_, err := e.Next(ctx, st, stepstest.ValidInputs()[18])

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSubmissionInProgress))
	assert.Zero(t, spy.calls)
	assert.Equal(t, saves, slot.saves)
	assert.False(t, st.Finished)
	assert.False(t, slot.cleared)
}

func TestNext_SubmitLockLifecycle(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		held     bool
		releases int
	}{
		{"failed handoff releases for retry", errors.New("record store down"), false, 1},
		{"successful handoff keeps the lock", nil, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := &lockingSlot{}
			e := newEngine(t, slot, &completionSpy{err: tt.err})
			ctx := context.Background()
			st := e.Resume(ctx)
			fillToTerminal(t, e, st)

			_, _ = e.Next(ctx, st, stepstest.ValidInputs()[18])
			assert.Equal(t, tt.held, slot.held)
			assert.Equal(t, tt.releases, slot.releases)

			e.Reset(ctx)
			assert.False(t, slot.held, "restart frees the session")
		})
	}
}

func TestNext_ConcurrentTerminalRequestsCompleteOnce(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := draft.NewStore(rdb, config.DraftConfig{KeyPrefix: "consultation-form", TTL: 60_000}, logger.NewTestLogger(t))
	ctx := context.Background()

	setup := newEngine(t, store.Slot("s1"), &completionSpy{})
	fillToTerminal(t, setup, setup.Resume(ctx))

	var calls int32
	entered := make(chan struct{}, 2)
	proceed := make(chan struct{})
	complete := func(context.Context, models.FormRecord) (*Handoff, error) {
		atomic.AddInt32(&calls, 1)
		entered <- struct{}{}
		select {
		case <-proceed:
		case <-time.After(time.Second):
		}
		return &Handoff{ConsultationID: "c-1", RedirectURL: "https://pay.example/s"}, nil
	}
	request := func() (*Engine, *State) {
		e := New(steps.Default(), store.Slot("s1"), complete, logger.NewTestLogger(t),
			WithClock(func() time.Time { return fixedNow }))
		st, err := e.At(ctx, 18)
		require.NoError(t, err)
		return e, st
	}
	inputs := stepstest.ValidInputs()
	first, firstSt := request()
	second, secondSt := request()

	done := make(chan error, 1)
	go func() {
		_, err := first.Next(ctx, firstSt, inputs[18])
		done <- err
	}()
	<-entered

	_, err = second.Next(ctx, secondSt, inputs[18])
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSubmissionInProgress))

	close(proceed)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.False(t, mr.Exists("consultation-form:s1"))
}

func TestAt_ClampsToFrontier(t *testing.T) {
	slot := &memorySlot{}
	e := newEngine(t, slot, &completionSpy{})
	ctx := context.Background()
	st := e.Resume(ctx)
	for _, input := range stepstest.ValidInputs()[:3] {
		_, err := e.Next(ctx, st, input)
		require.NoError(t, err)
	}

	tests := []struct {
		requested  int
		want       int
		outOfRange bool
	}{
		{0, 0, false},
		{2, 2, false},
		{3, 3, false},
		{7, 3, true},
		{-1, 0, true},
	}
	for _, tt := range tests {
		got, err := e.At(ctx, tt.requested)
		assert.Equal(t, tt.want, got.Index, "requested %d", tt.requested)
		assert.Equal(t, tt.outOfRange, apperrors.HasCode(err, apperrors.ErrCodeStepOutOfRange))
	}
}

func TestPrev_DoesNotPersistOrValidate(t *testing.T) {
	slot := &memorySlot{}
	e := newEngine(t, slot, &completionSpy{})
	ctx := context.Background()
	st := e.Resume(ctx)
	for _, input := range stepstest.ValidInputs()[:2] {
		_, err := e.Next(ctx, st, input)
		require.NoError(t, err)
	}

	e.Prev(st)
	assert.Equal(t, 1, st.Index)
	assert.Equal(t, 2, slot.saves)
	assert.Equal(t, models.FormRecord{"symptomes": []string{"fievre", "nausees"}}, e.Values(st))
}

func TestValidate_IsSideEffectFree(t *testing.T) {
	slot := &memorySlot{}
	e := newEngine(t, slot, &completionSpy{})
	st := e.Resume(context.Background())

	assert.False(t, e.CanAdvance(st, map[string]any{"maladie_presumee": "rhume"}))
	assert.True(t, e.CanAdvance(st, map[string]any{"maladie_presumee": "covid"}))
	assert.Equal(t, 0, st.Index)
	assert.Zero(t, slot.saves)
}

func TestEngine_ResumesFromRedisDraft(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := draft.NewStore(rdb, config.DraftConfig{KeyPrefix: "consultation-form", TTL: 60_000}, logger.NewTestLogger(t))
	ctx := context.Background()

	first := newEngine(t, store.Slot("s1"), &completionSpy{})
	st := first.Resume(ctx)
	for _, input := range stepstest.ValidInputs()[:4] {
		_, err := first.Next(ctx, st, input)
		require.NoError(t, err)
	}

	// A fresh engine on the same session picks up where the first left off.
	second := newEngine(t, store.Slot("s1"), &completionSpy{})
	resumed := second.Resume(ctx)
	assert.Equal(t, 4, resumed.Index)
	assert.Equal(t, st.Accumulated, resumed.Accumulated)

	reset := second.Reset(ctx)
	assert.Equal(t, 0, reset.Index)
	assert.False(t, mr.Exists("consultation-form:s1"))
}
