// Package wizard drives the validation-gated step sequence over a draft slot.
//
// An Engine is stateless between requests. The caller holds the step cursor
// and passes it in; the engine rebuilds a State from the draft and clamps the
// cursor to the furthest reachable step.
package wizard

import (
	"context"
	"time"

	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/intake/steps"
	"consult-intake/internal/models"
)

// DraftSlot is the per-session persistence the engine writes through.
// Implementations never fail; see draft.Slot.
type DraftSlot interface {
	Save(ctx context.Context, rec models.FormRecord)
	Load(ctx context.Context) models.FormRecord
	Clear(ctx context.Context)
}

// SubmitGuard is implemented by slots that can serialise the terminal handoff
// across concurrent requests for one session. A slot without it gets no
// guard.
type SubmitGuard interface {
	AcquireSubmit(ctx context.Context) bool
	ReleaseSubmit(ctx context.Context)
}

// Handoff is what the completion callback returns to the caller.
type Handoff struct {
	ConsultationID string
	RedirectURL    string
}

// CompleteFunc receives the full record once the terminal step validates.
type CompleteFunc func(ctx context.Context, rec models.FormRecord) (*Handoff, error)

// State is one session's position in the wizard.
type State struct {
	Index       int
	Accumulated models.FormRecord
	Finished    bool
}

// Result describes the outcome of Next.
type Result struct {
	Index   int
	Errors  steps.FieldErrors
	Handoff *Handoff
}

// Advanced reports whether the step validated.
func (r *Result) Advanced() bool {
	return len(r.Errors) == 0
}

type Engine struct {
	table    *steps.Table
	slot     DraftSlot
	complete CompleteFunc
	logger   logger.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(table *steps.Table, slot DraftSlot, complete CompleteFunc, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		table:    table,
		slot:     slot,
		complete: complete,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxIndex is the furthest step the record allows the user to stand on.
func (e *Engine) MaxIndex(rec models.FormRecord) int {
	frontier := e.table.Frontier(rec)
	if frontier > e.table.Terminal() {
		return e.table.Terminal()
	}
	return frontier
}

// Resume rehydrates the session at its resume point.
func (e *Engine) Resume(ctx context.Context) *State {
	rec := e.slot.Load(ctx)
	return &State{Index: e.MaxIndex(rec), Accumulated: rec}
}

// At rehydrates the session at the requested step. A cursor outside
// [0, MaxIndex] is clamped and reported with a STEP_OUT_OF_RANGE error;
// the returned state is usable either way.
func (e *Engine) At(ctx context.Context, index int) (*State, error) {
	st := e.Resume(ctx)
	if index < 0 {
		st.Index = 0
		return st, apperrors.NewStepOutOfRangeError(index, e.MaxIndex(st.Accumulated))
	}
	if index > st.Index {
		return st, apperrors.NewStepOutOfRangeError(index, st.Index)
	}
	st.Index = index
	return st, nil
}

// Validate evaluates the live gate for the current step. It has no side effects.
func (e *Engine) Validate(st *State, input map[string]any) steps.FieldErrors {
	d, ok := e.table.Step(st.Index)
	if !ok {
		return steps.FieldErrors{}
	}
	_, errs := d.Validate(input, e.now())
	if errs == nil {
		return steps.FieldErrors{}
	}
	return errs
}

// CanAdvance reports whether Next would accept input.
func (e *Engine) CanAdvance(st *State, input map[string]any) bool {
	return len(e.Validate(st, input)) == 0
}

// Next validates input against the current step. Invalid input leaves st
// untouched and is reported in the result, not as an error. Valid input is
// merged and persisted before the cursor moves. On the terminal step the
// completion callback runs at most once at a time per session when the slot
// is a SubmitGuard; its error is returned with st still on the terminal step
// and the draft intact, so the user can retry.
func (e *Engine) Next(ctx context.Context, st *State, input map[string]any) (*Result, error) {
	if st.Finished {
		return nil, apperrors.NewWizardFinishedError()
	}
	d, ok := e.table.Step(st.Index)
	if !ok {
		return nil, apperrors.NewStepOutOfRangeError(st.Index, e.table.Terminal())
	}

	log := logger.FromContext(ctx, e.logger).WithFields(map[string]interface{}{
		"stepIndex": st.Index,
		"stepKey":   d.Key,
	})

	sub, errs := d.Validate(input, e.now())
	if len(errs) > 0 {
		metrics.WizardStepTransitions.WithLabelValues("next", "invalid").Inc()
		log.Debug("Step input rejected", map[string]interface{}{"fields": len(errs)})
		return &Result{Index: st.Index, Errors: errs}, nil
	}

	terminal := st.Index == e.table.Terminal()
	guard, guarded := e.slot.(SubmitGuard)
	if terminal && guarded && !guard.AcquireSubmit(ctx) {
		metrics.WizardStepTransitions.WithLabelValues("next", "in_progress").Inc()
		log.Warn("Submission already in progress for session", nil)
		return nil, apperrors.NewSubmissionInProgressError()
	}

	merged := st.Accumulated.Clone()
	for k, v := range sub {
		merged[k] = v
	}
	e.slot.Save(ctx, merged)
	st.Accumulated = merged

	if !terminal {
		st.Index++
		metrics.WizardStepTransitions.WithLabelValues("next", "advanced").Inc()
		log.Debug("Step validated", nil)
		return &Result{Index: st.Index}, nil
	}

	// The lock is kept after a successful handoff and lapses with its TTL.
	handoff, err := e.complete(ctx, merged)
	if err != nil {
		if guarded {
			guard.ReleaseSubmit(ctx)
		}
		metrics.WizardStepTransitions.WithLabelValues("next", "completion_failed").Inc()
		log.Warn("Wizard completion failed, draft retained", map[string]interface{}{"error": err})
		return nil, err
	}
	e.slot.Clear(ctx)
	st.Finished = true
	metrics.WizardStepTransitions.WithLabelValues("next", "completed").Inc()
	log.Info("Wizard completed", map[string]interface{}{"consultationId": handoff.ConsultationID})
	return &Result{Index: st.Index, Handoff: handoff}, nil
}

// Prev moves the cursor back one step. It never validates or persists and is
// a no-op at index 0.
func (e *Engine) Prev(st *State) {
	if st.Finished || st.Index == 0 {
		metrics.WizardStepTransitions.WithLabelValues("prev", "noop").Inc()
		return
	}
	st.Index--
	metrics.WizardStepTransitions.WithLabelValues("prev", "moved").Inc()
}

// Values returns the stored values of the step under the cursor.
func (e *Engine) Values(st *State) models.FormRecord {
	return e.table.StepValues(st.Index, st.Accumulated)
}

// Reset discards the session's draft.
func (e *Engine) Reset(ctx context.Context) *State {
	e.slot.Clear(ctx)
	if guard, ok := e.slot.(SubmitGuard); ok {
		guard.ReleaseSubmit(ctx)
	}
	return &State{Accumulated: models.FormRecord{}}
}

// Table exposes the step table the engine runs over.
func (e *Engine) Table() *steps.Table {
	return e.table
}
