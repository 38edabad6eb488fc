package api

import (
	"net/http"
	"time"

	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/intake/draft"
	"consult-intake/internal/intake/steps"
	"consult-intake/internal/intake/submission"
	"consult-intake/internal/intake/wizard"
	"consult-intake/internal/models"
)

// WizardHandler serves the step sequence. The engine is rebuilt per request
// over the caller's draft slot; the step cursor travels with each request.
type WizardHandler struct {
	table    *steps.Table
	drafts   *draft.Store
	complete wizard.CompleteFunc
	logger   logger.Logger
	now      func() time.Time
}

func NewWizardHandler(table *steps.Table, drafts *draft.Store, complete wizard.CompleteFunc, log logger.Logger, now func() time.Time) *WizardHandler {
	if now == nil {
		now = time.Now
	}
	return &WizardHandler{
		table:    table,
		drafts:   drafts,
		complete: complete,
		logger:   log.WithFields(map[string]interface{}{"component": "wizard-api"}),
		now:      now,
	}
}

type stepRequest struct {
	Step  *int           `json:"step"`
	Input map[string]any `json:"input"`
}

type stepResponse struct {
	SessionID  string            `json:"sessionId"`
	Step       int               `json:"step"`
	StepKey    string            `json:"stepKey"`
	TotalSteps int               `json:"totalSteps"`
	Values     models.FormRecord `json:"values"`
}

type validateResponse struct {
	Valid  bool              `json:"valid"`
	Fields steps.FieldErrors `json:"fields"`
}

type completedResponse struct {
	ConsultationID string `json:"consultationId"`
	NumeroDossier  string `json:"numeroDossier"`
	RedirectURL    string `json:"redirectUrl"`
}

func (h *WizardHandler) engine(r *http.Request) *wizard.Engine {
	slot := h.drafts.Slot(SessionID(r.Context()))
	return wizard.New(h.table, slot, h.complete, h.logger, wizard.WithClock(h.now))
}

func (h *WizardHandler) stepBody(r *http.Request, st *wizard.State, values models.FormRecord) stepResponse {
	key := ""
	if d, ok := h.table.Step(st.Index); ok {
		key = d.Key
	}
	if values == nil {
		values = models.FormRecord{}
	}
	return stepResponse{
		SessionID:  SessionID(r.Context()),
		Step:       st.Index,
		StepKey:    key,
		TotalSteps: h.table.Len(),
		Values:     values,
	}
}

// position rehydrates the session at the requested cursor. An unreachable
// cursor answers 409 with the clamped step and returns nil.
func (h *WizardHandler) position(w http.ResponseWriter, r *http.Request, eng *wizard.Engine, req *stepRequest) *wizard.State {
	if req.Step == nil {
		return eng.Resume(r.Context())
	}
	st, err := eng.At(r.Context(), *req.Step)
	if err != nil {
		std := apperrors.Normalize(err)
		writeJSON(w, http.StatusConflict, errorBody{
			Error:   string(std.Code),
			Message: std.Message,
			Step:    &st.Index,
		})
		return nil
	}
	return st
}

// Resume returns the furthest reachable step with the whole stored draft.
func (h *WizardHandler) Resume(w http.ResponseWriter, r *http.Request) {
	st := h.engine(r).Resume(r.Context())
	writeJSON(w, http.StatusOK, h.stepBody(r, st, st.Accumulated))
}

func (h *WizardHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.table.Catalog(h.now()))
}

// Validate is the live gate. It never touches the draft.
func (h *WizardHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := readJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	eng := h.engine(r)
	st := h.position(w, r, eng, &req)
	if st == nil {
		return
	}
	fields := eng.Validate(st, req.Input)
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(fields) == 0, Fields: fields})
}

func (h *WizardHandler) Next(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := readJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	eng := h.engine(r)
	st := h.position(w, r, eng, &req)
	if st == nil {
		return
	}

	res, err := eng.Next(r.Context(), st, req.Input)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeWizardFinished) {
			writeError(w, http.StatusConflict, string(apperrors.ErrCodeWizardFinished), "wizard already completed")
			return
		}
		if apperrors.HasCode(err, apperrors.ErrCodeSubmissionInProgress) {
			writeJSON(w, http.StatusConflict, errorBody{
				Error:   string(apperrors.ErrCodeSubmissionInProgress),
				Message: "submission already in progress",
				Step:    &st.Index,
			})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:     string(apperrors.Normalize(err).Code),
			Message:   submission.UserMessage,
			Retryable: true,
			Step:      &st.Index,
		})
		return
	}

	if !res.Advanced() {
		verr := apperrors.NewStepValidationFailedError(res.Index, res.Errors)
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:   string(verr.Code),
			Message: verr.Message,
			Fields:  res.Errors,
			Step:    &res.Index,
		})
		return
	}

	if res.Handoff != nil {
		writeJSON(w, http.StatusOK, completedResponse{
			ConsultationID: res.Handoff.ConsultationID,
			NumeroDossier:  models.NumeroDossierFor(res.Handoff.ConsultationID),
			RedirectURL:    res.Handoff.RedirectURL,
		})
		return
	}
	writeJSON(w, http.StatusOK, h.stepBody(r, st, eng.Values(st)))
}

// Prev moves back one step without validating or saving.
func (h *WizardHandler) Prev(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := readJSON(r, &req); err != nil {
		badBody(w, err)
		return
	}
	eng := h.engine(r)
	st := h.position(w, r, eng, &req)
	if st == nil {
		return
	}
	eng.Prev(st)
	writeJSON(w, http.StatusOK, h.stepBody(r, st, eng.Values(st)))
}

// Restart clears the draft and puts the session back on the first step.
func (h *WizardHandler) Restart(w http.ResponseWriter, r *http.Request) {
	eng := h.engine(r)
	st := eng.Reset(r.Context())
	logger.FromContext(r.Context(), h.logger).Info("Wizard restarted", map[string]interface{}{
		"sessionId": SessionID(r.Context()),
	})
	writeJSON(w, http.StatusOK, h.stepBody(r, st, nil))
}
