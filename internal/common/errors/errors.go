// Package errors provides the standardized error type shared by the intake
// services, the HTTP layer and the notification job workers.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeDraftStoreUnavailable ErrorCode = "DRAFT_STORE_UNAVAILABLE"

	ErrCodeStepValidationFailed ErrorCode = "STEP_VALIDATION_FAILED"
	ErrCodeStepOutOfRange       ErrorCode = "STEP_OUT_OF_RANGE"
	ErrCodeWizardFinished       ErrorCode = "WIZARD_FINISHED"
	ErrCodeSubmissionInProgress ErrorCode = "SUBMISSION_IN_PROGRESS"

	ErrCodeRecordInsertFailed   ErrorCode = "RECORD_INSERT_FAILED"
	ErrCodeRecordNotFound       ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeRecordQueryFailed    ErrorCode = "RECORD_QUERY_FAILED"
	ErrCodeRecordUpdateFailed   ErrorCode = "RECORD_UPDATE_FAILED"
	ErrCodePaymentSessionFailed ErrorCode = "PAYMENT_SESSION_FAILED"
	ErrCodePaymentEventInvalid  ErrorCode = "PAYMENT_EVENT_INVALID"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeIndexWriteFailed       ErrorCode = "INDEX_WRITE_FAILED"
	ErrCodeAlertPublishFailed     ErrorCode = "ALERT_PUBLISH_FAILED"
	ErrCodeInvalidJobInput        ErrorCode = "INVALID_JOB_INPUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// BPMNError represents an error thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewDraftStoreUnavailableError wraps a draft slot failure. It is only ever logged.
func NewDraftStoreUnavailableError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftStoreUnavailable,
		Message:   "Draft store unavailable",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStepValidationFailedError carries field-level messages in Metadata["fields"].
func NewStepValidationFailedError(stepIndex int, fields map[string]string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStepValidationFailed,
		Message:   "Step input is invalid",
		Details:   fmt.Sprintf("stepIndex: %d, fields: %d", stepIndex, len(fields)),
		Retryable: false,
		Metadata:  map[string]interface{}{"fields": fields},
		Timestamp: time.Now().UTC(),
	}
}

func NewStepOutOfRangeError(stepIndex, frontier int) *StandardError {
	return &StandardError{
		Code:      ErrCodeStepOutOfRange,
		Message:   "Step is not reachable yet",
		Details:   fmt.Sprintf("stepIndex: %d, frontier: %d", stepIndex, frontier),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWizardFinishedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeWizardFinished,
		Message:   "Wizard already completed",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionInProgressError reports a second terminal handoff for a session
// whose first one is still running or has already succeeded.
func NewSubmissionInProgressError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInProgress,
		Message:   "Submission already in progress",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordInsertFailedError creates a retryable record store error.
func NewRecordInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordInsertFailed,
		Message:   "Consultation record could not be stored",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRecordNotFoundError(consultationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Consultation record not found",
		Details:   fmt.Sprintf("consultationId: %s", consultationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRecordQueryFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordQueryFailed,
		Message:   "Consultation record query failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRecordUpdateFailedError(consultationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordUpdateFailed,
		Message:   "Consultation record update failed",
		Details:   fmt.Sprintf("consultationId: %s, error: %s", consultationID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentSessionFailedError creates a retryable payment collaborator error.
func NewPaymentSessionFailedError(consultationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentSessionFailed,
		Message:   "Payment session could not be created",
		Details:   fmt.Sprintf("consultationId: %s, error: %s", consultationID, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"consultationId": consultationID},
		Timestamp: time.Now().UTC(),
	}
}

func NewPaymentEventInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentEventInvalid,
		Message:   "Payment event rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIndexWriteFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexWriteFailed,
		Message:   "Search index write failed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewAlertPublishFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertPublishFailed,
		Message:   "Ops alert could not be published",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidJobInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobInput,
		Message:   "Job variables are invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeNotificationSendFailed,
		ErrCodeIndexWriteFailed,
		ErrCodeAlertPublishFailed,
		ErrCodeRecordQueryFailed,
		ErrCodeRecordUpdateFailed:
		return 3
	case "TIMEOUT_ERROR", "EXTERNAL_SERVICE_ERROR":
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "STEP_") || strings.HasPrefix(codeStr, "WIZARD_"):
		return "VALIDATION"
	case strings.HasPrefix(codeStr, "DRAFT_"):
		return "DRAFT"
	case strings.HasPrefix(codeStr, "RECORD_"):
		return "DATABASE"
	case strings.HasPrefix(codeStr, "PAYMENT_"):
		return "PAYMENT"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "ALERT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	default:
		return "OTHER"
	}
}
