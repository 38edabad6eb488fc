// internal/workers/consultation/send-consultation-email/models.go
package sendconsultationemail

type Input struct {
	ConsultationID string `json:"consultationId"`
	ConfirmedVia   string `json:"confirmedVia,omitempty"`
}

type Output struct {
	ConsultationID   string `json:"consultationId"`
	EmailStatus      string `json:"emailStatus"` // "sent", "already_sent", "disabled"
	OpsMessageID     string `json:"opsMessageId,omitempty"`
	PatientMessageID string `json:"patientMessageId,omitempty"`
	SentAt           string `json:"sentAt,omitempty"` // ISO 8601
}

// Statuses
const (
	StatusSent        = "sent"
	StatusAlreadySent = "already_sent"
	StatusDisabled    = "disabled"
)
