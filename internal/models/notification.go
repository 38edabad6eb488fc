// internal/models/notification.go
package models

// NotificationRequest is the variable set a paid consultation process starts with.
type NotificationRequest struct {
	ConsultationID string `json:"consultationId"`
	ConfirmedVia   string `json:"confirmedVia"`
}

// EmailMessage is a rendered email ready for transport.
type EmailMessage struct {
	From        string
	To          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SupportDocument is the redacted view indexed for the support search.
type SupportDocument struct {
	ID             string `json:"id"`
	NumeroDossier  string `json:"numero_dossier"`
	NomPrenom      string `json:"nom_prenom"`
	Email          string `json:"email"`
	PaymentStatus  string `json:"payment_status"`
	ConfirmedVia   string `json:"confirmed_via,omitempty"`
	CreatedAt      string `json:"created_at"`
	NIRMasked      string `json:"nir_masked"`
	FacteursRisque bool   `json:"facteurs_risque"`
}
