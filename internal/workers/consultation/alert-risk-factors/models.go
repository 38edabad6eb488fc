// internal/workers/consultation/alert-risk-factors/models.go
package alertriskfactors

type Input struct {
	ConsultationID string `json:"consultationId"`
}

type Output struct {
	ConsultationID string `json:"consultationId"`
	Published      bool   `json:"published"`
	MessageID      string `json:"alertMessageId,omitempty"`
}

// Alert is the JSON body published to the ops topic. It carries the risk
// factors but no identity document number and no free-text symptoms.
type Alert struct {
	ConsultationID string   `json:"consultationId"`
	NumeroDossier  string   `json:"numeroDossier"`
	NomPrenom      string   `json:"nomPrenom"`
	Maladie        string   `json:"maladiePresumee"`
	RiskFactors    []string `json:"facteursRisque"`
	ConfirmedVia   string   `json:"confirmedVia,omitempty"`
}
