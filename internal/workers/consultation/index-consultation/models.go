// internal/workers/consultation/index-consultation/models.go
package indexconsultation

type Input struct {
	ConsultationID string `json:"consultationId"`
}

type Output struct {
	ConsultationID string `json:"consultationId"`
	Indexed        bool   `json:"indexed"`
	Index          string `json:"index,omitempty"`
}
