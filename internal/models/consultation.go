// internal/models/consultation.go
package models

import (
	"strings"
	"time"
)

// PaymentStatus is restricted to pending and done.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentDone    PaymentStatus = "done"
)

// ConfirmedVia records which path flipped a record to done.
type ConfirmedVia string

const (
	ViaWebhook  ConfirmedVia = "webhook"
	ViaFallback ConfirmedVia = "fallback"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Consultation is the completed form, assembled once the last step validates.
type Consultation struct {
	MaladiePresumee       string    `json:"maladie_presumee"`
	Symptomes             []string  `json:"symptomes"`
	DiagnosticAnterieur   string    `json:"diagnostic_anterieur"`
	AutresSymptomes       string    `json:"autres_symptomes"`
	ZonesDouleur          []string  `json:"zones_douleur"`
	ApparitionSoudaine    string    `json:"apparition_soudaine"`
	MedicamentsReguliers  string    `json:"medicaments_reguliers"`
	FacteursRisque        bool      `json:"facteurs_risque"`
	FacteursRisqueDetails []string  `json:"facteurs_risque_details"`
	TypeArret             string    `json:"type_arret"`
	Profession            string    `json:"profession"`
	DateDebut             time.Time `json:"date_debut"`
	DateFin               time.Time `json:"date_fin"`
	DateFinLettres        string    `json:"date_fin_lettres"`
	NomPrenom             string    `json:"nom_prenom"`
	DateNaissance         time.Time `json:"date_naissance"`
	Email                 string    `json:"email"`
	Adresse               string    `json:"adresse"`
	CodePostal            string    `json:"code_postal"`
	Ville                 string    `json:"ville"`
	Pays                  string    `json:"pays"`
	SituationPro          string    `json:"situation_pro"`
	LocalisationMedecin   string    `json:"localisation_medecin"`
	NumeroSecuriteSociale string    `json:"numero_securite_sociale"`
	ConditionsAcceptees   bool      `json:"conditions_acceptees"`
}

// SubmittedRecord is a Consultation as persisted in the record store.
type SubmittedRecord struct {
	Consultation
	ID               string        `json:"id"`
	NumeroDossier    string        `json:"numero_dossier"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentID        *string       `json:"payment_id,omitempty"`
	ConfirmedVia     *ConfirmedVia `json:"confirmed_via,omitempty"`
	ConfirmationSent bool          `json:"confirmation_sent"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsPaid reports whether the record reached its terminal status.
func (r *SubmittedRecord) IsPaid() bool {
	return r.PaymentStatus == PaymentDone
}

// NumeroDossierFor derives the human-facing file number from a record id.
func NumeroDossierFor(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return "CC-" + strings.ToUpper(hex)
}

// FieldValues returns the form fields as display strings keyed by field name.
// Empty values are omitted.
func (c *Consultation) FieldValues() map[string]string {
	out := make(map[string]string, 26)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	date := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(DateLayout)
	}
	yesNo := func(b bool) string {
		if b {
			return "Oui"
		}
		return "Non"
	}

	put("maladie_presumee", c.MaladiePresumee)
	put("symptomes", strings.Join(c.Symptomes, ", "))
	put("diagnostic_anterieur", c.DiagnosticAnterieur)
	put("autres_symptomes", c.AutresSymptomes)
	put("zones_douleur", strings.Join(c.ZonesDouleur, ", "))
	put("apparition_soudaine", c.ApparitionSoudaine)
	put("medicaments_reguliers", c.MedicamentsReguliers)
	put("facteurs_risque", yesNo(c.FacteursRisque))
	put("facteurs_risque_details", strings.Join(c.FacteursRisqueDetails, ", "))
	put("type_arret", c.TypeArret)
	put("profession", c.Profession)
	put("date_debut", date(c.DateDebut))
	put("date_fin", date(c.DateFin))
	put("date_fin_lettres", c.DateFinLettres)
	put("nom_prenom", c.NomPrenom)
	put("date_naissance", date(c.DateNaissance))
	put("email", c.Email)
	put("adresse", c.Adresse)
	put("code_postal", c.CodePostal)
	put("ville", c.Ville)
	put("pays", c.Pays)
	put("situation_pro", c.SituationPro)
	put("localisation_medecin", c.LocalisationMedecin)
	put("numero_securite_sociale", c.NumeroSecuriteSociale)
	put("conditions_acceptees", yesNo(c.ConditionsAcceptees))
	return out
}
