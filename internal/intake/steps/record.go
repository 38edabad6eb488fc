package steps

import (
	"fmt"
	"sync"

	"consult-intake/internal/models"
)

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the shared consultation step table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := NewTable(DefaultDescriptors())
		if err != nil {
			panic(fmt.Sprintf("steps: invalid default table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// IncompleteError lists the steps still missing from a record.
type IncompleteError struct {
	Missing []int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("record incomplete: steps %v not validated", e.Missing)
}

// Assemble builds the typed consultation from a record in which every step
// has validated. The risk flag is derived from the risk factor selection.
func (t *Table) Assemble(rec models.FormRecord) (*models.Consultation, error) {
	var missing []int
	for _, d := range t.steps {
		for _, f := range d.Fields {
			if !rec.Has(f.Name) {
				missing = append(missing, d.Index)
				break
			}
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}

	risks := rec.Strings("facteurs_risque")
	return &models.Consultation{
		MaladiePresumee:       rec.String("maladie_presumee"),
		Symptomes:             rec.Strings("symptomes"),
		DiagnosticAnterieur:   rec.String("diagnostic_anterieur"),
		AutresSymptomes:       rec.String("autres_symptomes"),
		ZonesDouleur:          rec.Strings("zones_douleur"),
		ApparitionSoudaine:    rec.String("apparition_soudaine"),
		MedicamentsReguliers:  rec.String("medicaments_reguliers"),
		FacteursRisque:        len(risks) > 0,
		FacteursRisqueDetails: risks,
		TypeArret:             rec.String("type_arret"),
		Profession:            rec.String("profession"),
		DateDebut:             rec.Date("date_debut"),
		DateFin:               rec.Date("date_fin"),
		DateFinLettres:        rec.String("date_fin_lettres"),
		NomPrenom:             rec.String("nom_prenom"),
		DateNaissance:         rec.Date("date_naissance"),
		Email:                 rec.String("email"),
		Adresse:               rec.String("adresse"),
		CodePostal:            rec.String("code_postal"),
		Ville:                 rec.String("ville"),
		Pays:                  rec.String("pays"),
		SituationPro:          rec.String("situation_pro"),
		LocalisationMedecin:   rec.String("localisation_medecin"),
		NumeroSecuriteSociale: rec.String("numero_securite_sociale"),
		ConditionsAcceptees:   rec.Bool("conditions_acceptees"),
	}, nil
}

// StepValues returns the stored values owned by the step at index.
func (t *Table) StepValues(index int, rec models.FormRecord) models.FormRecord {
	d, ok := t.Step(index)
	if !ok {
		return models.FormRecord{}
	}
	out := models.FormRecord{}
	for _, f := range d.Fields {
		if v, ok := rec[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}
