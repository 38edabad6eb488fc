// Package stepstest provides step inputs for tests that drive the wizard.
package stepstest

// ValidInputs returns one valid input per step, in step order.
func ValidInputs() []map[string]any {
	return []map[string]any{
		{"maladie_presumee": "gastro"},
		{"symptomes": []any{"fievre", "nausees"}},
		{"diagnostic_anterieur": "non"},
		{"autres_symptomes": "Crampes abdominales depuis deux jours"},
		{"zones_douleur": []any{"ventre"}},
		{"apparition_soudaine": "oui"},
		{"medicaments_reguliers": "Aucun"},
		{"facteurs_risque": []any{"voyage_tropical"}},
		{"type_arret": "nouvel"},
		{"profession": "Infirmier"},
		{"date_debut": "2025-01-10", "date_fin": "2025-01-16", "date_fin_lettres": "SEIZE JANVIER DEUX MILLE VINGT CINQ"},
		{"nom_prenom": "DUPONT JEAN"},
		{"date_naissance": "1985-05-12"},
		{"email": "jean.dupont@example.fr", "email_confirmation": "jean.dupont@example.fr"},
		{"adresse": "12 rue de la République", "code_postal": "75001", "ville": "Paris", "pays": "FR"},
		{"situation_pro": "employe"},
		{"localisation_medecin": "Paris"},
		{"numero_securite_sociale": "185057800608436"},
		{"conditions_acceptees": true},
	}
}
