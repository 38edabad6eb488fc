package steps

import (
	"strings"

	"consult-intake/internal/common/validation"
)

const (
	datePattern      = `^\d{4}-\d{2}-\d{2}$`
	upperNamePattern = `^[\p{Lu}\s'-]+$`
	upperDatePattern = `^[\p{Lu}\s-]+$`
)

// schemaFor derives the JSON schema document for a step from its fields.
func schemaFor(d *Descriptor) validation.JSONSchema {
	props := make(map[string]validation.Property, len(d.Fields))
	required := make([]string, 0, len(d.Fields))

	for _, f := range d.Fields {
		p := f.Rule
		switch f.Kind {
		case KindText:
			p.Type = "string"
		case KindChoice:
			p.Type = "string"
			if len(f.Options) > 0 {
				p.Enum = values(f.Options)
			}
		case KindMulti:
			p.Type = "array"
			p.UniqueItems = true
			item := validation.Property{Type: "string"}
			if len(f.Options) > 0 {
				item.Enum = values(f.Options)
			}
			p.Items = &item
		case KindDate:
			p.Type = "string"
			p.Pattern = datePattern
		case KindBool:
			p.Type = "boolean"
		}
		props[f.Name] = p
		required = append(required, f.Name)
	}

	return validation.JSONSchema{
		Schema:     "http://json-schema.org/draft-07/schema#",
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// emailPattern narrows the "email" format, which accepts bare hosts and
// display-name forms, to a plain local@domain.tld address.
const emailPattern = `^[^\s@<>]+@[^\s@<>]+\.[^\s@<>]+$`

func msg(fallback string) map[string]string {
	return map[string]string{"": fallback}
}

// DefaultDescriptors returns the 19 steps of the consultation form.
func DefaultDescriptors() []*Descriptor {
	return []*Descriptor{
		{
			Key:         "maladie",
			Title:       "Maladie présumée",
			Description: "Sélectionnez la maladie qui correspond à vos symptômes",
			Fields: []Field{
				{
					Name:        "maladie_presumee",
					Kind:        KindChoice,
					Widget:      WidgetSelect,
					Label:       "Choisissez la maladie présumée",
					Placeholder: "Veuillez sélectionner",
					Options:     MaladiesOptions,
					Messages:    msg("Veuillez sélectionner une maladie"),
				},
			},
		},
		{
			Key:         "symptomes",
			Title:       "Symptômes observés",
			Description: "Quels sont vos symptômes actuels ?",
			Fields: []Field{
				{
					Name:     "symptomes",
					Kind:     KindMulti,
					Widget:   WidgetMultiselect,
					Label:    "Symptômes",
					Options:  SymptomesOptions,
					Rule:     validation.Property{MinItems: validation.Int(1)},
					Messages: msg("Veuillez sélectionner au moins un symptôme"),
				},
			},
		},
		{
			Key:         "diagnostic",
			Title:       "Diagnostic antérieur",
			Description: "Avez-vous déjà été diagnostiqué pour ce symptôme ?",
			Fields: []Field{
				{
					Name:     "diagnostic_anterieur",
					Kind:     KindChoice,
					Widget:   WidgetRadio,
					Label:    "Diagnostic antérieur",
					Options:  OuiNonOptions,
					Messages: msg("Veuillez sélectionner une réponse"),
				},
			},
		},
		{
			Key:         "description",
			Title:       "Description des symptômes",
			Description: "Décrivez tous les autres symptômes que vous ressentez",
			Fields: []Field{
				{
					Name:        "autres_symptomes",
					Kind:        KindText,
					Widget:      WidgetTextarea,
					Label:       "Décrivez tous les autres symptômes",
					Placeholder: "Décrivez vos symptômes en détail...",
					Rule:        validation.Property{MinLength: validation.Int(10), MaxLength: validation.Int(600)},
					Messages: map[string]string{
						"":                       "Veuillez décrire vos symptômes (minimum 10 caractères)",
						validation.CodeMaxLength: "Description trop longue (maximum 600 caractères)",
					},
				},
			},
		},
		{
			Key:         "zones",
			Title:       "Localisation des douleurs",
			Description: "Où se situent vos douleurs ?",
			Fields: []Field{
				{
					Name:     "zones_douleur",
					Kind:     KindMulti,
					Widget:   WidgetMultiselect,
					Label:    "Zones de douleur",
					Options:  ZonesDouleurOptions,
					Rule:     validation.Property{MinItems: validation.Int(1)},
					Messages: msg("Veuillez sélectionner au moins une zone"),
				},
			},
		},
		{
			Key:         "apparition",
			Title:       "Apparition des symptômes",
			Description: "Les symptômes sont-ils apparus soudainement ?",
			Fields: []Field{
				{
					Name:     "apparition_soudaine",
					Kind:     KindChoice,
					Widget:   WidgetRadio,
					Label:    "Apparition soudaine",
					Options:  OuiNonOptions,
					Messages: msg("Veuillez sélectionner une réponse"),
				},
			},
		},
		{
			Key:         "medicaments",
			Title:       "Médicaments",
			Description: "Médicaments pris régulièrement",
			Fields: []Field{
				{
					Name:        "medicaments_reguliers",
					Kind:        KindText,
					Widget:      WidgetTextarea,
					Label:       "Médicaments pris régulièrement",
					Placeholder: "Listez vos médicaments ou indiquez 'Aucun'",
					Rule:        validation.Property{MinLength: validation.Int(1)},
					Messages:    msg("Veuillez indiquer vos médicaments ou 'Aucun'"),
				},
			},
		},
		{
			Key:         "facteurs_risque",
			Title:       "Facteurs de risque",
			Description: "Présentez-vous l'un de ces facteurs de risque ?",
			Fields: []Field{
				{
					Name:     "facteurs_risque",
					Kind:     KindMulti,
					Widget:   WidgetMultiselect,
					Label:    "Facteurs de risque",
					Options:  FacteursRisqueOptions,
					Messages: msg("Veuillez sélectionner des facteurs valides"),
				},
			},
		},
		{
			Key:         "type_arret",
			Title:       "Type de demande",
			Description: "Nouvel arrêt ou prolongation ?",
			Fields: []Field{
				{
					Name:     "type_arret",
					Kind:     KindChoice,
					Widget:   WidgetRadio,
					Label:    "Type d'arrêt",
					Options:  TypeArretOptions,
					Messages: msg("Veuillez sélectionner le type d'arrêt"),
				},
			},
		},
		{
			Key:         "profession",
			Title:       "Profession",
			Description: "Quelle est votre profession actuelle ?",
			Fields: []Field{
				{
					Name:        "profession",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Quelle est votre profession actuelle ?",
					Placeholder: "Ex: Enseignant, Infirmier, Commercial...",
					Rule:        validation.Property{MinLength: validation.Int(2)},
					Messages:    msg("Veuillez indiquer votre profession"),
				},
			},
		},
		{
			Key:         "dates",
			Title:       "Dates d'incapacité",
			Description: "Période d'arrêt de travail (maximum 7 jours)",
			Fields: []Field{
				{
					Name:        "date_debut",
					Kind:        KindDate,
					Widget:      WidgetDate,
					Label:       "Date de début",
					Placeholder: "Sélectionner la date",
					Messages:    msg("Veuillez sélectionner la date de début"),
				},
				{
					Name:        "date_fin",
					Kind:        KindDate,
					Widget:      WidgetDate,
					Label:       "Date de fin",
					Placeholder: "Sélectionner la date",
					Messages:    msg("Veuillez sélectionner la date de fin"),
				},
				{
					Name:        "date_fin_lettres",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Date de fin en toutes lettres (MAJUSCULES)",
					Placeholder: "Ex: DIX SEPTEMBRE DEUX MILLE VINGT CINQ",
					Rule:        validation.Property{MinLength: validation.Int(10), Pattern: upperDatePattern},
					Messages: map[string]string{
						"":                     "Veuillez saisir la date en toutes lettres",
						validation.CodePattern: "La date doit être en majuscules",
					},
				},
			},
			refine: refineDateRange,
		},
		{
			Key:         "identite",
			Title:       "Identité",
			Description: "Nom et prénom",
			Fields: []Field{
				{
					Name:        "nom_prenom",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Nom et prénom (en MAJUSCULES)",
					Placeholder: "Ex: DUPONT JEAN",
					Rule:        validation.Property{MinLength: validation.Int(3), Pattern: upperNamePattern},
					Messages: map[string]string{
						"":                     "Veuillez saisir votre nom et prénom",
						validation.CodePattern: "Le nom doit être en majuscules",
					},
				},
			},
		},
		{
			Key:         "naissance",
			Title:       "Date de naissance",
			Description: "Vous devez avoir au moins 16 ans",
			Fields: []Field{
				{
					Name:     "date_naissance",
					Kind:     KindDate,
					Widget:   WidgetDate,
					Label:    "Date de naissance",
					Messages: msg("Veuillez sélectionner votre date de naissance"),
				},
			},
			refine: refineAge,
		},
		{
			Key:         "email",
			Title:       "Adresse e-mail",
			Description: "Votre arrêt sera envoyé à cette adresse",
			Fields: []Field{
				{
					Name:        "email",
					Kind:        KindText,
					Widget:      WidgetEmail,
					Label:       "Adresse e-mail",
					Placeholder: "votre.email@exemple.fr",
					Rule:        validation.Property{Format: "email", Pattern: emailPattern},
					Messages:    msg("Adresse e-mail invalide"),
				},
				{
					Name:        "email_confirmation",
					Kind:        KindText,
					Widget:      WidgetEmail,
					Label:       "Confirmez votre adresse e-mail",
					Placeholder: "Saisissez à nouveau votre e-mail",
					Rule:        validation.Property{Format: "email", Pattern: emailPattern},
					Messages:    msg("Adresse e-mail invalide"),
				},
			},
			refine: refineEmailConfirmation,
		},
		{
			Key:         "adresse",
			Title:       "Adresse postale",
			Description: "Adresse complète",
			Fields: []Field{
				{
					Name:        "adresse",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Numéro et voie",
					Placeholder: "Ex: 12 rue de la République",
					Rule:        validation.Property{MinLength: validation.Int(5)},
					Messages:    msg("Veuillez saisir votre adresse complète"),
				},
				{
					Name:        "code_postal",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Code postal",
					Placeholder: "75001",
					Rule:        validation.Property{Pattern: `^\d{5}$`},
					Messages:    msg("Code postal invalide (5 chiffres)"),
				},
				{
					Name:        "ville",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Ville",
					Placeholder: "Paris",
					Rule:        validation.Property{MinLength: validation.Int(2)},
					Messages:    msg("Veuillez saisir votre ville"),
				},
				{
					Name:        "pays",
					Kind:        KindChoice,
					Widget:      WidgetSelect,
					Label:       "Pays",
					Placeholder: "Sélectionner un pays",
					Options:     PaysOptions,
					Messages:    msg("Veuillez sélectionner un pays"),
				},
			},
		},
		{
			Key:         "situation",
			Title:       "Situation professionnelle",
			Description: "Quelle est votre situation ?",
			Fields: []Field{
				{
					Name:        "situation_pro",
					Kind:        KindChoice,
					Widget:      WidgetSelect,
					Label:       "Quelle est votre situation professionnelle ?",
					Placeholder: "Sélectionner votre situation",
					Options:     SituationsProOptions,
					Messages:    msg("Veuillez sélectionner votre situation"),
				},
			},
		},
		{
			Key:         "medecin",
			Title:       "Médecin traitant",
			Description: "Ville ou région de votre médecin",
			Fields: []Field{
				{
					Name:        "localisation_medecin",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Ville ou région du médecin habituel",
					Placeholder: "Ex: Paris, Lyon, Bordeaux...",
					Rule:        validation.Property{MinLength: validation.Int(2)},
					Messages:    msg("Veuillez indiquer la ville ou région de votre médecin"),
				},
			},
		},
		{
			Key:         "securite_sociale",
			Title:       "Numéro de sécurité sociale",
			Description: "15 chiffres",
			Fields: []Field{
				{
					Name:        "numero_securite_sociale",
					Kind:        KindText,
					Widget:      WidgetText,
					Label:       "Numéro de sécurité sociale",
					Placeholder: "1 23 45 67 890 123 45",
					Rule:        validation.Property{Pattern: `^\d{15}$`},
					Normalize:   stripSpaces,
					Messages:    msg("Le numéro de sécurité sociale doit contenir 15 chiffres"),
				},
			},
		},
		{
			Key:         "paiement",
			Title:       "Paiement sécurisé",
			Description: "14 € TTC - Remboursé si non éligible",
			Fields: []Field{
				{
					Name:     "conditions_acceptees",
					Kind:     KindBool,
					Widget:   WidgetCheckbox,
					Label:    "J'accepte les conditions générales",
					Rule:     validation.Property{Const: true},
					Messages: msg("Vous devez accepter les conditions générales"),
				},
			},
		},
	}
}
