package steps

// Option is one selectable value with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var (
	MaladiesOptions = []Option{
		{"gastro", "Gastro-entérite"},
		{"epuisement", "Syndrome d'épuisement"},
		{"covid", "Symptômes COVID-19"},
		{"stress", "Stress"},
		{"migraine", "Migraine"},
	}

	SymptomesOptions = []Option{
		{"fievre", "Fièvre"},
		{"nausees", "Nausées"},
		{"diarrhee", "Diarrhée"},
		{"toux_seche", "Toux sèche"},
		{"toux_mucosites", "Toux avec mucosités"},
		{"malaise", "Malaise"},
		{"fatigue", "Fatigue"},
		{"hypertension", "Hypertension artérielle"},
		{"raideurs", "Raideurs / mouvements limités"},
		{"stress_recent", "Événement stressant récent"},
		{"troubles_sommeil", "Troubles du sommeil"},
	}

	OuiNonOptions = []Option{
		{"oui", "Oui"},
		{"non", "Non"},
		{"peut-etre", "Peut-être"},
	}

	ZonesDouleurOptions = []Option{
		{"tete", "Tête"},
		{"ventre", "Ventre"},
		{"dents", "Dents"},
		{"dos", "Dos"},
		{"cou", "Cou"},
		{"membres", "Membres"},
		{"oreilles", "Oreilles"},
		{"organes_genitaux", "Organes génitaux"},
	}

	FacteursRisqueOptions = []Option{
		{"respiration", "Difficultés respiratoires, vomissements ou diarrhée sévère"},
		{"obstruction", "Bruits ou obstructions lors de la respiration"},
		{"enceinte", "Enceinte ou immunodéficience"},
		{"douleur_intense", "Douleur intense (oreille, visage, membres)"},
		{"douleur_organes", "Douleur au larynx, poitrine ou abdomen"},
		{"maladie_chronique", "Maladie cardiaque, respiratoire ou intestinale chronique"},
		{"voyage_tropical", "Voyage tropical récent (moins de 2 mois)"},
		{"sentiment_grave", "Sentiment de maladie grave ou difficulté à avaler"},
		{"symptomes_neuro", "Paralysie, troubles de la conscience, saignements ou éruptions cutanées"},
	}

	TypeArretOptions = []Option{
		{"nouvel", "Nouvel arrêt maladie"},
		{"prolongation", "Prolongation d'arrêt"},
	}

	PaysOptions = []Option{
		{"FR", "France"},
		{"BE", "Belgique"},
		{"CH", "Suisse"},
		{"LU", "Luxembourg"},
		{"CA", "Canada"},
	}

	SituationsProOptions = []Option{
		{"employe", "Employé"},
		{"fonctionnaire", "Fonctionnaire"},
		{"sans_emploi", "Sans emploi"},
		{"alternant", "Alternant"},
		{"independant", "Indépendant"},
		{"etudiant", "Étudiant"},
		{"agricole", "Activité agricole"},
	}
)

func values(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

// LabelFor returns the display label for value among opts, or value itself.
func LabelFor(opts []Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}
