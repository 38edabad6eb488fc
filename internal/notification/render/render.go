package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"consult-intake/internal/models"
)

// Entry is one labelled, display-ready value.
type Entry struct {
	Key   string
	Label string
	Value string
}

// Email holds the three renderings of a consultation.
type Email struct {
	HTML string
	Text string
	CSV  []byte
}

var summaryFields = []struct {
	key   string
	label string
}{
	{"nom_prenom", "Nom et prénom"},
	{"email", "Email"},
	{"created_at", "Date de création"},
	{"payment_status", "Statut paiement"},
}

const (
	textHeader = "NOUVELLE DEMANDE – CONSULT-CHRONO"
	footer     = "Données stockées dans l'UE — © consult-chrono.fr"
	csvBOM     = "\uFEFF"
)

// Values flattens rec into display strings keyed by field name, including
// the record metadata. Empty values are omitted and nothing is masked yet.
func Values(rec *models.SubmittedRecord) map[string]string {
	out := rec.Consultation.FieldValues()
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("id", rec.ID)
	put("numero_dossier", rec.NumeroDossier)
	put("payment_status", string(rec.PaymentStatus))
	if rec.PaymentID != nil {
		put("payment_id", *rec.PaymentID)
	}
	if rec.ConfirmedVia != nil {
		put("confirmed_via", string(*rec.ConfirmedVia))
	}
	put("created_at", FormatDateTime(rec.CreatedAt))
	return out
}

// Split returns the summary entries in fixed order followed by every other
// entry sorted by key.
func Split(rec *models.SubmittedRecord) (summary, details []Entry) {
	values := Values(rec)
	inSummary := make(map[string]bool, len(summaryFields))
	for _, f := range summaryFields {
		inSummary[f.key] = true
		if v, ok := values[f.key]; ok {
			summary = append(summary, Entry{Key: f.key, Label: f.label, Value: FormatValue(f.key, v)})
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if !inSummary[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		details = append(details, Entry{Key: k, Label: FormatKey(k), Value: FormatValue(k, values[k])})
	}
	return summary, details
}

// Render produces all three formats.
func Render(rec *models.SubmittedRecord) (*Email, error) {
	html, err := HTML(rec)
	if err != nil {
		return nil, err
	}
	return &Email{HTML: html, Text: Text(rec), CSV: CSV(rec)}, nil
}

func HTML(rec *models.SubmittedRecord) (string, error) {
	summary, details := Split(rec)
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Paid    bool
		Summary []Entry
		Details []Entry
		Footer  string
	}{rec.IsPaid(), summary, details, footer})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func Text(rec *models.SubmittedRecord) string {
	summary, details := Split(rec)
	lines := []string{textHeader, strings.Repeat("=", 40), ""}
	for _, e := range summary {
		lines = append(lines, e.Label+": "+e.Value)
	}
	lines = append(lines, "", "DÉTAILS COMPLETS:", strings.Repeat("-", 20))
	for _, e := range details {
		lines = append(lines, e.Label+": "+e.Value)
	}
	lines = append(lines, "", footer)
	return strings.Join(lines, "\n")
}

// CSV renders every non-empty value, sorted by key, as "Label";"Value"
// rows after a Champ;Valeur header. The BOM keeps spreadsheet tools on UTF-8.
func CSV(rec *models.SubmittedRecord) []byte {
	values := Values(rec)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(csvBOM)
	b.WriteString("Champ;Valeur")
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(quote(FormatKey(k)))
		b.WriteString(";")
		b.WriteString(quote(FormatValue(k, values[k])))
	}
	return []byte(b.String())
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var htmlTemplate = template.Must(template.New("consultation").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<title>Nouvelle demande - Consult-Chrono</title>
</head>
<body style="margin:0;padding:0;background-color:#f8fafc;font-family:Arial,sans-serif;color:#0F172A;">
<div style="max-width:600px;margin:0 auto;background-color:#ffffff;">
<div style="background:#0A6ABF;padding:20px;text-align:center;">
<h1 style="margin:0;color:#ffffff;font-size:20px;">Nouvelle demande – Consult-Chrono{{if .Paid}} <span style="background:#10B981;color:#ffffff;padding:4px 8px;border-radius:4px;font-size:12px;">PAYÉ</span>{{end}}</h1>
</div>
<div style="padding:24px;">
<h2 style="font-size:16px;">Résumé</h2>
<table style="width:100%;border-collapse:collapse;">
{{- range .Summary}}
<tr><td style="padding:8px 12px;font-weight:600;">{{.Label}}</td><td style="padding:8px 12px;">{{if and (eq .Key "payment_status") (eq .Value "done")}}<span style="background:#10B981;color:#ffffff;padding:2px 8px;border-radius:4px;font-size:12px;">PAYÉ</span>{{else}}{{.Value}}{{end}}</td></tr>
{{- end}}
</table>
<h2 style="font-size:16px;">Détails complets</h2>
<table style="width:100%;border-collapse:collapse;">
<thead><tr><th style="text-align:left;padding:12px;">Champ</th><th style="text-align:left;padding:12px;">Valeur</th></tr></thead>
<tbody>
{{- range .Details}}
<tr><td style="padding:8px 12px;font-weight:600;">{{.Label}}</td><td style="padding:8px 12px;">{{.Value}}</td></tr>
{{- end}}
</tbody>
</table>
</div>
<div style="background:#f8fafc;padding:16px;text-align:center;font-size:12px;color:#64748b;">{{.Footer}}</div>
</div>
</body>
</html>
`))
