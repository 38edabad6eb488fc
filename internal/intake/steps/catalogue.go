package steps

import (
	"encoding/json"
	"time"

	"consult-intake/pkg/catalog"
)

// CatalogVersion changes whenever the step table changes shape.
const CatalogVersion = "1.0.0"

// Catalog renders the table as the client-facing step catalogue.
func (t *Table) Catalog(now time.Time) *catalog.StepCatalog {
	cat := &catalog.StepCatalog{
		Version:     CatalogVersion,
		LastUpdated: now.UTC().Format(time.RFC3339),
		Steps:       make([]catalog.Step, 0, len(t.steps)),
	}
	for _, d := range t.steps {
		step := catalog.Step{
			ID:          d.DisplayIndex(),
			Key:         d.Key,
			Title:       d.Title,
			Description: d.Description,
			InputSchema: schemaMap(d),
		}
		for _, f := range d.Fields {
			cf := catalog.Field{
				Name:        f.Name,
				Widget:      f.Widget,
				Label:       f.Label,
				Placeholder: f.Placeholder,
			}
			for _, o := range f.Options {
				cf.Options = append(cf.Options, catalog.Option{Value: o.Value, Label: o.Label})
			}
			step.Fields = append(step.Fields, cf)
		}
		cat.Steps = append(cat.Steps, step)
	}
	return cat
}

func schemaMap(d *Descriptor) map[string]interface{} {
	raw, err := json.Marshal(d.schema.Source())
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
