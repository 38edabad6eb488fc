package steps

import (
	"strings"
	"time"

	"consult-intake/internal/models"
)

// FieldErrors maps a field name to its first user-facing message.
type FieldErrors map[string]string

// Validate runs the step schema and refinements against raw input.
// Fields the step does not own are dropped. Schema errors that name no owned
// field are reported against the step's first field. On success the returned
// record holds exactly the owned fields, normalized, and errs is empty.
func (d *Descriptor) Validate(input map[string]any, now time.Time) (models.FormRecord, FieldErrors) {
	sub := d.normalize(input)

	errs := FieldErrors{}
	res := d.schema.ValidateInput(sub)
	for _, e := range res.Errors {
		f, ok := d.field(e.Field)
		if !ok {
			// "(root)" and object-level failures land on the first field.
			if len(d.Fields) == 0 {
				continue
			}
			f = d.Fields[0]
		}
		if _, seen := errs[f.Name]; !seen {
			errs[f.Name] = f.message(e.Code)
		}
	}

	if d.refine != nil {
		for field, message := range d.refine(sub, now) {
			if _, seen := errs[field]; !seen {
				errs[field] = message
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return models.FormRecord(sub), nil
}

// normalize keeps owned fields only, trims strings and coerces values into
// the FormRecord shapes. Values of an unexpected type pass through so the
// schema reports them.
func (d *Descriptor) normalize(input map[string]any) map[string]any {
	out := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		raw, present := input[f.Name]

		switch f.Kind {
		case KindMulti:
			out[f.Name] = normalizeList(raw, present)
		case KindBool:
			if present && raw != nil {
				out[f.Name] = raw
			}
		default:
			if !present || raw == nil {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				out[f.Name] = raw
				continue
			}
			s = strings.TrimSpace(s)
			if f.Normalize != nil {
				s = f.Normalize(s)
			}
			if s != "" {
				out[f.Name] = s
			}
		}
	}
	return out
}

// normalizeList treats a missing selection as the empty set.
func normalizeList(raw any, present bool) any {
	if !present || raw == nil {
		return []string{}
	}
	switch v := raw.(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return raw
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out
	default:
		return raw
	}
}
