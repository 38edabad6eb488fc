// Package steps holds the fixed, ordered table of wizard steps and their
// validation schemas.
package steps

import (
	"time"

	"consult-intake/internal/common/validation"
)

// Kind is the value shape a field stores in the FormRecord.
type Kind int

const (
	KindText Kind = iota
	KindChoice
	KindMulti
	KindDate
	KindBool
)

// Widget names understood by the rendering catalogue.
const (
	WidgetSelect      = "select"
	WidgetMultiselect = "multiselect"
	WidgetRadio       = "radio"
	WidgetTextarea    = "textarea"
	WidgetText        = "text"
	WidgetDate        = "date"
	WidgetEmail       = "email"
	WidgetCheckbox    = "checkbox"
)

// Field describes one input owned by a step.
type Field struct {
	Name        string
	Kind        Kind
	Widget      string
	Label       string
	Placeholder string
	Options     []Option

	// Rule carries the constraint keywords; type and enum are derived from
	// Kind and Options.
	Rule validation.Property

	// Normalize rewrites a trimmed string value before validation.
	Normalize func(string) string

	// Messages maps a validation code to a user message. The "" entry is the
	// fallback for any code without its own message.
	Messages map[string]string
}

func (f Field) message(code string) string {
	if m, ok := f.Messages[code]; ok {
		return m
	}
	return f.Messages[""]
}

// Descriptor is one step of the wizard.
type Descriptor struct {
	Index       int // 0-based position
	Key         string
	Title       string
	Description string
	Fields      []Field

	schema *validation.CompiledSchema
	refine func(rec map[string]any, now time.Time) map[string]string
}

// DisplayIndex is the 1-based number shown to the user.
func (d *Descriptor) DisplayIndex() int {
	return d.Index + 1
}

// Owns reports whether field belongs to this step.
func (d *Descriptor) Owns(field string) bool {
	for _, f := range d.Fields {
		if f.Name == field {
			return true
		}
	}
	return false
}

// FieldNames lists the owned fields in declaration order.
func (d *Descriptor) FieldNames() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.Name
	}
	return out
}

// Schema exposes the compiled JSON schema for export.
func (d *Descriptor) Schema() *validation.CompiledSchema {
	return d.schema
}

func (d *Descriptor) field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Table is the ordered, immutable step list.
type Table struct {
	steps []*Descriptor
}

// Len is the total number of steps.
func (t *Table) Len() int {
	return len(t.steps)
}

// Terminal is the index of the last step.
func (t *Table) Terminal() int {
	return len(t.steps) - 1
}

// Step returns the descriptor at index, or false when out of range.
func (t *Table) Step(index int) (*Descriptor, bool) {
	if index < 0 || index >= len(t.steps) {
		return nil, false
	}
	return t.steps[index], true
}

// Steps returns the descriptors in order.
func (t *Table) Steps() []*Descriptor {
	out := make([]*Descriptor, len(t.steps))
	copy(out, t.steps)
	return out
}

// Frontier is the first step whose owned fields are not all present in rec,
// or Len() when every step has been validated.
func (t *Table) Frontier(rec map[string]any) int {
	for i, d := range t.steps {
		for _, f := range d.Fields {
			if _, ok := rec[f.Name]; !ok {
				return i
			}
		}
	}
	return len(t.steps)
}

// NewTable builds a table from descriptors, compiling each step schema and
// checking that no field is owned twice.
func NewTable(descs []*Descriptor) (*Table, error) {
	owners := make(map[string]int)
	for i, d := range descs {
		d.Index = i
		for _, f := range d.Fields {
			if prev, dup := owners[f.Name]; dup {
				return nil, &DuplicateFieldError{Field: f.Name, First: prev, Second: i}
			}
			owners[f.Name] = i
		}
		if d.schema == nil {
			compiled, err := validation.Compile(schemaFor(d))
			if err != nil {
				return nil, err
			}
			d.schema = compiled
		}
	}
	return &Table{steps: descs}, nil
}

// DuplicateFieldError is returned when two steps claim the same field.
type DuplicateFieldError struct {
	Field         string
	First, Second int
}

func (e *DuplicateFieldError) Error() string {
	return "field " + e.Field + " owned by more than one step"
}
