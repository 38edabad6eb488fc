package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Error codes reported by gojsonschema that callers commonly translate.
const (
	CodeRequired    = "required"
	CodeInvalidType = "invalid_type"
	CodeEnum        = "enum"
	CodeConst       = "const"
	CodeMinItems    = "array_min_items"
	CodeMinLength   = "string_gte"
	CodeMaxLength   = "string_lte"
	CodePattern     = "pattern"
	CodeFormat      = "format"
)

// JSONSchema defines the structure for input schemas
type JSONSchema struct {
	Schema               string              `json:"$schema,omitempty"`
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties *bool               `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string      `json:"type,omitempty"`
	Description string      `json:"description,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Const       interface{} `json:"const,omitempty"`
	Pattern     string      `json:"pattern,omitempty"`
	Format      string      `json:"format,omitempty"`
	MinLength   *int        `json:"minLength,omitempty"`
	MaxLength   *int        `json:"maxLength,omitempty"`
	MinItems    *int        `json:"minItems,omitempty"`
	UniqueItems bool        `json:"uniqueItems,omitempty"`
	Items       *Property   `json:"items,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Int returns a pointer for the optional numeric keywords.
func Int(v int) *int { return &v }

// CompiledSchema is a parsed schema safe for concurrent use.
type CompiledSchema struct {
	source JSONSchema
	schema *gojsonschema.Schema
}

// Compile parses schema once so it can be reused for every request.
func Compile(schema JSONSchema) (*CompiledSchema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &CompiledSchema{source: schema, schema: compiled}, nil
}

// MustCompile is Compile for package-level tables.
func MustCompile(schema JSONSchema) *CompiledSchema {
	c, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return c
}

// Source returns the schema document the compiled form was built from.
func (c *CompiledSchema) Source() JSONSchema {
	return c.source
}

// MarshalJSON renders the underlying schema document.
func (c *CompiledSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.source)
}

// ValidateInput validates input and reports errors keyed by top-level property.
// Array item errors ("symptomes.0") are reported against the array itself.
func (c *CompiledSchema) ValidateInput(input map[string]interface{}) *ValidationResult {
	result, err := c.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    CodeInvalidType,
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldOf(desc),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out
}

func fieldOf(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if desc.Type() == CodeRequired {
		if prop, ok := desc.Details()["property"].(string); ok {
			field = prop
		}
	}
	if i := strings.Index(field, "."); i > 0 {
		field = field[:i]
	}
	return field
}
