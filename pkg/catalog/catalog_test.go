package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *StepCatalog {
	return &StepCatalog{
		Version: "1",
		Steps: []Step{
			{ID: 1, Key: "maladie", Title: "Maladie présumée", Fields: []Field{{Name: "maladie_presumee", Widget: "select", Options: []Option{{Value: "gastro", Label: "Gastro-entérite"}}}}},
			{ID: 2, Key: "symptomes", Title: "Symptômes observés", Fields: []Field{{Name: "symptomes", Widget: "multiselect"}}},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "step-catalog.json")
	require.NoError(t, SaveCatalog(sample(), path))

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, sample(), loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *StepCatalog)
		wantErr string
	}{
		{"valid", func(c *StepCatalog) {}, ""},
		{"empty", func(c *StepCatalog) { c.Steps = nil }, "no steps"},
		{"id gap", func(c *StepCatalog) { c.Steps[1].ID = 3 }, "expected 2"},
		{"duplicate key", func(c *StepCatalog) { c.Steps[1].Key = "maladie" }, "duplicate step key"},
		{"shared field", func(c *StepCatalog) { c.Steps[1].Fields[0].Name = "maladie_presumee" }, "owned by both"},
		{"missing widget", func(c *StepCatalog) { c.Steps[0].Fields[0].Widget = "" }, "widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sample()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDiff(t *testing.T) {
	assert.NoError(t, Diff(sample(), sample()))

	changed := sample()
	changed.Steps[0].Fields[0].Options[0].Value = "covid"
	err := Diff(sample(), changed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "option 0")
}
