// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func LoadCatalog(path string) (*StepCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat StepCatalog
	err = json.Unmarshal(data, &cat)
	return &cat, err
}

// SaveCatalog writes cat as indented JSON, creating the parent directory.
func SaveCatalog(cat *StepCatalog, path string) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Validate checks the structural rules every catalog must satisfy: ids run
// 1..n in order, keys are unique and no field appears in two steps.
func Validate(cat *StepCatalog) error {
	if len(cat.Steps) == 0 {
		return fmt.Errorf("catalog contains no steps")
	}

	keys := make(map[string]bool)
	fields := make(map[string]string)
	for i, step := range cat.Steps {
		if step.ID != i+1 {
			return fmt.Errorf("step %q has id %d, expected %d", step.Key, step.ID, i+1)
		}
		if step.Key == "" {
			return fmt.Errorf("step %d missing required field: key", step.ID)
		}
		if keys[step.Key] {
			return fmt.Errorf("duplicate step key: %s", step.Key)
		}
		keys[step.Key] = true

		if step.Title == "" {
			return fmt.Errorf("step %s missing required field: title", step.Key)
		}
		if len(step.Fields) == 0 {
			return fmt.Errorf("step %s has no fields", step.Key)
		}
		for _, f := range step.Fields {
			if owner, dup := fields[f.Name]; dup {
				return fmt.Errorf("field %s owned by both %s and %s", f.Name, owner, step.Key)
			}
			fields[f.Name] = step.Key
			if f.Widget == "" {
				return fmt.Errorf("field %s missing required field: widget", f.Name)
			}
		}
	}
	return nil
}

// Diff reports the first structural difference between two catalogs,
// ignoring version and timestamp. It returns nil when they match.
func Diff(want, got *StepCatalog) error {
	if len(want.Steps) != len(got.Steps) {
		return fmt.Errorf("step count: want %d, got %d", len(want.Steps), len(got.Steps))
	}
	for i := range want.Steps {
		w, g := want.Steps[i], got.Steps[i]
		if w.Key != g.Key {
			return fmt.Errorf("step %d key: want %s, got %s", i+1, w.Key, g.Key)
		}
		if len(w.Fields) != len(g.Fields) {
			return fmt.Errorf("step %s field count: want %d, got %d", w.Key, len(w.Fields), len(g.Fields))
		}
		for j := range w.Fields {
			wf, gf := w.Fields[j], g.Fields[j]
			if wf.Name != gf.Name || wf.Widget != gf.Widget {
				return fmt.Errorf("step %s field %d: want %s/%s, got %s/%s", w.Key, j, wf.Name, wf.Widget, gf.Name, gf.Widget)
			}
			if len(wf.Options) != len(gf.Options) {
				return fmt.Errorf("field %s options: want %d, got %d", wf.Name, len(wf.Options), len(gf.Options))
			}
			for k := range wf.Options {
				if wf.Options[k].Value != gf.Options[k].Value {
					return fmt.Errorf("field %s option %d: want %s, got %s", wf.Name, k, wf.Options[k].Value, gf.Options[k].Value)
				}
			}
		}
	}
	return nil
}
