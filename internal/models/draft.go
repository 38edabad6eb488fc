// internal/models/draft.go
package models

import (
	"encoding/json"
	"time"
)

// FormRecord is the accumulated wizard state. Values are string, []string or bool.
// A key is present only once the step owning it has validated.
type FormRecord map[string]any

// UnmarshalJSON narrows decoded values back to the three supported shapes so a
// record survives a JSON round-trip unchanged.
func (r *FormRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FormRecord, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
			out[k] = items
		case string, bool:
			out[k] = val
		}
	}
	*r = out
	return nil
}

// Clone returns a shallow copy with slices duplicated.
func (r FormRecord) Clone() FormRecord {
	out := make(FormRecord, len(r))
	for k, v := range r {
		if s, ok := v.([]string); ok {
			out[k] = append([]string(nil), s...)
			continue
		}
		out[k] = v
	}
	return out
}

func (r FormRecord) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func (r FormRecord) String(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r FormRecord) Strings(key string) []string {
	s, _ := r[key].([]string)
	return s
}

func (r FormRecord) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Date parses a stored calendar date. The zero time is returned if absent or malformed.
func (r FormRecord) Date(key string) time.Time {
	t, err := time.Parse(DateLayout, r.String(key))
	if err != nil {
		return time.Time{}
	}
	return t
}

// DraftSnapshot is the persisted envelope around a FormRecord.
// Timestamp is the capture time in Unix milliseconds.
type DraftSnapshot struct {
	Version   int        `json:"version"`
	Timestamp int64      `json:"timestamp"`
	Data      FormRecord `json:"data"`
}
