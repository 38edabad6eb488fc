// pkg/catalog/schema.go
package catalog

// StepCatalog is the published description of the wizard steps, used by
// clients to render each screen.
type StepCatalog struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Steps       []Step `json:"steps"`
}

type Step struct {
	ID          int                    `json:"id"` // 1-based display index
	Key         string                 `json:"key"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Fields      []Field                `json:"fields"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

type Field struct {
	Name        string   `json:"name"`
	Widget      string   `json:"widget"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty"`
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
