// internal/workers/consultation/index-consultation/config.go
package indexconsultation

import (
	"time"

	"consult-intake/internal/common/config"
)

type Config struct {
	Enabled bool
	Index   string
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Enabled: cfg.Database.Elasticsearch.Enabled,
		Index:   cfg.Database.Elasticsearch.Index,
		Timeout: config.GetDuration(wc.Timeout),
	}
}
