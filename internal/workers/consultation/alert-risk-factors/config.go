// internal/workers/consultation/alert-risk-factors/config.go
package alertriskfactors

import (
	"time"

	"consult-intake/internal/common/config"
)

type Config struct {
	Enabled  bool
	TopicARN string
	Timeout  time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Enabled:  cfg.Notifications.Alerts.Enabled,
		TopicARN: cfg.Notifications.Alerts.TopicARN,
		Timeout:  config.GetDuration(wc.Timeout),
	}
}
