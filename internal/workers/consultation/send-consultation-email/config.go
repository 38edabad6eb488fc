// internal/workers/consultation/send-consultation-email/config.go
package sendconsultationemail

import (
	"time"

	"consult-intake/internal/common/config"
)

type Config struct {
	Enabled      bool
	FromEmail    string
	OpsRecipient string
	SupportEmail string
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Enabled:      cfg.Notifications.Email.Enabled,
		FromEmail:    cfg.Notifications.Email.FromEmail,
		OpsRecipient: cfg.Notifications.Email.OpsRecipient,
		SupportEmail: cfg.Notifications.SupportEmail,
		Timeout:      config.GetDuration(wc.Timeout),
	}
}
