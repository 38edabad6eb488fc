// Package api is the HTTP surface of the intake service: the wizard, the
// payment return and webhook endpoints, and the health endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/logger"
)

type Handlers struct {
	Wizard  *WizardHandler
	Payment *PaymentHandler
	Health  *HealthHandler
}

// NewRouter mounts the API under /api/v1 and the health endpoints at the root.
// sessionTTL bounds the lifetime of the wizard session cookie.
func NewRouter(h Handlers, cfg config.ServerConfig, sessionTTL time.Duration, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(Recover(log))

	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Use(LimitBody(cfg.MaxBodyBytes))

		r.Route("/wizard", func(r chi.Router) {
			r.Use(Session(cfg.CookieSecure, sessionTTL))
			r.Get("/", h.Wizard.Resume)
			r.Delete("/", h.Wizard.Restart)
			r.Get("/steps", h.Wizard.Catalog)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Post("/validate", h.Wizard.Validate)
				r.Post("/next", h.Wizard.Next)
				r.Post("/prev", h.Wizard.Prev)
			})
		})

		r.Route("/payment", func(r chi.Router) {
			r.Get("/return", h.Payment.Return)
			r.Post("/webhook", h.Payment.Webhook)
		})
	})

	return r
}
