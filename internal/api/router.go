package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technosupport/hikvision-bridge/internal/middleware"
	"github.com/technosupport/hikvision-bridge/internal/nvr"
	"github.com/technosupport/hikvision-bridge/internal/tokens"
)

const DefaultAlarmServerPath = "/api/hikvision"

// RouterConfig carries the handlers' dependencies. Limiter is optional.
type RouterConfig struct {
	AlarmServerPath string
	Service         *nvr.Service
	Dispatcher      *nvr.Dispatcher
	Hub             *nvr.Hub
	Auth            *middleware.JWTAuth
	Limiter         *middleware.ActionLimiter
}

func NewRouter(cfg RouterConfig) http.Handler {
	path := cfg.AlarmServerPath
	if path == "" {
		path = DefaultAlarmServerPath
	}

	notify := NewNotificationHandler(cfg.Dispatcher)
	device := NewDeviceHandler(cfg.Service)
	events := NewEventStreamHandler(cfg.Hub)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// Devices post without credentials (httpAuthenticationMethod=none).
	r.Post(path, notify.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS)
		r.Use(cfg.Auth.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(tokens.ScopeRead))
			r.Get("/device", device.GetDevice)
			r.Get("/cameras", device.ListCameras)
			r.Get("/cameras/{id}/snapshot", device.GetSnapshot)
			r.Get("/entities", device.ListEntities)
			r.Get("/recordings", device.SearchRecordings)
			r.Get("/events/ws", events.ServeWS)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(tokens.ScopeControl))
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Middleware)
			}
			r.Post("/actions/{action}", device.RunAction)
			r.Post("/entities/{id}/select", device.SelectOption)
		})
	})

	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
