// Package api mounts the HTTP surface: the two channel webhooks, health,
// the embedded OpenAPI documentation, and the token-guarded admin
// endpoints for enrollment and audit review.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/querylog"
	"github.com/jmensah/fieldcheck/ratelimit"
	"github.com/jmensah/fieldcheck/ussd"
	"github.com/jmensah/fieldcheck/whatsapp"
)

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	registry   *directory.Registry
	limiter    *ratelimit.Limiter
	log        *querylog.Log
	ussdRouter *ussd.Router
	waEngine   *whatsapp.Engine
	adminToken string
	audit      *auditLogger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// Deps are the collaborators the handlers route into.
type Deps struct {
	Registry   *directory.Registry
	Limiter    *ratelimit.Limiter
	QueryLog   *querylog.Log
	USSD       *ussd.Router
	WhatsApp   *whatsapp.Engine
	AdminToken string
}

// New creates a new API instance.
func New(d Deps, opts ...Option) *API {
	a := &API{
		registry:   d.Registry,
		limiter:    d.Limiter,
		log:        d.QueryLog,
		ussdRouter: d.USSD,
		waEngine:   d.WhatsApp,
		adminToken: d.AdminToken,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ussd", a.ussdRouter.Handler())
	r.Post("/whatsapp", a.waEngine.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/yaml")
			w.Write(openapiSpec)
		})
		r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
			SpecURL: "/api/v1/openapi.yaml",
			Path:    "api/v1/docs",
		}, nil))
		r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
			SpecURL: "/api/v1/openapi.yaml",
			Path:    "api/v1/redoc",
		}, nil))

		r.Group(func(r chi.Router) {
			r.Use(a.adminAuth)
			r.Post("/officers", a.EnrollOfficer)
			r.Get("/officers/{officerID}/quota", a.OfficerQuota)
			r.Get("/querylog", a.ListQueryLog)
		})
	})

	return r
}
