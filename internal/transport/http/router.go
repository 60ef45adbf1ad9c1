// Package http assembles the public router: middleware chain, authenticated
// API surface, admin surface, and ops endpoints.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "certo/internal/audit/handler"
	certhandler "certo/internal/certification/handler"
	contracthandler "certo/internal/contract/handler"
	"certo/internal/platform/metrics"
	"certo/internal/platform/middleware"
	tenanthandler "certo/internal/tenant/handler"
)

const requestTimeout = 30 * time.Second

// Deps carries everything the router mounts. HealthCheck is optional; when
// set, /healthz fails with 503 if it returns an error.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	TokenValidator middleware.TokenValidator
	AdminToken     string

	Audits         *audithandler.Handler
	Certifications *certhandler.Handler
	Contracts      *contracthandler.Handler
	Tenants        *tenanthandler.Handler

	HealthCheck func() error
}

// New builds the chi router with the full middleware chain.
func New(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/healthz", healthz(deps.HealthCheck))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(deps.TokenValidator, deps.Logger))
		deps.Audits.Register(api)
		deps.Certifications.Register(api)
		deps.Contracts.Register(api)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Tenants.Register(admin)
	})

	return r
}

func healthz(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			if err := check(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
