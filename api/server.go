/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For
  3. instrument: logrus access log and Prometheus latency by route pattern
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the payroll frontend

ROUTE GROUPS:
  /api/employees/*      Employee lookup and per-employee calculations
  /api/withholding      Withholding tax for a taxable base
  /api/tax-table/*      Tax-table cache status and refresh
  /metrics              Prometheus exposition
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. Deploy behind the payroll gateway, which
  also maps employees to the Site scope passed as ?site=.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured. An empty
// corsOrigins allows any origin.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(instrument(h))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/withholding", h.ComputeWithholding)

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/social-insurance", h.GetSocialInsurance)
			r.Post("/{id}/commission", h.ComputeCommission)
			r.Post("/{id}/deductions", h.ComposeDeductions)
		})

		// Tax table routes
		r.Route("/tax-table", func(r chi.Router) {
			r.Get("/", h.GetTaxTable)
			r.Post("/refresh", h.RefreshTaxTable)
		})
	})

	return r
}

// instrument logs every request and records its latency under the matched
// route pattern, so /api/employees/{id} is one series regardless of id.
func instrument(h *Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if h.Metrics != nil {
				h.Metrics.ObserveRequest(route, status, elapsed)
			}
			h.logger().WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"route":      route,
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"elapsed_ms": elapsed.Milliseconds(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}
