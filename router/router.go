// Package router assembles HiveBoard's middleware chain and REST/WebSocket
// route table.
package router

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/alerting"
	"github.com/hiveboard/hiveboard/broadcast"
	"github.com/hiveboard/hiveboard/config"
	"github.com/hiveboard/hiveboard/handler"
	"github.com/hiveboard/hiveboard/ingest"
	hbmw "github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/observability"
	"github.com/hiveboard/hiveboard/storage"
)

// Deps bundles every dependency the route table needs. main.go builds one
// of these after wiring storage, the broadcast bus, and the ingest pipeline.
type Deps struct {
	Store    *storage.Store
	Pipeline *ingest.Pipeline
	Bus      broadcast.Bus
	// NativeBus is set only in local mode — it is the concrete type needed
	// to serve the native WebSocket upgrade directly.
	NativeBus *broadcast.NativeManager
	// Bridge is set only in production mode, mounting /ws/connect,
	// /ws/disconnect and /ws/message alongside the REST surface.
	Bridge  *broadcast.Bridge
	Alerts  *alerting.Engine
	Metrics *observability.Metrics
}

// New returns a configured chi Router with HiveBoard's full middleware
// chain and route table mounted.
func New(cfg *config.Config, appLogger zerolog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(hbmw.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(hbmw.SecurityHeadersMiddleware)
	r.Use(hbmw.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))
	r.Use(mwMaxBodySize(2 * 1024 * 1024))
	if deps.Metrics != nil {
		r.Use(mwMetrics(deps.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"hiveboard"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"hiveboard"}`))
	})
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler().ServeHTTP)
	}

	authMW := hbmw.NewAuthMiddleware(appLogger, deps.Store)
	rateLimiter := hbmw.NewRateLimiter(appLogger, cfg.RateLimitEnabled, cfg.RateLimitRPM, cfg.RateLimitRPM)
	headerNorm := hbmw.NewHeaderNormalization(appLogger)
	timeoutMW := hbmw.NewTimeoutMiddleware(appLogger, cfg)

	ingestHandler := handler.NewIngestHandler(deps.Pipeline, appLogger)
	agentHandler := handler.NewAgentHandler(deps.Store, cfg.StuckThreshold(), appLogger)
	taskHandler := handler.NewTaskHandler(deps.Store, appLogger)
	eventHandler := handler.NewEventHandler(deps.Store, appLogger)
	metricsHandler := handler.NewMetricsHandler(deps.Store, appLogger)
	costHandler := handler.NewCostHandler(deps.Store, appLogger)
	projectHandler := handler.NewProjectHandler(deps.Store, appLogger)
	alertHandler := handler.NewAlertHandler(deps.Store, appLogger)
	adminHandler := handler.NewAdminHandler(deps.Store, appLogger)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Use(rateLimiter.Handler)
		r.Use(headerNorm.Handler)
		r.Use(timeoutMW.Handler)

		r.Post("/ingest", ingestHandler.Ingest)

		r.Get("/agents", agentHandler.ListAgents)
		r.Get("/agents/{id}", agentHandler.GetAgent)
		r.Get("/agents/{id}/pipeline", agentHandler.GetAgentPipeline)

		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{id}/timeline", taskHandler.GetTaskTimeline)

		r.Get("/events", eventHandler.ListEvents)

		r.Get("/metrics", metricsHandler.GetMetrics)

		r.Get("/cost", costHandler.GetCostSummary)
		r.Get("/cost/calls", costHandler.GetCostCalls)
		r.Get("/cost/timeseries", costHandler.GetCostTimeseries)
		r.Get("/llm-calls", costHandler.GetCostCalls)

		r.Get("/projects", projectHandler.ListProjects)
		r.Post("/projects", projectHandler.CreateProject)
		r.Get("/projects/{id}", projectHandler.GetProject)
		r.Patch("/projects/{id}", projectHandler.UpdateProject)
		r.Delete("/projects/{id}", projectHandler.ArchiveProject)

		r.Get("/alerts/rules", alertHandler.ListRules)
		r.Post("/alerts/rules", alertHandler.CreateRule)
		r.Patch("/alerts/rules/{id}", alertHandler.UpdateRule)
		r.Delete("/alerts/rules/{id}", alertHandler.DeleteRule)
		r.Get("/alerts/history", alertHandler.ListHistory)

		r.Post("/admin/tenants", adminHandler.CreateTenant)
		r.Post("/admin/keys", adminHandler.CreateKey)

		if deps.NativeBus != nil {
			r.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
				deps.NativeBus.ServeWS(w, r, hbmw.TenantID(r.Context()))
			})
		}
	})

	if deps.Bridge != nil {
		deps.Bridge.RegisterRoutes(r)
	}

	return r
}

// mwMaxBodySize limits the request body size; HIVEBOARD_MAX_BODY_BYTES
// overrides the compiled-in default for environments that need a larger
// batch ingest ceiling.
func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			max := maxBytes
			if v := os.Getenv("HIVEBOARD_MAX_BODY_BYTES"); v != "" {
				if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
					max = parsed
				}
			}
			if r.ContentLength > 0 && r.ContentLength > max {
				http.Error(w, `{"error":{"code":"payload_too_large","message":"request body too large"}}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

// mwMetrics records request latency bucketed by route pattern and status
// class ("2xx", "3xx", "4xx", "5xx") rather than raw path, to keep cardinality
// bounded for parameterized routes like /v1/agents/{id}.
func mwMetrics(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			statusClass := "2xx"
			switch {
			case rw.Status() >= 500:
				statusClass = "5xx"
			case rw.Status() >= 400:
				statusClass = "4xx"
			case rw.Status() >= 300:
				statusClass = "3xx"
			}
			m.RequestDuration.WithLabelValues(route, statusClass).Observe(time.Since(start).Seconds())
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", r.Header.Get("X-Request-ID")).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
