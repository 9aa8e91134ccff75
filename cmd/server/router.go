package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datamod/internal/audit"
	"datamod/internal/modification"
	modificationhandler "datamod/internal/modification/handler"
	"datamod/internal/platform/metrics"
	"datamod/internal/platform/middleware"
	"datamod/internal/users"
	dErrors "datamod/pkg/domain-errors"
	"datamod/pkg/platform/httputil"
)

type routerDeps struct {
	db         *sql.DB
	runner     *modification.Runner
	auditStore audit.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
	// metricsHandler serves /metrics; nil uses the default registry.
	metricsHandler http.Handler
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))

	modificationhandler.New(modificationhandler.NewRunnerService(deps.runner), deps.logger, deps.metrics).Register(r)
	audit.NewHandler(deps.auditStore, deps.logger).Register(r)
	users.NewHandler(users.New(deps.db), deps.logger).Register(r)

	metricsHandler := deps.metricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/healthz", healthz(deps.db))
	return r
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "database unavailable"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
