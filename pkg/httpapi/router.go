/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package httpapi exposes a thin admin/read HTTP surface over the storage
// and alert engines: statistics, active alerts and history, and
// maintenance triggers. It is not a dashboard backend — just the wire
// surface one would call.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/netmond/pkg/alert"
	"github.com/jordigilh/netmond/pkg/storage"
)

// MaintenanceStore is the narrow slice of storage.Store the admin API needs.
type MaintenanceStore interface {
	Statistics(ctx context.Context) (storage.Statistics, error)
	Backup(ctx context.Context) (storage.BackupResult, error)
	Optimize(ctx context.Context) (storage.OptimizeResult, error)
	ApplyRetention(ctx context.Context) (storage.RetentionResult, error)
}

// AlertReader is the narrow slice of alert.Engine the admin API needs.
type AlertReader interface {
	GetActiveAlerts(severity *alert.Severity) []alert.Alert
	GetHistory(hoursBack, limit int) []alert.Alert
}

// Router builds the chi mux and holds its handler dependencies.
type Router struct {
	store  MaintenanceStore
	alerts AlertReader
	log    *logrus.Entry
}

// NewRouter wires the admin API's routes, CORS policy, and instrumentation.
func NewRouter(store MaintenanceStore, alerts AlertReader, log *logrus.Entry, cors CORSOptions) *chi.Mux {
	h := &Router{store: store, alerts: alerts, log: log}

	r := chi.NewRouter()
	r.Use(InFlightRequests)
	r.Use(HTTPMetrics)
	r.Use(CORSMiddleware(cors))

	r.Get("/healthz", h.handleHealthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/statistics", h.handleStatistics)
		api.Get("/alerts/active", h.handleActiveAlerts)
		api.Get("/alerts/history", h.handleAlertHistory)

		api.Route("/admin", func(admin chi.Router) {
			admin.Post("/backup", h.handleBackup)
			admin.Post("/optimize", h.handleOptimize)
			admin.Post("/retention", h.handleApplyRetention)
		})
	})

	return r
}

func (h *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
