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

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jordigilh/netmond/pkg/alert"
	"github.com/jordigilh/netmond/pkg/shared/logging"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Router) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.Context())
	if err != nil {
		h.log.WithFields(logging.HTTPFields(r.Method, r.URL.Path, http.StatusInternalServerError).ToLogrus()).
			WithError(err).Error("statistics lookup failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Router) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	var severity *alert.Severity
	if q := r.URL.Query().Get("severity"); q != "" {
		s := alert.Severity(q)
		severity = &s
	}
	writeJSON(w, http.StatusOK, h.alerts.GetActiveAlerts(severity))
}

func (h *Router) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if q := r.URL.Query().Get("hours"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			hours = n
		}
	}
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, h.alerts.GetHistory(hours, limit))
}

func (h *Router) handleBackup(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.Backup(r.Context())
	if err != nil {
		h.log.WithFields(logging.StorageFields("backup").ToLogrus()).WithError(err).Error("admin-triggered backup failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Router) handleOptimize(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.Optimize(r.Context())
	if err != nil {
		h.log.WithFields(logging.StorageFields("optimize").ToLogrus()).WithError(err).Error("admin-triggered optimize failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Router) handleApplyRetention(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.ApplyRetention(r.Context())
	if err != nil {
		h.log.WithFields(logging.StorageFields("apply_retention").ToLogrus()).WithError(err).Error("admin-triggered retention sweep failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
