// internal/handler/tasklog_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/leadengage-backend/internal/repository"
)

// TaskLogHandler is the read-only introspection surface over the ledger,
// used by operational tooling.
type TaskLogHandler struct {
	Log repository.TaskLogRepositoryInterface
}

func (h *TaskLogHandler) GetEntryHandler(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	entry, err := h.Log.GetByID(taskID)
	if err != nil {
		http.Error(w, "failed to fetch task log entry: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "task log entry not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *TaskLogHandler) ListByBusinessHandler(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "id")

	var maxAge time.Duration
	if v := r.URL.Query().Get("max_age_hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours < 0 {
			http.Error(w, "invalid max_age_hours", http.StatusBadRequest)
			return
		}
		maxAge = time.Duration(hours) * time.Hour
	}

	entries, err := h.Log.ListByBusiness(businessID, maxAge)
	if err != nil {
		http.Error(w, "failed to fetch task log: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  entries,
		"count": len(entries),
	})
}
