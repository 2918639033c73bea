// Package httpapi serves the operational HTTP endpoints: liveness and reminder diagnostics.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mandoo180/telegram-note-bot/internal/reminder"
)

// Pinger checks the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reminders lists unsent reminders.
type Reminders interface {
	Pending(ctx context.Context, userID int64) ([]reminder.Status, error)
}

// JobCounter reports how many reminder jobs are armed in memory.
type JobCounter interface {
	Len() int
}

type handler struct {
	db        Pinger
	reminders Reminders
	jobs      JobCounter
	log       *zap.Logger
}

// RemindersResponse is the body of GET /reminders.
type RemindersResponse struct {
	ArmedJobs int               `json:"armed_jobs"`
	Reminders []reminder.Status `json:"reminders"`
}

// NewRouter builds the HTTP handler.
func NewRouter(db Pinger, reminders Reminders, jobs JobCounter, log *zap.Logger) http.Handler {
	h := &handler{db: db, reminders: reminders, jobs: jobs, log: log.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", h.healthz)
	r.Get("/reminders", h.listReminders)
	return r
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// listReminders returns unsent reminders; ?user_id= narrows to one user.
func (h *handler) listReminders(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		userID = id
	}

	list, err := h.reminders.Pending(r.Context(), userID)
	if err != nil {
		h.log.Error("list reminders failed", zap.Error(err))
		http.Error(w, "failed to list reminders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(RemindersResponse{ArmedJobs: h.jobs.Len(), Reminders: list}); err != nil {
		h.log.Warn("encode response failed", zap.Error(err))
	}
}
