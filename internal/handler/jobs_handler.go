package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/controller"
	"github.com/unclebandit/koya-caller/internal/service"
)

type QueueJobs interface {
	ProcessQueue(ctx context.Context, tenantID string) (service.ProcessSummary, error)
	ProcessAll(ctx context.Context) ([]service.ProcessSummary, error)
	RecoverStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type CalendarJobs interface {
	ReconcileAll(ctx context.Context) ([]*service.ReconcileResult, error)
}

type ReminderJobs interface {
	Run(ctx context.Context) (*service.ReminderResult, error)
}

// JobsHandler exposes the periodic jobs to an external scheduler.
type JobsHandler struct {
	// CronSecret is the expected bearer token. Empty rejects every call.
	CronSecret string
	Queue      QueueJobs
	Calendars  CalendarJobs
	Reminders  ReminderJobs
	StaleAfter time.Duration
	Log        *zap.Logger
}

func (h *JobsHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// Authorize requires "Authorization: Bearer <CronSecret>".
func (h *JobsHandler) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.CronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.CronSecret)) != 1 {
			controller.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProcessQueue recovers stale entries and then dials due work, for one
// tenant when tenant_id is given, otherwise for all.
func (h *JobsHandler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recovered := 0
	if h.StaleAfter > 0 {
		n, err := h.Queue.RecoverStale(ctx, h.StaleAfter)
		if err != nil {
			h.log().Error("recover stale entries", zap.Error(err))
		}
		recovered = n
	}

	if tenantID := r.URL.Query().Get("tenant_id"); tenantID != "" {
		summary, err := h.Queue.ProcessQueue(ctx, tenantID)
		if err != nil {
			controller.WriteError(w, err)
			return
		}
		controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"recovered": recovered,
			"results":   []service.ProcessSummary{summary},
		})
		return
	}

	summaries, err := h.Queue.ProcessAll(ctx)
	if err != nil {
		h.log().Error("process queue", zap.Error(err))
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recovered": recovered,
		"results":   summaries,
	})
}

func (h *JobsHandler) ReconcileCalendars(w http.ResponseWriter, r *http.Request) {
	results, err := h.Calendars.ReconcileAll(r.Context())
	if err != nil {
		h.log().Error("reconcile calendars", zap.Error(err))
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *JobsHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.Reminders.Run(r.Context())
	if err != nil {
		h.log().Error("send reminders", zap.Error(err))
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, result)
}
