package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/service"
)

type QueueController struct {
	Queue *service.QueueService
}

func (c *QueueController) Enqueue(w http.ResponseWriter, r *http.Request) {
	var body service.EnqueueRequest
	if !decode(w, r, &body) {
		return
	}
	entry, err := c.Queue.Enqueue(r.Context(), tenantID(r), body)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

func (c *QueueController) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	q := r.URL.Query()
	entries, pagination, err := c.Queue.List(r.Context(), tenantID(r), model.QueueStatus(q.Get("status")), q.Get("campaign_id"), page, pageSize)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       entries,
		"pagination": pagination,
	})
}

func (c *QueueController) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := c.Queue.Get(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

func (c *QueueController) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.Queue.Cancel(r.Context(), tenantID(r), id); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(model.QueueStatusCancelled)})
}

func (c *QueueController) Reschedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		ScheduledFor time.Time `json:"scheduled_for"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := c.Queue.Reschedule(r.Context(), tenantID(r), id, body.ScheduledFor); err != nil {
		WriteError(w, err)
		return
	}
	entry, err := c.Queue.Get(r.Context(), tenantID(r), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}
