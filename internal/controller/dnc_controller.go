package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/koya-caller/internal/service"
)

// DNCController manages the do-not-call list and call consent.
type DNCController struct {
	Compliance *service.ComplianceGate
}

func (c *DNCController) Add(w http.ResponseWriter, r *http.Request) {
	var body service.DNCRequest
	if !decode(w, r, &body) {
		return
	}
	entry, err := c.Compliance.AddDNC(r.Context(), tenantID(r), body)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

func (c *DNCController) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	entries, pagination, err := c.Compliance.ListDNC(r.Context(), tenantID(r), r.URL.Query().Get("search"), page, pageSize)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       entries,
		"pagination": pagination,
	})
}

func (c *DNCController) Remove(w http.ResponseWriter, r *http.Request) {
	if err := c.Compliance.RemoveDNC(r.Context(), tenantID(r), chi.URLParam(r, "phone")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetConsent records a grant or a withdrawal.
func (c *DNCController) SetConsent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber string `json:"phone_number"`
		Granted     bool   `json:"granted"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := c.Compliance.SetConsent(r.Context(), tenantID(r), body.PhoneNumber, body.Granted); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"phone_number": body.PhoneNumber,
		"granted":      body.Granted,
	})
}
