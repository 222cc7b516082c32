package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	var verr *appErrors.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, appErrors.ErrInvalidPhone), errors.Is(err, appErrors.ErrInvalidSettings):
		return http.StatusBadRequest
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, appErrors.ErrEntryInFlight), errors.Is(err, appErrors.ErrInvalidState), errors.Is(err, appErrors.ErrLockHeld):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// WriteError writes err as {"error": ...}. Internal errors get a generic message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return false
	}
	return true
}

func tenantID(r *http.Request) string {
	return chi.URLParam(r, "tenantID")
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
