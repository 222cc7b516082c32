// internal/handler/campaign_handler.go
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/controller"
	"github.com/unclebandit/koya-caller/internal/service"
)

// CampaignHandler serves the campaign detail view, stored counters plus
// live queue stats.
type CampaignHandler struct {
	Service *service.CampaignService
	Log     *zap.Logger
}

// NewCampaignHandler creates a new CampaignHandler with the given service
func NewCampaignHandler(svc *service.CampaignService, log *zap.Logger) *CampaignHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CampaignHandler{Service: svc, Log: log}
}

func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	id := chi.URLParam(r, "id")

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), tenantID, id)
	if err != nil {
		if controller.StatusFor(err) == http.StatusInternalServerError {
			h.Log.Error("fetch campaign", zap.String("campaign_id", id), zap.Error(err))
		}
		controller.WriteError(w, err)
		return
	}

	h.Log.Debug("campaign details", zap.String("campaign_id", id), zap.Any("stats", details.Stats))
	controller.WriteJSON(w, http.StatusOK, details)
}
