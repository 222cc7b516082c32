// internal/controller/campaign_controller.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	var body struct {
		ContactID        string  `json:"contact_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if !decode(w, r, &body) {
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), tenantID(r), campaignID, body.ContactID, body.OverrideTemplate)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"contact_id":       body.ContactID,
	})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string  `json:"name"`
		Purpose         string  `json:"purpose"`
		MessageTemplate string  `json:"message_template"`
		ScheduledAt     *string `json:"scheduled_at"`
	}
	if !decode(w, r, &body) {
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), tenantID(r), body.Name, body.Purpose, body.MessageTemplate, body.ScheduledAt)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	purpose := r.URL.Query().Get("purpose")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), tenantID(r), page, pageSize, purpose, status)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination, // already contains total_count, total_pages, page, page_size
	})
}

// LaunchCampaign queues one call per contact. Dialing happens in the
// queue processor; nothing is placed from the request.
func (c *CampaignController) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		ContactIDs []string `json:"contact_ids"`
	}
	if !decode(w, r, &body) {
		return
	}

	result, err := c.CampaignService.LaunchCampaign(r.Context(), tenantID(r), id, body.ContactIDs)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, result)
}

func (c *CampaignController) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Status model.CampaignStatus `json:"status"`
	}
	if !decode(w, r, &body) {
		return
	}

	campaign, err := c.CampaignService.ChangeStatus(r.Context(), tenantID(r), id, body.Status)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, campaign)
}
