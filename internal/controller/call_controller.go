package controller

import (
	"net/http"

	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/service"
)

// CallController places a single call right away, outside the queue.
type CallController struct {
	Initiator *service.CallInitiator
}

// Initiate answers 200 with the call ids, or 422 with the reason the call
// was not placed.
func (c *CallController) Initiate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber   string                 `json:"phone_number"`
		Purpose       string                 `json:"purpose"`
		CustomMessage string                 `json:"custom_message"`
		AppointmentID *string                `json:"appointment_id"`
		Variables     model.DynamicVariables `json:"dynamic_variables"`
	}
	if !decode(w, r, &body) {
		return
	}

	result, err := c.Initiator.InitiateCall(r.Context(), tenantID(r), body.PhoneNumber, service.InitiateOptions{
		Purpose:       body.Purpose,
		CustomMessage: body.CustomMessage,
		AppointmentID: body.AppointmentID,
		Variables:     body.Variables,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	if !result.Success {
		WriteJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
