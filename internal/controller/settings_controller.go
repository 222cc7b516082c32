package controller

import (
	"net/http"

	"github.com/unclebandit/koya-caller/internal/service"
)

type SettingsController struct {
	Window *service.CallingWindow
}

func (c *SettingsController) Get(w http.ResponseWriter, r *http.Request) {
	s, err := c.Window.Settings(r.Context(), tenantID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

func (c *SettingsController) Update(w http.ResponseWriter, r *http.Request) {
	var patch service.SettingsPatch
	if !decode(w, r, &patch) {
		return
	}
	s, err := c.Window.UpdateSettings(r.Context(), tenantID(r), patch)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}
