package server

import (
	"net/http"

	"ironnas/backend/irond/internal/drives"
	"ironnas/backend/irond/pkg/httpx"
)

func (h *handlers) listDrives(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Drives(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// SMART polling shells smartctl per disk, so it is opt-in.
	if r.URL.Query().Get("smart") == "true" {
		drives.AnnotateSmart(r.Context(), ds)
	}
	writeJSON(w, map[string]any{"drives": ds})
}
