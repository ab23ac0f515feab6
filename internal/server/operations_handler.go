package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ironnas/backend/irond/pkg/httpx"
)

func (h *handlers) listOperations(w http.ResponseWriter, r *http.Request) {
	include := r.URL.Query().Get("include_completed") == "true"
	writeJSON(w, map[string]any{"operations": h.svc.Operations(include)})
}

func (h *handlers) getOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op, ok := h.svc.Operation(id)
	if !ok {
		httpx.WriteTypedError(w, http.StatusNotFound, "operation.not_found", "unknown operation: "+id)
		return
	}
	writeJSON(w, op)
}

func (h *handlers) cancelOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Operation(id); !ok {
		httpx.WriteTypedError(w, http.StatusNotFound, "operation.not_found", "unknown operation: "+id)
		return
	}
	if !h.svc.CancelOperation(id) {
		httpx.WriteTypedError(w, http.StatusConflict, "operation.not_cancellable", "operation cannot be cancelled")
		return
	}
	op, _ := h.svc.Operation(id)
	writeJSON(w, op)
}
