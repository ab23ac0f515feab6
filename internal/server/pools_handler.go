package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ironnas/backend/irond/internal/poolsvc"
	"ironnas/backend/irond/pkg/httpx"
)

func (h *handlers) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.svc.Pools(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"pools": pools})
}

func (h *handlers) getPool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok, err := h.svc.Pool(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		httpx.WriteTypedError(w, http.StatusNotFound, "pool.not_found", "unknown pool: "+id)
		return
	}
	writeJSON(w, p)
}

func (h *handlers) createPool(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	fields, err := validateCreatePool(body)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusUnprocessableEntity, "pool.invalid_request", err.Error())
		return
	}
	if len(fields) > 0 {
		httpx.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, "pool.invalid_request",
			"request validation failed", map[string]any{"fields": fields})
		return
	}
	var req poolsvc.CreatePoolRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	op, err := h.svc.CreatePool(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, op)
}

// removePool requires confirm=REMOVE in the body. Stopping an array and
// wiping superblocks is unrecoverable, so a bare DELETE is not enough.
func (h *handlers) removePool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Confirm string `json:"confirm"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if strings.ToUpper(strings.TrimSpace(body.Confirm)) != "REMOVE" {
		httpx.WriteError(w, http.StatusPreconditionRequired, "confirm=REMOVE required")
		return
	}
	op, err := h.svc.RemovePool(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, op)
}

func (h *handlers) mountPool(w http.ResponseWriter, r *http.Request) {
	op, err := h.svc.MountPool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, op)
}

func (h *handlers) unmountPool(w http.ResponseWriter, r *http.Request) {
	op, err := h.svc.UnmountPool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, op)
}

// forgetPool drops stored metadata without touching the array. It is the
// retry path after a remove workflow stopped the array but failed to erase
// the record.
func (h *handlers) forgetPool(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ForgetPool(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) poolOperations(w http.ResponseWriter, r *http.Request) {
	include := r.URL.Query().Get("include_completed") == "true"
	ops := h.svc.PoolOperations(chi.URLParam(r, "id"), include)
	writeJSON(w, map[string]any{"operations": ops})
}
