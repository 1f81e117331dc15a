package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"netmapper/internal/config"
	"netmapper/internal/graphstore"
)

type mapResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Network   string `json:"network,omitempty"`
	Community string `json:"community,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toMapResponse(m graphstore.Map) mapResponse {
	return mapResponse{
		ID:        m.ID,
		Name:      m.Name,
		Network:   m.Network,
		Community: m.Community,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

type createMapRequest struct {
	Name      string `json:"name"`
	Network   string `json:"network"`
	Community string `json:"community"`
}

func (h *Handler) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := h.store.ListMaps(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	out := make([]mapResponse, 0, len(maps))
	for _, m := range maps {
		out = append(out, toMapResponse(m))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	var req createMapRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "missing_name", "name is required", nil)
		return
	}

	m, err := h.store.CreateMap(r.Context(), req.Name, req.Network, config.SplitCommunity(req.Community))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	h.writeJSON(w, http.StatusCreated, toMapResponse(m))
}

func (h *Handler) handleUpdateMap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mapIDParam(w, r)
	if !ok {
		return
	}
	var req createMapRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "missing_name", "name is required", nil)
		return
	}

	if err := h.store.UpdateMap(r.Context(), id, req.Name, req.Network, config.SplitCommunity(req.Community)); err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	m, err := h.store.GetMap(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "map not found", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, toMapResponse(m))
}

func (h *Handler) handleDeleteMap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mapIDParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteMap(r.Context(), id); err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) mapIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "map id must be numeric", nil)
		return 0, false
	}
	return id, true
}
