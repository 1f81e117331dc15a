package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"netmapper/internal/config"
	"netmapper/internal/scanregistry"
)

type startScanRequest struct {
	Network   string   `json:"network"`
	Community string   `json:"community"`
	MapID     int64    `json:"map_id"`
	Preset    string   `json:"preset"`
	Tags      []string `json:"tags"`
}

type stopScanRequest struct {
	MapID int64 `json:"map_id"`
}

func (h *Handler) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if req.Network == "" || req.MapID == 0 {
		h.writeError(w, http.StatusBadRequest, "missing_fields", "network and map_id are required", nil)
		return
	}

	communities := config.SplitCommunity(req.Community)
	if err := h.store.SetMapScanParams(r.Context(), req.MapID, req.Network, communities); err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}

	if err := h.launchScan(req.MapID, req.Network, communities, req.Preset, req.Tags); err != nil {
		if err == scanregistry.ErrAlreadyActive {
			h.writeError(w, http.StatusConflict, "scan_active", "a scan is already active for this map", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "scan_error", err.Error(), nil)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleStopScan(w http.ResponseWriter, r *http.Request) {
	var req stopScanRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if err := h.scans.Stop(req.MapID); err != nil {
		h.writeError(w, http.StatusBadRequest, "no_active_scan", "no scan is active for this map", nil)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleRescan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mapIDParam(w, r)
	if !ok {
		return
	}
	m, err := h.store.GetMap(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "map not found", nil)
		return
	}
	if m.Network == "" {
		h.writeError(w, http.StatusBadRequest, "missing_network", "map has no stored network to rescan", nil)
		return
	}

	communities := config.SplitCommunity(m.Community)
	if err := h.launchScan(id, m.Network, communities, "", nil); err != nil {
		if err == scanregistry.ErrAlreadyActive {
			h.writeError(w, http.StatusConflict, "scan_active", "a scan is already active for this map", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "scan_error", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// launchScan registers the scan in the registry and launches the crawler in
// its own goroutine. tags default to ["names"] (§4.7: on by default).
func (h *Handler) launchScan(mapID int64, network string, communities []string, preset string, tags []string) error {
	if tags == nil {
		tags = []string{"names"}
	}
	return h.scans.Start(mapID, func(ctx context.Context, scan *scanregistry.Scan) {
		if h.metrics != nil {
			h.metrics.IncScanStarted()
		}
		start := time.Now()
		c := h.newCrawler(scan, preset, tags)
		scan.Log("scan started: network=%s preset=%s tags=%v", network, preset, tags)
		c.Run(ctx, mapID, network, communities, scan.Cancelled)
		if h.metrics != nil {
			h.metrics.ObserveScanDuration(time.Since(start))
		}
	})
}

func (h *Handler) handleGetDevices(w http.ResponseWriter, r *http.Request) {
	mapID, ok := h.mapIDQueryParam(w, r)
	if !ok {
		return
	}
	devices, err := h.store.ListDevices(r.Context(), mapID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	links, err := h.store.ListLinks(r.Context(), mapID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"nodes": devices,
		"edges": links,
	})
}

func (h *Handler) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	mapID, ok := h.mapIDQueryParam(w, r)
	if !ok {
		return
	}
	lines, active := h.scans.Status(mapID)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"logs":   lines,
		"active": active,
	})
}

func (h *Handler) mapIDQueryParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("map_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_map_id", "map_id query parameter is required and must be numeric", nil)
		return 0, false
	}
	return id, true
}
