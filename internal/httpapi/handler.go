package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"netmapper/internal/config"
	"netmapper/internal/crawler"
	"netmapper/internal/db"
	"netmapper/internal/graphstore"
	"netmapper/internal/hostnamefallback"
	"netmapper/internal/metrics"
	"netmapper/internal/portscan"
	"netmapper/internal/probe"
	"netmapper/internal/scanregistry"
	"netmapper/internal/snmpclient"
)

// store is everything the control surface needs from the Graph Store.
// Satisfied by *graphstore.Store; tests substitute a fake so routes can be
// exercised without a live Postgres instance.
type store interface {
	CreateMap(ctx context.Context, name, network string, communities []string) (graphstore.Map, error)
	ListMaps(ctx context.Context) ([]graphstore.Map, error)
	GetMap(ctx context.Context, id int64) (graphstore.Map, error)
	UpdateMap(ctx context.Context, id int64, name, network string, communities []string) error
	DeleteMap(ctx context.Context, id int64) error
	SetMapScanParams(ctx context.Context, id int64, network string, communities []string) error
	ListDevices(ctx context.Context, mapID int64) ([]graphstore.DeviceRecord, error)
	ListLinks(ctx context.Context, mapID int64) ([]graphstore.LinkRecord, error)

	crawler.GraphWriter
}

// Handler is the control surface (§4.6): the JSON-over-HTTP API through
// which a client creates maps, starts/stops scans, and reads back the
// discovered graph and scan logs.
type Handler struct {
	log     zerolog.Logger
	pool    *db.Pool
	store   store
	scans   *scanregistry.Registry
	metrics *metrics.Metrics
	cfg     config.Config

	names    *hostnamefallback.Resolver
	tagger   *portscan.Scanner
	tagAvail string
}

// NewHandler wires a Handler from its collaborators. pool may be nil only
// in tests that never exercise a DB-backed route.
func NewHandler(log zerolog.Logger, pool *db.Pool, gs *graphstore.Store, scans *scanregistry.Registry, m *metrics.Metrics, cfg config.Config) *Handler {
	tagger, unavailable := portscan.New(portscan.Config{
		Enabled:   len(cfg.PortScanAllowlist) > 0,
		Allowlist: parseAllowlist(cfg.PortScanAllowlist),
		Ports:     cfg.PortScanPorts,
	})
	return &Handler{
		log:      log,
		pool:     pool,
		store:    gs,
		scans:    scans,
		metrics:  m,
		cfg:      cfg,
		names:    hostnamefallback.New(),
		tagger:   tagger,
		tagAvail: unavailable,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.ensureResponseRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(h.accessLog)

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)

	r.Route("/api/maps", func(r chi.Router) {
		r.Get("/", h.handleListMaps)
		r.Post("/", h.handleCreateMap)
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", h.handleUpdateMap)
			r.Delete("/", h.handleDeleteMap)
			r.Post("/rescan", h.handleRescan)
		})
	})

	r.Post("/scan", h.handleStartScan)
	r.Post("/scan/stop", h.handleStopScan)
	r.Get("/api/devices", h.handleGetDevices)
	r.Get("/api/logs", h.handleGetLogs)

	return r
}

func (h *Handler) ensureResponseRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			w.Header().Set("X-Request-ID", rid)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		duration := time.Since(start)
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("http_request")

		if h.metrics != nil {
			h.metrics.ObserveHTTPRequest(r.Method, requestRouteLabel(r), status, duration)
		}
	})
}

func requestRouteLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}
	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// newCrawler builds a fresh Crawler for one scan run, applying preset and
// tag overrides (§4.4's scan-presets supplement, §4.7/§4.8's scan tags).
// scan is the registry entry the crawler logs into.
func (h *Handler) newCrawler(scan *scanregistry.Scan, preset string, tags []string) *crawler.Crawler {
	timeouts := probe.Timeouts{
		SystemTimeout: h.cfg.SNMP.SystemTimeout,
		SystemRetries: h.cfg.SNMP.SystemRetries,
		WalkTimeout:   h.cfg.SNMP.WalkTimeout,
		WalkRetries:   h.cfg.SNMP.WalkRetries,
		DetailTimeout: h.cfg.SNMP.DetailTimeout,
		DetailRetries: h.cfg.SNMP.DetailRetries,
	}
	workers := h.cfg.CrawlerWorkers

	if p, ok := h.cfg.Presets[preset]; ok {
		if p.Workers > 0 {
			workers = p.Workers
		}
		if p.Timeout > 0 {
			timeouts.WalkTimeout = p.Timeout
		}
	}

	prober := probe.New(snmpclient.NewClient(), timeouts, h.log)
	c := crawler.New(prober, h.store, scanLogger{scan}, workers, h.log).WithMetrics(h.metrics)

	hasTag := func(tag string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}
	if hasTag("names") {
		c = c.WithHostnameFallback(h.names)
	}
	if hasTag("ports") && h.tagger != nil && h.tagger.Ready() {
		c = c.WithPortTags(h.tagger)
	}
	return c
}

// scanLogger adapts a *scanregistry.Scan to crawler.Logger.
type scanLogger struct{ scan *scanregistry.Scan }

func (s scanLogger) Log(format string, args ...any) { s.scan.Log(format, args...) }

// parseAllowlist parses the configured CIDR strings, silently skipping any
// that fail to parse (startup-time config validation happens upstream).
func parseAllowlist(raw []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p)
		}
	}
	return out
}
