// Package webhook implements the HTTP webhook receiver described in
// §4.8: zone create/update/delete notifications and a manual full-sync
// trigger, plus the health/status/mqtt-status read endpoints.
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/status"
)

// zonePayload is the webhook body (§4.8): unknown fields are ignored by
// json.Unmarshal's default behavior, which is exactly what the spec asks
// for, so no extra plumbing is needed.
type zonePayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MQTTStatus is read by the /mqtt/status handler; Connected is
// meaningless when Enabled is false.
type MQTTStatus struct {
	Enabled   bool
	Connected bool
}

// SchedulerStatus is read by the /status handler's "scheduler" section.
type SchedulerStatus struct {
	Running   bool
	JobsCount int
}

// Handler wires the webhook routes to the reconcile/orchestrate core.
type Handler struct {
	reconcileZone   func(zoneName string, source domain.IntentSource) error
	fullSync        func(source domain.IntentSource) error
	state           *status.ApplicationState
	mqttStatus      func() MQTTStatus
	schedulerStatus func() SchedulerStatus
	logger          *slog.Logger
	authChain       func(http.Handler) http.Handler

	limiters struct {
		health, statusEP, sync, zones *rateLimiter
	}
}

// Config bundles everything the handler needs beyond its function hooks.
type Config struct {
	APIKey          string
	WebhookSecret   string
	State           *status.ApplicationState
	MQTTStatus      func() MQTTStatus
	SchedulerStatus func() SchedulerStatus
	ReconcileZone   func(zoneName string, source domain.IntentSource) error
	FullSync        func(source domain.IntentSource) error
	Logger          *slog.Logger
}

func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		reconcileZone:   cfg.ReconcileZone,
		fullSync:        cfg.FullSync,
		state:           cfg.State,
		mqttStatus:      cfg.MQTTStatus,
		schedulerStatus: cfg.SchedulerStatus,
		logger:          logger,
	}
	h.limiters.health = newRateLimiter(100)
	h.limiters.statusEP = newRateLimiter(30)
	h.limiters.sync = newRateLimiter(5)
	h.limiters.zones = newRateLimiter(20)

	h.authChain = authMiddleware(cfg.APIKey, cfg.WebhookSecret)
	go h.evictStaleRateLimitBuckets()
	return h
}

// evictStaleRateLimitBuckets bounds per-IP bucket memory for a long-lived
// process; it runs for the lifetime of the handler.
func (h *Handler) evictStaleRateLimitBuckets() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		h.limiters.health.Cleanup()
		h.limiters.statusEP.Cleanup()
		h.limiters.sync.Cleanup()
		h.limiters.zones.Cleanup()
	}
}

// RegisterRoutes installs every path named in §6's HTTP surface table.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /health", rateLimitMiddleware(h.limiters.health)(http.HandlerFunc(h.handleHealth)))
	mux.Handle("GET /status", rateLimitMiddleware(h.limiters.statusEP)(http.HandlerFunc(h.handleStatus)))
	mux.Handle("GET /mqtt/status", rateLimitMiddleware(h.limiters.statusEP)(http.HandlerFunc(h.handleMQTTStatus)))

	mux.Handle("POST /sync", rateLimitMiddleware(h.limiters.sync)(h.authChain(http.HandlerFunc(h.handleSync))))
	mux.Handle("POST /zones/create", rateLimitMiddleware(h.limiters.zones)(h.authChain(http.HandlerFunc(h.handleZoneCreate))))
	mux.Handle("POST /zones/update", rateLimitMiddleware(h.limiters.zones)(h.authChain(http.HandlerFunc(h.handleZoneUpdate))))
	mux.Handle("POST /zones/delete", rateLimitMiddleware(h.limiters.zones)(h.authChain(http.HandlerFunc(h.handleZoneDelete))))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Healthy"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Snapshot(time.Now())
	sched := h.schedulerStatus()
	resp := map[string]interface{}{
		"status":         string(snap.Level()),
		"uptime_seconds": snap.UptimeSeconds,
		"initial_sync": map[string]interface{}{
			"started":   snap.InitialSyncStarted,
			"completed": snap.InitialSyncCompleted,
			"error":     nullableString(snap.InitialSyncError),
		},
		"scheduler": map[string]interface{}{
			"running":    sched.Running,
			"jobs_count": sched.JobsCount,
		},
		"mqtt": mqttStatusJSON(h.mqttStatus()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMQTTStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mqttStatusJSON(h.mqttStatus()))
}

func mqttStatusJSON(s MQTTStatus) map[string]interface{} {
	m := map[string]interface{}{"enabled": s.Enabled}
	if s.Enabled {
		m["connected"] = s.Connected
	}
	return m
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	intent := domain.FullSyncIntent(uuid.New().String(), domain.SourceManual, time.Now())
	h.logger.Info("sync intent received", "intent_id", intent.ID, "scope", intent.Scope, "source", intent.Source)
	go func() {
		if err := h.fullSync(domain.SourceManual); err != nil {
			h.logger.Error("manual full sync failed", "intent_id", intent.ID, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleZoneCreate(w http.ResponseWriter, r *http.Request) {
	h.handleZoneEvent(w, r)
}

func (h *Handler) handleZoneUpdate(w http.ResponseWriter, r *http.Request) {
	h.handleZoneEvent(w, r)
}

func (h *Handler) handleZoneDelete(w http.ResponseWriter, r *http.Request) {
	h.handleZoneEvent(w, r)
}

func (h *Handler) handleZoneEvent(w http.ResponseWriter, r *http.Request) {
	var payload zonePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if payload.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "Bad Request", "name is required")
		return
	}

	name := payload.Name
	intent := domain.ZoneSyncIntent(uuid.New().String(), domain.SourceWebhook, name, time.Now())
	h.logger.Info("sync intent received", "intent_id", intent.ID, "scope", intent.Scope, "source", intent.Source)
	go func() {
		if err := h.reconcileZone(name, domain.SourceWebhook); err != nil {
			h.logger.Error("webhook-triggered reconcile failed", "intent_id", intent.ID, "zone", name, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
