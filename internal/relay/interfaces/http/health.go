package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"station-cloud/internal/relay"
)

// HealthHandler reports process health keyed on broker and store
// connectivity. Serves /healthz.
type HealthHandler struct {
	ready ReadinessReporter
	hub   *relay.Hub
	db    *sql.DB
}

// NewHealthHandler constructs a health handler; db may be nil when the
// process has no store.
func NewHealthHandler(ready ReadinessReporter, hub *relay.Hub, db *sql.DB) *HealthHandler {
	return &HealthHandler{ready: ready, hub: hub, db: db}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Status            string `json:"status"`
		BrokerConnected   bool   `json:"broker_connected"`
		StoreOK           bool   `json:"store_ok"`
		StreamConnections int    `json:"stream_connections"`
	}

	st := status{
		BrokerConnected: h.ready != nil && h.ready.Ready(),
		StoreOK:         true,
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st.StoreOK = h.db.PingContext(ctx) == nil
	}
	if h.hub != nil {
		st.StreamConnections = h.hub.ConnectionCount()
	}

	switch {
	case st.BrokerConnected && st.StoreOK:
		st.Status = "ok"
	case st.BrokerConnected || st.StoreOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// ReadyHandler serves /readyz: 200 only once the relay subscription is live.
type ReadyHandler struct {
	ready ReadinessReporter
}

// NewReadyHandler constructs a readiness handler.
func NewReadyHandler(ready ReadinessReporter) *ReadyHandler {
	return &ReadyHandler{ready: ready}
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready != nil && h.ready.Ready()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
