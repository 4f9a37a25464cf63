package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"station-cloud/internal/observability/metrics"
	"station-cloud/internal/relay"
)

// ReadinessReporter gates new stream connections on broker connectivity.
type ReadinessReporter interface {
	Ready() bool
}

// connectionEvent is the handshake sent once per accepted connection.
type connectionEvent struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// errorBody is the structured error envelope for rejected requests.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StreamHandler serves GET /v1/observations/stream as a long-lived
// text/event-stream and binds each connection's lifecycle to the hub.
type StreamHandler struct {
	hub    *relay.Hub
	ready  ReadinessReporter
	logger *log.Logger
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(hub *relay.Hub, ready ReadinessReporter, logger *log.Logger) (*StreamHandler, error) {
	if hub == nil {
		return nil, errors.New("stream handler: nil hub")
	}
	if ready == nil {
		return nil, errors.New("stream handler: nil readiness reporter")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StreamHandler{hub: hub, ready: ready, logger: logger}, nil
}

// ServeHTTP accepts one subscriber connection. Rejections happen before any
// registration; after the handshake the connection is owned by the hub until
// the client goes away or a broadcast write to it fails.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "stream endpoint only supports GET")
		return
	}
	if !acceptsEventStream(r.Header.Get("Accept")) {
		writeError(w, http.StatusBadRequest, "INVALID_ACCEPT", "client does not accept text/event-stream")
		return
	}
	if !h.ready.Ready() {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "observation relay is not connected to the broker")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sink := &sseSink{w: w, flusher: flusher}
	handshake, _ := json.Marshal(connectionEvent{
		Status:    "connected",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err := sink.Write(relay.FormatEvent(relay.EventConnection, handshake)); err != nil {
		h.logger.Printf("stream: handshake write failed: %v", err)
		return
	}
	metrics.AddEventsSent(relay.EventConnection, 1)

	client := relay.NewClient(sink)
	h.hub.AddClient(client)

	// Park until the client goes away. A failed broadcast write may have
	// removed the client already; RemoveClient is idempotent either way.
	<-r.Context().Done()
	h.hub.RemoveClient(client)
}

// sseSink writes one framed event into the HTTP response buffer and flushes
// it through. A write error means the transport is gone.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Write(p []byte) error {
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// acceptsEventStream reports whether the Accept header admits the stream
// media type. An absent header accepts everything.
func acceptsEventStream(accept string) bool {
	if strings.TrimSpace(accept) == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaRange := strings.TrimSpace(part)
		if i := strings.Index(mediaRange, ";"); i >= 0 {
			mediaRange = strings.TrimSpace(mediaRange[:i])
		}
		switch mediaRange {
		case "text/event-stream", "text/*", "*/*":
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}
