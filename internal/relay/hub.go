package relay

import (
	"bytes"
	"log"
	"sync"
	"time"

	"station-cloud/internal/observability/metrics"
)

// Sink is the writable side of one subscriber connection. A Write either
// lands the framed event in the transport buffer or fails; there is no
// per-connection queue.
type Sink interface {
	Write(p []byte) error
}

// Client is one live subscriber connection. Owned by the Hub between
// AddClient and RemoveClient; never shared or duplicated.
type Client struct {
	sink        Sink
	connectedAt time.Time
}

// NewClient wraps a transport sink.
func NewClient(sink Sink) *Client {
	return &Client{sink: sink, connectedAt: time.Now().UTC()}
}

// Hub owns the live-connection set and the fan-out pass. Constructed once at
// startup and injected into the stream endpoint and the relay subscriber.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	logger  *log.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

// AddClient registers a connection. Cannot fail.
func (h *Hub) AddClient(c *Client) {
	if h == nil || c == nil {
		return
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.IncActiveConnections()
}

// RemoveClient unregisters a connection. Idempotent: removing twice, or a
// client never added, is a no-op.
func (h *Hub) RemoveClient(c *Client) {
	if h == nil || c == nil {
		return
	}
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metrics.ObserveConnectionDuration(time.Since(c.connectedAt))
	metrics.DecActiveConnections()
}

// BroadcastToAll formats the event once and attempts a write to every
// registered connection. A failed write removes that connection in the same
// pass; it is never retried and not counted as delivered. Returns the number
// of connections that accepted the write. Iteration order is unspecified.
func (h *Hub) BroadcastToAll(eventType string, payload []byte) int {
	if h == nil {
		return 0
	}
	frame := FormatEvent(eventType, payload)

	h.mu.Lock()
	sent := 0
	for c := range h.clients {
		if err := c.sink.Write(frame); err != nil {
			h.removeLocked(c)
			metrics.IncRelayError(metrics.ReasonWriteFailed)
			h.logger.Printf("relay hub: dropping connection, write failed: %v", err)
			continue
		}
		sent++
	}
	h.mu.Unlock()

	metrics.AddEventsSent(eventType, sent)
	return sent
}

// ConnectionCount reports the current live count.
func (h *Hub) ConnectionCount() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	return n
}

// FormatEvent renders one text/event-stream frame.
func FormatEvent(eventType string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(eventType) + len(data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(eventType)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}
