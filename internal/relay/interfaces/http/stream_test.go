package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"station-cloud/internal/relay"
)

type stubReadiness struct{ ready bool }

func (s stubReadiness) Ready() bool { return s.ready }

func newHandler(t *testing.T, hub *relay.Hub, ready bool) *StreamHandler {
	t.Helper()
	h, err := NewStreamHandler(hub, stubReadiness{ready: ready}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new stream handler: %v", err)
	}
	return h
}

func decodeErrorBody(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestStreamRejectsWrongMethod(t *testing.T) {
	h := newHandler(t, relay.NewHub(nil), true)
	req := httptest.NewRequest(http.MethodPost, "/v1/observations/stream", nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestStreamRejectsExcludingAccept(t *testing.T) {
	h := newHandler(t, relay.NewHub(nil), true)
	req := httptest.NewRequest(http.MethodGet, "/v1/observations/stream", nil)
	req.Header.Set("Accept", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamRejectsWhenBrokerDown(t *testing.T) {
	hub := relay.NewHub(nil)
	h := newHandler(t, hub, false)
	req := httptest.NewRequest(http.MethodGet, "/v1/observations/stream", nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	body := decodeErrorBody(t, resp)
	if body.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %s", body.Error.Code)
	}
	if n := hub.ConnectionCount(); n != 0 {
		t.Fatalf("expected no registration on rejection, got %d", n)
	}
}

func TestStreamHandshakeAndDelivery(t *testing.T) {
	hub := relay.NewHub(nil)
	h := newHandler(t, hub, true)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/observations/stream", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	resp := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(resp, req)
		close(done)
	}()

	waitForConnections(t, hub, 1)

	payload := `{"stationId":"44009","timestamp":"2025-01-01T00:00:00Z","waveHeightM":1.2}`
	if sent := hub.BroadcastToAll(relay.EventObservation, []byte(payload)); sent != 1 {
		t.Fatalf("expected broadcast to reach 1 connection, got %d", sent)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	if resp.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected content type %q", resp.Header().Get("Content-Type"))
	}
	if resp.Header().Get("Cache-Control") != "no-cache" {
		t.Fatalf("unexpected cache control %q", resp.Header().Get("Cache-Control"))
	}

	body := resp.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("expected handshake plus one observation, got %d frames: %q", len(frames), body)
	}
	if !strings.HasPrefix(frames[0], "event: connection\n") {
		t.Fatalf("first frame is not the handshake: %q", frames[0])
	}
	if !strings.Contains(frames[0], `"status":"connected"`) {
		t.Fatalf("handshake payload missing status: %q", frames[0])
	}
	if frames[1] != "event: observation\ndata: "+payload {
		t.Fatalf("observation frame mismatch: %q", frames[1])
	}

	if n := hub.ConnectionCount(); n != 0 {
		t.Fatalf("expected connection removed after disconnect, got %d", n)
	}
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	hub := relay.NewHub(nil)
	h := newHandler(t, hub, true)

	// Published before anyone is connected: fire-and-forget drops it.
	if sent := hub.BroadcastToAll(relay.EventObservation, []byte(`{"stationId":"44009"}`)); sent != 0 {
		t.Fatalf("expected 0 deliveries with no subscribers, got %d", sent)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/observations/stream", nil).WithContext(ctx)
	resp := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(resp, req)
		close(done)
	}()
	waitForConnections(t, hub, 1)
	cancel()
	<-done

	if strings.Contains(resp.Body.String(), "44009") {
		t.Fatalf("late subscriber must not see earlier events: %q", resp.Body.String())
	}
}

func TestAcceptsEventStream(t *testing.T) {
	cases := map[string]bool{
		"":                             true,
		"text/event-stream":            true,
		"text/event-stream, text/html": true,
		"*/*":                          true,
		"text/*;q=0.5":                 true,
		"application/json":             false,
		"application/json, text/plain": false,
		"application/json;q=1.0":       false,
	}
	for accept, want := range cases {
		if got := acceptsEventStream(accept); got != want {
			t.Fatalf("accept %q: expected %v, got %v", accept, want, got)
		}
	}
}

func waitForConnections(t *testing.T, hub *relay.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d connections, have %d", want, hub.ConnectionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
