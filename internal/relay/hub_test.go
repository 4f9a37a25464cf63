package relay

import (
	"errors"
	"strings"
	"testing"
)

type recordingSink struct {
	frames []string
	fail   bool
}

func (s *recordingSink) Write(p []byte) error {
	if s.fail {
		return errors.New("sink closed")
	}
	s.frames = append(s.frames, string(p))
	return nil
}

func TestHubBroadcastDeliversToAll(t *testing.T) {
	hub := NewHub(nil)
	sinks := make([]*recordingSink, 3)
	for i := range sinks {
		sinks[i] = &recordingSink{}
		hub.AddClient(NewClient(sinks[i]))
	}

	sent := hub.BroadcastToAll("observation", []byte(`{"stationId":"44009"}`))
	if sent != 3 {
		t.Fatalf("expected 3 delivered, got %d", sent)
	}
	for i, sink := range sinks {
		if len(sink.frames) != 1 {
			t.Fatalf("sink %d: expected 1 frame, got %d", i, len(sink.frames))
		}
		if sink.frames[0] != "event: observation\ndata: {\"stationId\":\"44009\"}\n\n" {
			t.Fatalf("sink %d: unexpected frame %q", i, sink.frames[0])
		}
	}
}

func TestHubBroadcastRemovesFailedWrites(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < 10; i++ {
		hub.AddClient(NewClient(&recordingSink{fail: i < 2}))
	}

	sent := hub.BroadcastToAll("observation", []byte(`{}`))
	if sent != 8 {
		t.Fatalf("expected successCount 8, got %d", sent)
	}
	if n := hub.ConnectionCount(); n != 8 {
		t.Fatalf("expected 8 live connections after broadcast, got %d", n)
	}

	// The failed connections must be gone: a second pass reaches only 8.
	if sent := hub.BroadcastToAll("observation", []byte(`{}`)); sent != 8 {
		t.Fatalf("expected 8 on second broadcast, got %d", sent)
	}
}

func TestHubRemoveClientIdempotent(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient(&recordingSink{})
	hub.AddClient(c)
	if n := hub.ConnectionCount(); n != 1 {
		t.Fatalf("expected 1 connection, got %d", n)
	}

	hub.RemoveClient(c)
	hub.RemoveClient(c)
	if n := hub.ConnectionCount(); n != 0 {
		t.Fatalf("expected 0 after double remove, got %d", n)
	}

	// Removing a client that was never added is a no-op.
	hub.RemoveClient(NewClient(&recordingSink{}))
	if n := hub.ConnectionCount(); n != 0 {
		t.Fatalf("expected 0 after removing unknown client, got %d", n)
	}
}

func TestHubPreservesPerSubscriberOrdering(t *testing.T) {
	hub := NewHub(nil)
	sink := &recordingSink{}
	hub.AddClient(NewClient(sink))

	payloads := []string{`{"seq":1}`, `{"seq":2}`, `{"seq":3}`}
	for _, p := range payloads {
		hub.BroadcastToAll("observation", []byte(p))
	}
	if len(sink.frames) != len(payloads) {
		t.Fatalf("expected %d frames, got %d", len(payloads), len(sink.frames))
	}
	for i, p := range payloads {
		if !strings.Contains(sink.frames[i], p) {
			t.Fatalf("frame %d out of order: %q", i, sink.frames[i])
		}
	}
}

func TestFormatEvent(t *testing.T) {
	frame := FormatEvent("connection", []byte(`{"status":"connected"}`))
	want := "event: connection\ndata: {\"status\":\"connected\"}\n\n"
	if string(frame) != want {
		t.Fatalf("expected %q, got %q", want, frame)
	}
}
