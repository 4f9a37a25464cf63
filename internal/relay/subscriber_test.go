package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func testSubscriber(t *testing.T, hub *Hub) *Subscriber {
	t.Helper()
	return &Subscriber{
		channel:       "observations:new",
		hub:           hub,
		logger:        log.New(io.Discard, "", 0),
		warnThreshold: defaultWarnThreshold,
	}
}

func TestHandleMessageMalformedNeverReachesHub(t *testing.T) {
	hub := NewHub(nil)
	sink := &recordingSink{}
	hub.AddClient(NewClient(sink))
	sub := testSubscriber(t, hub)

	sub.handleMessage([]byte(`not json`))
	sub.handleMessage([]byte(`{"timestamp":"2025-01-01T00:00:00Z"}`))

	if len(sink.frames) != 0 {
		t.Fatalf("expected no frames for malformed messages, got %d", len(sink.frames))
	}
}

func TestHandleMessageValidBroadcastsRawPayload(t *testing.T) {
	hub := NewHub(nil)
	sink := &recordingSink{}
	hub.AddClient(NewClient(sink))
	sub := testSubscriber(t, hub)

	payload := `{"stationId":"44009","timestamp":"2025-01-01T00:00:00Z","waveHeightM":1.2}`
	sub.handleMessage([]byte(payload))

	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(sink.frames))
	}
	want := "event: observation\ndata: " + payload + "\n\n"
	if sink.frames[0] != want {
		t.Fatalf("payload not relayed verbatim:\nwant %q\ngot  %q", want, sink.frames[0])
	}
}

func TestHandleMessagePreservesOrderAcrossSubscribers(t *testing.T) {
	hub := NewHub(nil)
	sinks := make([]*recordingSink, 4)
	for i := range sinks {
		sinks[i] = &recordingSink{}
		hub.AddClient(NewClient(sinks[i]))
	}
	sub := testSubscriber(t, hub)

	const n = 25
	for i := 0; i < n; i++ {
		payload := fmt.Sprintf(`{"stationId":"44009","timestamp":"2025-01-01T00:00:%02dZ"}`, i)
		sub.handleMessage([]byte(payload))
	}

	for si, sink := range sinks {
		if len(sink.frames) != n {
			t.Fatalf("subscriber %d: expected %d events, got %d", si, n, len(sink.frames))
		}
		for i, frame := range sink.frames {
			marker := fmt.Sprintf("00:%02dZ", i)
			if !strings.Contains(frame, marker) {
				t.Fatalf("subscriber %d: event %d out of order: %q", si, i, frame)
			}
		}
	}
}

func TestReadyDefaultsToFalse(t *testing.T) {
	sub := testSubscriber(t, NewHub(nil))
	if sub.Ready() {
		t.Fatal("expected not ready before subscription is established")
	}
	sub.setReady(true)
	if !sub.Ready() {
		t.Fatal("expected ready after setReady(true)")
	}
}

func TestSleepCtxHonorsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if sleepCtx(ctx, time.Second) {
		t.Fatal("expected sleepCtx to report cancellation")
	}
}
