package observation

import (
	"errors"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestDecodeValidReading(t *testing.T) {
	payload := []byte(`{"stationId":"44009","timestamp":"2025-01-01T00:00:00Z","waveHeightM":1.2}`)
	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.StationID != "44009" {
		t.Fatalf("expected station 44009, got %s", r.StationID)
	}
	if !r.Timestamp.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %s", r.Timestamp)
	}
	if r.WaveHeightM == nil || *r.WaveHeightM != 1.2 {
		t.Fatalf("expected waveHeightM 1.2, got %v", r.WaveHeightM)
	}
	if r.WindSpeedMS != nil {
		t.Fatalf("expected absent windSpeedMS, got %v", *r.WindSpeedMS)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"stationId":`))
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestDecodeUnparseableTimestamp(t *testing.T) {
	_, err := Decode([]byte(`{"stationId":"44009","timestamp":"not-a-time"}`))
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestDecodeSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing station":   `{"timestamp":"2025-01-01T00:00:00Z"}`,
		"empty station":     `{"stationId":"","timestamp":"2025-01-01T00:00:00Z"}`,
		"missing timestamp": `{"stationId":"44009"}`,
	}
	for name, payload := range cases {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestEncodeRejectsInvalidReading(t *testing.T) {
	if _, err := Encode(Reading{StationID: "44009"}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Reading{
		StationID:   "41001",
		Timestamp:   time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC),
		WaveHeightM: f64(2.4),
		WindSpeedMS: f64(8.1),
	}
	payload, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.StationID != in.StationID || !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.AirTempC != nil {
		t.Fatalf("expected absent airTempC to stay absent")
	}
}
