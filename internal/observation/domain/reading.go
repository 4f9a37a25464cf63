package observation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Channel is the pub/sub channel carrying newly stored readings.
const Channel = "observations:new"

// Decode failure categories. Callers label error counters with these.
var (
	ErrParse   = errors.New("observation: malformed payload")
	ErrInvalid = errors.New("observation: schema violation")
)

// Reading is one observation reported by a station. StationID and Timestamp
// are mandatory; every measurement is optional and nil when the station did
// not report it. The same struct is serialized by the publisher and validated
// by the relay subscriber, so both sides share one schema.
type Reading struct {
	StationID string    `json:"stationId"`
	Timestamp time.Time `json:"timestamp"`

	WaveHeightM *float64 `json:"waveHeightM,omitempty"`
	WavePeriodS *float64 `json:"wavePeriodS,omitempty"`
	WindSpeedMS *float64 `json:"windSpeedMS,omitempty"`
	WindGustMS  *float64 `json:"windGustMS,omitempty"`
	WindDirDeg  *float64 `json:"windDirDeg,omitempty"`
	AirTempC    *float64 `json:"airTempC,omitempty"`
	WaterTempC  *float64 `json:"waterTempC,omitempty"`
	PressureHPa *float64 `json:"pressureHPa,omitempty"`
}

// Validate checks the schema invariants.
func (r Reading) Validate() error {
	if r.StationID == "" {
		return fmt.Errorf("%w: empty stationId", ErrInvalid)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalid)
	}
	return nil
}

// Encode serializes a validated reading for the broker channel.
func Encode(r Reading) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// Decode parses and validates a broker message. A JSON error wraps ErrParse,
// a schema violation wraps ErrInvalid.
func Decode(payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}
