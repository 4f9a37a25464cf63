package ingest

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	observation "station-cloud/internal/observation/domain"
)

// StationSpec describes one simulated station and its baseline measurements.
type StationSpec struct {
	ID              string  `yaml:"id"`
	BaseWaveHeightM float64 `yaml:"base_wave_height_m"`
	BaseWindSpeedMS float64 `yaml:"base_wind_speed_ms"`
	BaseAirTempC    float64 `yaml:"base_air_temp_c"`
	BaseWaterTempC  float64 `yaml:"base_water_temp_c"`
	BasePressureHPa float64 `yaml:"base_pressure_hpa"`
}

// SimulatorConfig is the station roster for local runs.
type SimulatorConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Stations        []StationSpec `yaml:"stations"`
}

// LoadSimulatorConfig loads the roster from the YAML file at path, or returns
// a small default roster when path is empty.
func LoadSimulatorConfig(path string) (SimulatorConfig, error) {
	cfg := SimulatorConfig{
		IntervalSeconds: 10,
		Stations: []StationSpec{
			{ID: "44009", BaseWaveHeightM: 1.2, BaseWindSpeedMS: 7.5, BaseAirTempC: 12.0, BaseWaterTempC: 10.5, BasePressureHPa: 1014},
			{ID: "41001", BaseWaveHeightM: 2.1, BaseWindSpeedMS: 9.0, BaseAirTempC: 18.0, BaseWaterTempC: 19.5, BasePressureHPa: 1011},
			{ID: "46050", BaseWaveHeightM: 2.8, BaseWindSpeedMS: 11.0, BaseAirTempC: 9.0, BaseWaterTempC: 9.8, BasePressureHPa: 1017},
		},
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 10
	}
	if len(cfg.Stations) == 0 {
		return cfg, errors.New("simulator: empty station roster")
	}
	for _, station := range cfg.Stations {
		if station.ID == "" {
			return cfg, errors.New("simulator: station without id")
		}
	}
	return cfg, nil
}

// Simulator is a ReadingSource emitting jittered readings round-robin over
// the roster, one per interval.
type Simulator struct {
	cfg  SimulatorConfig
	rng  *rand.Rand
	next int
}

// NewSimulator constructs a simulator source.
func NewSimulator(cfg SimulatorConfig, seed int64) (*Simulator, error) {
	if len(cfg.Stations) == 0 {
		return nil, errors.New("simulator: empty station roster")
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 10
	}
	return &Simulator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}, nil
}

// Next blocks one interval and emits the next station's reading.
func (s *Simulator) Next(ctx context.Context) (observation.Reading, error) {
	timer := time.NewTimer(time.Duration(s.cfg.IntervalSeconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return observation.Reading{}, ErrSourceClosed
	}
	return s.generate(time.Now().UTC()), nil
}

func (s *Simulator) generate(now time.Time) observation.Reading {
	station := s.cfg.Stations[s.next%len(s.cfg.Stations)]
	s.next++

	wave := jitter(s.rng, station.BaseWaveHeightM, 0.3)
	wind := jitter(s.rng, station.BaseWindSpeedMS, 1.5)
	gust := wind + s.rng.Float64()*3
	dir := s.rng.Float64() * 360
	air := jitter(s.rng, station.BaseAirTempC, 1.0)
	water := jitter(s.rng, station.BaseWaterTempC, 0.5)
	pressure := jitter(s.rng, station.BasePressureHPa, 2.0)

	return observation.Reading{
		StationID:   station.ID,
		Timestamp:   now.Truncate(time.Second),
		WaveHeightM: &wave,
		WindSpeedMS: &wind,
		WindGustMS:  &gust,
		WindDirDeg:  &dir,
		AirTempC:    &air,
		WaterTempC:  &water,
		PressureHPa: &pressure,
	}
}

func jitter(rng *rand.Rand, base, scale float64) float64 {
	v := base + rng.NormFloat64()*scale
	if v < 0 {
		return 0
	}
	return v
}
