package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	observation "station-cloud/internal/observation/domain"
)

// ObservationRepository is a Postgres store for readings. The ingestion
// service writes through it before anything is published; reportgen reads
// daily slices back out.
type ObservationRepository struct {
	db *sql.DB
}

// NewObservationRepository constructs a repository.
func NewObservationRepository(db *sql.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// EnsureSchema creates the observations table when it does not exist yet.
func (r *ObservationRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("observation repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS observations (
	id BIGSERIAL PRIMARY KEY,
	station_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	wave_height_m DOUBLE PRECISION,
	wave_period_s DOUBLE PRECISION,
	wind_speed_ms DOUBLE PRECISION,
	wind_gust_ms DOUBLE PRECISION,
	wind_dir_deg DOUBLE PRECISION,
	air_temp_c DOUBLE PRECISION,
	water_temp_c DOUBLE PRECISION,
	pressure_hpa DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS observations_station_ts_idx ON observations (station_id, ts)`)
	return err
}

// InsertReading durably stores one reading. Publishing happens only after
// this returns without error.
func (r *ObservationRepository) InsertReading(ctx context.Context, reading observation.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("observation repo: nil db")
	}
	if err := reading.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO observations (
	station_id, ts, wave_height_m, wave_period_s, wind_speed_ms, wind_gust_ms,
	wind_dir_deg, air_temp_c, water_temp_c, pressure_hpa
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10
)`, reading.StationID, reading.Timestamp.UTC(), reading.WaveHeightM, reading.WavePeriodS,
		reading.WindSpeedMS, reading.WindGustMS, reading.WindDirDeg, reading.AirTempC,
		reading.WaterTempC, reading.PressureHPa)
	return err
}

// ListDay loads all readings observed on the given UTC day ordered by
// station and time.
func (r *ObservationRepository) ListDay(ctx context.Context, day time.Time) ([]observation.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("observation repo: nil db")
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	rows, err := r.db.QueryContext(ctx, `
SELECT station_id, ts, wave_height_m, wave_period_s, wind_speed_ms, wind_gust_ms,
	wind_dir_deg, air_temp_c, water_temp_c, pressure_hpa
FROM observations
WHERE ts >= $1 AND ts < $2
ORDER BY station_id, ts`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []observation.Reading
	for rows.Next() {
		var reading observation.Reading
		if err := rows.Scan(
			&reading.StationID, &reading.Timestamp, &reading.WaveHeightM, &reading.WavePeriodS,
			&reading.WindSpeedMS, &reading.WindGustMS, &reading.WindDirDeg, &reading.AirTempC,
			&reading.WaterTempC, &reading.PressureHPa,
		); err != nil {
			return nil, err
		}
		reading.Timestamp = reading.Timestamp.UTC()
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}
