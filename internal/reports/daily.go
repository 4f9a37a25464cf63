package reports

import (
	"sort"
	"time"

	observation "station-cloud/internal/observation/domain"
)

// Stat accumulates min/max/avg over one optional measurement.
type Stat struct {
	Count int
	Min   float64
	Max   float64
	Sum   float64
}

func (s *Stat) add(v *float64) {
	if v == nil {
		return
	}
	if s.Count == 0 || *v < s.Min {
		s.Min = *v
	}
	if s.Count == 0 || *v > s.Max {
		s.Max = *v
	}
	s.Sum += *v
	s.Count++
}

// Avg returns the mean of the observed values, 0 when none were reported.
func (s Stat) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// DailySummary aggregates one station's readings over one UTC day.
type DailySummary struct {
	StationID string
	Day       time.Time
	Readings  int

	WaveHeightM Stat
	WindSpeedMS Stat
	AirTempC    Stat
	WaterTempC  Stat
	PressureHPa Stat
}

// BuildDailySummaries groups readings by station and aggregates each
// measurement. Stations come back in lexical order.
func BuildDailySummaries(day time.Time, readings []observation.Reading) []DailySummary {
	byStation := make(map[string]*DailySummary)
	for _, r := range readings {
		summary, ok := byStation[r.StationID]
		if !ok {
			summary = &DailySummary{StationID: r.StationID, Day: day}
			byStation[r.StationID] = summary
		}
		summary.Readings++
		summary.WaveHeightM.add(r.WaveHeightM)
		summary.WindSpeedMS.add(r.WindSpeedMS)
		summary.AirTempC.add(r.AirTempC)
		summary.WaterTempC.add(r.WaterTempC)
		summary.PressureHPa.add(r.PressureHPa)
	}

	stations := make([]string, 0, len(byStation))
	for station := range byStation {
		stations = append(stations, station)
	}
	sort.Strings(stations)

	summaries := make([]DailySummary, 0, len(stations))
	for _, station := range stations {
		summaries = append(summaries, *byStation[station])
	}
	return summaries
}
