package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MetricKey names one numeric field of a completion record.
type MetricKey string

const (
	Participants        MetricKey = "participants"
	WasteCollected      MetricKey = "wasteCollected"
	WastePerHour        MetricKey = "wastePerHour"
	AreaCovered         MetricKey = "areaCovered"
	BusFuelConsumption  MetricKey = "busFuelConsumption"
	BusUsers            MetricKey = "busUsers"
	TransportCost       MetricKey = "transportCost"
	AttendanceRate      MetricKey = "attendanceRate"
	RecurringVolunteers MetricKey = "recurringVolunteers"
	NewVolunteers       MetricKey = "newVolunteers"
	HoursContributed    MetricKey = "hoursContributed"
	SatisfactionRating  MetricKey = "satisfactionRating"
	WildlifeCount       MetricKey = "wildlifeCount"
	PollutionScore      MetricKey = "pollutionScore"
	BiodiversityScore   MetricKey = "biodiversityScore"
	WaterQuality        MetricKey = "waterQuality"
	SoilQuality         MetricKey = "soilQuality"
	AirQuality          MetricKey = "airQuality"
)

var knownMetrics = map[MetricKey]bool{
	Participants:        true,
	WasteCollected:      true,
	WastePerHour:        true,
	AreaCovered:         true,
	BusFuelConsumption:  true,
	BusUsers:            true,
	TransportCost:       true,
	AttendanceRate:      true,
	RecurringVolunteers: true,
	NewVolunteers:       true,
	HoursContributed:    true,
	SatisfactionRating:  true,
	WildlifeCount:       true,
	PollutionScore:      true,
	BiodiversityScore:   true,
	WaterQuality:        true,
	SoilQuality:         true,
	AirQuality:          true,
}

// Known reports whether k is one of the closed set of metric keys.
func (k MetricKey) Known() bool {
	return knownMetrics[k]
}

// MetricKeys returns every known key in sorted order.
func MetricKeys() []MetricKey {
	keys := make([]MetricKey, 0, len(knownMetrics))
	for k := range knownMetrics {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// WasteType is the share of one waste category in an event's haul.
type WasteType struct {
	Type       string  `json:"type"`
	Percentage float64 `json:"percentage"`
}

// Record is an event-completion record. A metric absent from Metrics was
// missing or non-numeric in the source document.
type Record struct {
	Date       string
	Metrics    map[MetricKey]float64
	WasteTypes []WasteType
}

// ErrNonFinite reports a NaN or infinite metric value.
var ErrNonFinite = errors.New("metric value is not a finite number")

// Value returns the metric and whether the record carries it.
func (r Record) Value(k MetricKey) (float64, bool) {
	v, ok := r.Metrics[k]
	return v, ok
}

// UnmarshalJSON reads a flat document. Metric fields may be numbers or
// numeric strings; any other value is dropped.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{Metrics: make(map[MetricKey]float64)}

	if d, ok := raw["date"]; ok {
		var s string
		if err := json.Unmarshal(d, &s); err == nil {
			r.Date = s
		}
	}

	if wt, ok := raw["wasteTypes"]; ok {
		var entries []struct {
			Type       string          `json:"type"`
			Percentage json.RawMessage `json:"percentage"`
		}
		if err := json.Unmarshal(wt, &entries); err == nil {
			for _, e := range entries {
				if p, ok := parseNumber(e.Percentage); ok {
					r.WasteTypes = append(r.WasteTypes, WasteType{Type: e.Type, Percentage: p})
				}
			}
		}
	}

	for name, value := range raw {
		key := MetricKey(name)
		if !key.Known() {
			continue
		}
		if v, ok := parseNumber(value); ok {
			r.Metrics[key] = v
		}
	}

	return nil
}

// MarshalJSON writes the record back as a flat document.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Metrics)+2)
	out["date"] = r.Date
	for k, v := range r.Metrics {
		out[string(k)] = v
	}
	if len(r.WasteTypes) > 0 {
		out["wasteTypes"] = r.WasteTypes
	}
	return json.Marshal(out)
}

// Validate rejects NaN and infinite values, which JSON cannot encode.
func (r Record) Validate() error {
	for k, v := range r.Metrics {
		if !finite(v) {
			return fmt.Errorf("%w: %s", ErrNonFinite, k)
		}
	}
	for _, wt := range r.WasteTypes {
		if !finite(wt.Percentage) {
			return fmt.Errorf("%w: wasteTypes %q", ErrNonFinite, wt.Type)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// parseNumber accepts finite numbers and numeric strings. ParseFloat also
// reads "NaN" and "Inf", which count as non-numeric here.
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && finite(f) {
			return f, true
		}
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or timestamp. The returned time keeps
// the offset written in the input.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

// MonthKey formats t as YYYY-MM in its own location.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
