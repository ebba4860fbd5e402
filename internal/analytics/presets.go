package analytics

import (
	"fmt"
	"sort"
	"strings"
)

// Report preset names.
const (
	ReportPerformance         = "performance"
	ReportEventSummary        = "event_summary"
	ReportWasteComposition    = "waste_composition"
	ReportTransport           = "transport"
	ReportVolunteerEngagement = "volunteer_engagement"
	ReportEnvironmentalImpact = "environmental_impact"
)

// Presets maps each dashboard to its metric policy.
var Presets = map[string]Spec{
	ReportPerformance: {
		Metrics: map[MetricKey]Reduction{
			Participants:   Sum,
			WasteCollected: Sum,
			WastePerHour:   Average,
		},
		Ratios: []Ratio{
			{Name: "efficiency", Numerator: []MetricKey{WasteCollected}, Denominator: []MetricKey{Participants}, Scale: 1},
		},
	},
	ReportEventSummary: {
		Metrics: map[MetricKey]Reduction{
			WasteCollected: Sum,
			Participants:   Sum,
			AreaCovered:    Sum,
		},
		Composition: true,
	},
	ReportWasteComposition: {
		Metrics: map[MetricKey]Reduction{
			WasteCollected: Sum,
		},
		Composition: true,
	},
	ReportTransport: {
		Metrics: map[MetricKey]Reduction{
			BusFuelConsumption: Sum,
			BusUsers:           Sum,
			TransportCost:      Sum,
		},
		Ratios: []Ratio{
			{Name: "costPerRider", Numerator: []MetricKey{TransportCost}, Denominator: []MetricKey{BusUsers}, Scale: 1},
			{Name: "fuelPerRider", Numerator: []MetricKey{BusFuelConsumption}, Denominator: []MetricKey{BusUsers}, Scale: 1},
		},
	},
	ReportVolunteerEngagement: {
		Metrics: map[MetricKey]Reduction{
			RecurringVolunteers: Sum,
			NewVolunteers:       Sum,
			HoursContributed:    Sum,
			AttendanceRate:      Average,
			SatisfactionRating:  Average,
		},
		Ratios: []Ratio{
			{
				Name:        "recurringPercentage",
				Numerator:   []MetricKey{RecurringVolunteers},
				Denominator: []MetricKey{RecurringVolunteers, NewVolunteers},
				Scale:       100,
			},
			{
				Name:        "newPercentage",
				Numerator:   []MetricKey{NewVolunteers},
				Denominator: []MetricKey{RecurringVolunteers, NewVolunteers},
				Scale:       100,
			},
		},
	},
	ReportEnvironmentalImpact: {
		Metrics: map[MetricKey]Reduction{
			AreaCovered:       Sum,
			WildlifeCount:     Sum,
			PollutionScore:    Average,
			BiodiversityScore: Average,
			WaterQuality:      Average,
			SoilQuality:       Average,
			AirQuality:        Average,
		},
	},
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSpec reads an ad-hoc spec such as "wasteCollected:sum,wastePerHour:avg".
// A metric without a reduction is summed.
func ParseSpec(metrics string, composition bool) (Spec, error) {
	spec := Spec{Metrics: make(map[MetricKey]Reduction), Composition: composition}
	for _, part := range strings.Split(metrics, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, red, found := strings.Cut(part, ":")
		reduction := Sum
		if found {
			reduction = Reduction(strings.ToLower(strings.TrimSpace(red)))
		}
		if reduction == "average" {
			reduction = Average
		}
		spec.Metrics[MetricKey(strings.TrimSpace(name))] = reduction
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, fmt.Errorf("parse %q: %w", metrics, err)
	}
	return spec, nil
}
