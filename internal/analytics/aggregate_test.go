package analytics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(date string, metrics map[MetricKey]float64, wt ...WasteType) Record {
	return Record{Date: date, Metrics: metrics, WasteTypes: wt}
}

func TestAggregate_Empty(t *testing.T) {
	buckets := Aggregate(nil, Presets[ReportPerformance])
	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}

func TestAggregate_SumsWithinMonth(t *testing.T) {
	records := []Record{
		rec("2024-03-02", map[MetricKey]float64{WasteCollected: 100}),
		rec("2024-03-28T10:00:00Z", map[MetricKey]float64{WasteCollected: 200}),
	}
	spec := Spec{Metrics: map[MetricKey]Reduction{WasteCollected: Sum}}

	buckets := Aggregate(records, spec)
	require.Len(t, buckets, 1)
	assert.Equal(t, "2024-03", buckets[0].Month)
	assert.Equal(t, 2, buckets[0].Records)
	assert.Equal(t, 300.0, buckets[0].Values[WasteCollected])
}

func TestAggregate_SortedByMonth(t *testing.T) {
	records := []Record{
		rec("2024-11-01", map[MetricKey]float64{Participants: 1}),
		rec("2023-12-31", map[MetricKey]float64{Participants: 2}),
		rec("2024-02-10", map[MetricKey]float64{Participants: 3}),
	}
	buckets := Aggregate(records, Spec{Metrics: map[MetricKey]Reduction{Participants: Sum}})

	months := make([]string, len(buckets))
	for i, b := range buckets {
		months[i] = b.Month
	}
	assert.Equal(t, []string{"2023-12", "2024-02", "2024-11"}, months)
}

func TestAggregate_NoTimezoneConversion(t *testing.T) {
	records := []Record{
		rec("2024-03-31T23:30:00-05:00", map[MetricKey]float64{Participants: 4}),
	}
	buckets := Aggregate(records, Spec{Metrics: map[MetricKey]Reduction{Participants: Sum}})
	require.Len(t, buckets, 1)
	assert.Equal(t, "2024-03", buckets[0].Month)
}

func TestAggregate_AverageSkipsMissing(t *testing.T) {
	records := []Record{
		rec("2024-05-01", map[MetricKey]float64{WastePerHour: 10, Participants: 5}),
		rec("2024-05-10", map[MetricKey]float64{Participants: 7}),
		rec("2024-05-20", map[MetricKey]float64{WastePerHour: 20}),
	}
	spec := Spec{Metrics: map[MetricKey]Reduction{WastePerHour: Average, Participants: Sum}}

	buckets := Aggregate(records, spec)
	require.Len(t, buckets, 1)
	assert.Equal(t, 15.0, buckets[0].Values[WastePerHour])
	assert.Equal(t, 12.0, buckets[0].Values[Participants])
}

func TestAggregate_AverageWithoutValuesIsAbsent(t *testing.T) {
	records := []Record{rec("2024-05-01", map[MetricKey]float64{Participants: 3})}
	buckets := Aggregate(records, Spec{Metrics: map[MetricKey]Reduction{WastePerHour: Average, Participants: Sum}})
	require.Len(t, buckets, 1)
	_, ok := buckets[0].Values[WastePerHour]
	assert.False(t, ok)
}

func TestAggregate_SkipsUnparsableDates(t *testing.T) {
	records := []Record{
		rec("", map[MetricKey]float64{WasteCollected: 999}),
		rec("not a date", map[MetricKey]float64{WasteCollected: 999}),
		rec("2024-01-15", map[MetricKey]float64{WasteCollected: 5}),
	}
	res := Run(records, Spec{Metrics: map[MetricKey]Reduction{WasteCollected: Sum}})

	require.Len(t, res.Buckets, 1)
	assert.Equal(t, 5.0, res.Buckets[0].Values[WasteCollected])
	assert.Equal(t, []int{0, 1}, res.Skipped)
}

func TestRun_CompositionIsMassWeighted(t *testing.T) {
	records := []Record{
		rec("2024-06-01", map[MetricKey]float64{WasteCollected: 100},
			WasteType{Type: "Plastics", Percentage: 50},
			WasteType{Type: "Glass", Percentage: 50}),
		rec("2024-07-01", map[MetricKey]float64{WasteCollected: 200},
			WasteType{Type: "Plastics", Percentage: 25},
			WasteType{Type: "Metal", Percentage: 75}),
	}
	res := Run(records, Presets[ReportWasteComposition])

	shares := make(map[string]WasteShare)
	for _, s := range res.Composition {
		shares[s.Type] = s
	}
	require.Contains(t, shares, "Plastics")
	assert.InDelta(t, 100.0, shares["Plastics"].Mass, 1e-9)
	assert.InDelta(t, 100.0/300.0*100, shares["Plastics"].Percentage, 1e-9)
	assert.InDelta(t, 150.0, shares["Metal"].Mass, 1e-9)
	assert.Equal(t, "Metal", res.Composition[0].Type)

	var total float64
	for _, s := range res.Composition {
		total += s.Percentage
	}
	assert.InDelta(t, 100.0, total, 1e-9)
}

func TestRun_CompositionSpecExample(t *testing.T) {
	records := []Record{
		rec("2024-06-01", map[MetricKey]float64{WasteCollected: 100}, WasteType{Type: "Plastics", Percentage: 50}),
		rec("2024-06-02", map[MetricKey]float64{WasteCollected: 200}, WasteType{Type: "Plastics", Percentage: 25}),
	}
	res := Run(records, Spec{Metrics: map[MetricKey]Reduction{WasteCollected: Sum}, Composition: true})

	require.Len(t, res.Composition, 1)
	assert.InDelta(t, 100.0, res.Composition[0].Mass, 1e-9)
	total := res.Buckets[0].Values[WasteCollected]
	assert.InDelta(t, 33.333, res.Composition[0].Mass/total*100, 0.001)
}

func TestRun_EmptyComposition(t *testing.T) {
	res := Run([]Record{rec("2024-06-01", nil)}, Presets[ReportWasteComposition])
	assert.NotNil(t, res.Composition)
	assert.Empty(t, res.Composition)
}

func TestAggregate_RatioDivisionByZero(t *testing.T) {
	records := []Record{
		rec("2024-08-01", map[MetricKey]float64{WasteCollected: 50}),
		rec("2024-09-01", map[MetricKey]float64{WasteCollected: 60, Participants: 3}),
	}
	var buckets []MonthlyBucket
	require.NotPanics(t, func() {
		buckets = Aggregate(records, Presets[ReportPerformance])
	})
	require.Len(t, buckets, 2)

	assert.Nil(t, buckets[0].Ratios["efficiency"])
	require.NotNil(t, buckets[1].Ratios["efficiency"])
	assert.InDelta(t, 20.0, *buckets[1].Ratios["efficiency"], 1e-9)

	out, err := json.Marshal(buckets[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"efficiency":null`)
}

func TestAggregate_VolunteerPercentages(t *testing.T) {
	records := []Record{
		rec("2024-04-01", map[MetricKey]float64{RecurringVolunteers: 3, NewVolunteers: 1}),
		rec("2024-04-15", map[MetricKey]float64{RecurringVolunteers: 3, NewVolunteers: 3}),
	}
	buckets := Aggregate(records, Presets[ReportVolunteerEngagement])
	require.Len(t, buckets, 1)
	assert.InDelta(t, 60.0, *buckets[0].Ratios["recurringPercentage"], 1e-9)
	assert.InDelta(t, 40.0, *buckets[0].Ratios["newPercentage"], 1e-9)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	records := []Record{rec("2024-04-01", map[MetricKey]float64{Participants: 3})}
	_ = Aggregate(records, Presets[ReportPerformance])
	assert.Equal(t, map[MetricKey]float64{Participants: 3}, records[0].Metrics)
}

func TestPresets_AreValid(t *testing.T) {
	for name, spec := range Presets {
		assert.NoError(t, spec.Validate(), name)
	}
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec("wasteCollected:sum, wastePerHour:avg,participants", true)
	require.NoError(t, err)
	assert.Equal(t, Sum, spec.Metrics[WasteCollected])
	assert.Equal(t, Average, spec.Metrics[WastePerHour])
	assert.Equal(t, Sum, spec.Metrics[Participants])
	assert.True(t, spec.Composition)

	_, err = ParseSpec("nope:sum", false)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = ParseSpec("participants:median", false)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = ParseSpec("", false)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestRecord_UnmarshalLooseTypes(t *testing.T) {
	raw := `{
		"date": "2024-03-05",
		"participants": "12",
		"wasteCollected": 40.5,
		"wastePerHour": "n/a",
		"satisfactionRating": null,
		"unknownField": 7,
		"wasteTypes": [{"type": "Plastics", "percentage": "60"}, {"type": "Glass", "percentage": 40}]
	}`
	var r Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.Equal(t, "2024-03-05", r.Date)
	assert.Equal(t, 12.0, r.Metrics[Participants])
	assert.Equal(t, 40.5, r.Metrics[WasteCollected])
	_, ok := r.Metrics[WastePerHour]
	assert.False(t, ok)
	_, ok = r.Metrics[SatisfactionRating]
	assert.False(t, ok)
	assert.Len(t, r.Metrics, 2)
	assert.Equal(t, []WasteType{{Type: "Plastics", Percentage: 60}, {Type: "Glass", Percentage: 40}}, r.WasteTypes)
}

func TestRecord_UnmarshalNonFiniteStrings(t *testing.T) {
	raw := `{
		"date": "2024-03-01",
		"wasteCollected": "NaN",
		"participants": "Inf",
		"areaCovered": "-Infinity",
		"busUsers": "4",
		"wasteTypes": [{"type": "Glass", "percentage": "NaN"}, {"type": "Metal", "percentage": "100"}]
	}`
	var r Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.Equal(t, map[MetricKey]float64{BusUsers: 4}, r.Metrics)
	assert.Equal(t, []WasteType{{Type: "Metal", Percentage: 100}}, r.WasteTypes)
	require.NoError(t, r.Validate())

	res := Run([]Record{r}, Presets[ReportPerformance])
	require.Len(t, res.Buckets, 1)
	assert.Equal(t, 0.0, res.Buckets[0].Values[WasteCollected])
	assert.Nil(t, res.Buckets[0].Ratios["efficiency"])

	_, err := json.Marshal(res)
	assert.NoError(t, err)
}

func TestRun_IgnoresNonFiniteValuesBuiltInCode(t *testing.T) {
	records := []Record{
		rec("2024-03-01", map[MetricKey]float64{WasteCollected: math.NaN(), Participants: math.Inf(1)}),
		rec("2024-03-02", map[MetricKey]float64{WasteCollected: 30, Participants: 3, WastePerHour: math.Inf(-1)}),
		rec("2024-03-03", map[MetricKey]float64{WasteCollected: math.Inf(1)},
			WasteType{Type: "Plastics", Percentage: 100}),
	}
	assert.ErrorIs(t, records[0].Validate(), ErrNonFinite)
	assert.ErrorIs(t, records[1].Validate(), ErrNonFinite)

	spec := Presets[ReportPerformance]
	spec.Composition = true
	res := Run(records, spec)
	require.Len(t, res.Buckets, 1)
	b := res.Buckets[0]
	assert.Equal(t, 30.0, b.Values[WasteCollected])
	assert.Equal(t, 3.0, b.Values[Participants])
	_, ok := b.Values[WastePerHour]
	assert.False(t, ok)
	require.NotNil(t, b.Ratios["efficiency"])
	assert.InDelta(t, 10.0, *b.Ratios["efficiency"], 1e-9)
	assert.Empty(t, res.Composition)

	_, err := json.Marshal(res)
	assert.NoError(t, err)
}

func TestAggregate_OverflowingSumIsAbsent(t *testing.T) {
	records := []Record{
		rec("2024-03-01", map[MetricKey]float64{TransportCost: math.MaxFloat64, BusUsers: 2}),
		rec("2024-03-02", map[MetricKey]float64{TransportCost: math.MaxFloat64, BusUsers: 2}),
	}
	buckets := Aggregate(records, Presets[ReportTransport])
	require.Len(t, buckets, 1)
	_, ok := buckets[0].Values[TransportCost]
	assert.False(t, ok)
	assert.Nil(t, buckets[0].Ratios["costPerRider"])
}

func TestRun_CompositionSharesOverHundredAreScaled(t *testing.T) {
	records := []Record{
		rec("2024-06-01", map[MetricKey]float64{WasteCollected: 100},
			WasteType{Type: "Plastics", Percentage: 80},
			WasteType{Type: "Glass", Percentage: 80}),
		rec("2024-06-02", map[MetricKey]float64{WasteCollected: 100},
			WasteType{Type: "Metal", Percentage: 40}),
	}
	res := Run(records, Presets[ReportWasteComposition])

	shares := make(map[string]WasteShare)
	var mass float64
	for _, s := range res.Composition {
		shares[s.Type] = s
		mass += s.Mass
	}
	assert.InDelta(t, 50.0, shares["Plastics"].Mass, 1e-9)
	assert.InDelta(t, 50.0, shares["Glass"].Mass, 1e-9)
	assert.InDelta(t, 40.0, shares["Metal"].Mass, 1e-9)
	assert.LessOrEqual(t, mass, 200.0)
}
