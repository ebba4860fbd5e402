// Package analytics turns event-completion records into monthly chart series.
//
// Everything here is pure: callers load records from the store, pick a Spec
// (usually one of Presets) and re-run the aggregation whenever a new snapshot
// of records arrives.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var ErrInvalidSpec = errors.New("invalid aggregation spec")

// Reduction says how a metric is folded within a month.
type Reduction string

const (
	Sum     Reduction = "sum"
	Average Reduction = "avg"
)

// Ratio is derived from bucket values after reduction:
// sum(Numerator) / sum(Denominator) * Scale.
type Ratio struct {
	Name        string      `json:"name"`
	Numerator   []MetricKey `json:"numerator"`
	Denominator []MetricKey `json:"denominator"`
	Scale       float64     `json:"scale"`
}

// Spec selects the metrics of one report and how each is reduced.
type Spec struct {
	Metrics     map[MetricKey]Reduction `json:"metrics"`
	Ratios      []Ratio                 `json:"ratios,omitempty"`
	Composition bool                    `json:"composition"`
}

// Validate checks that every metric is known and every ratio input is part
// of the spec.
func (s Spec) Validate() error {
	if len(s.Metrics) == 0 && !s.Composition {
		return fmt.Errorf("%w: no metrics selected", ErrInvalidSpec)
	}
	for k, red := range s.Metrics {
		if !k.Known() {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalidSpec, k)
		}
		if red != Sum && red != Average {
			return fmt.Errorf("%w: unknown reduction %q for %s", ErrInvalidSpec, red, k)
		}
	}
	for _, r := range s.Ratios {
		if r.Name == "" || len(r.Numerator) == 0 || len(r.Denominator) == 0 {
			return fmt.Errorf("%w: ratio %q needs a name, numerator and denominator", ErrInvalidSpec, r.Name)
		}
		for _, k := range append(append([]MetricKey{}, r.Numerator...), r.Denominator...) {
			if _, ok := s.Metrics[k]; !ok {
				return fmt.Errorf("%w: ratio %q uses %s which is not selected", ErrInvalidSpec, r.Name, k)
			}
		}
	}
	return nil
}

// MonthlyBucket holds the reduced metrics of one calendar month. An averaged
// metric with no contributing record is absent from Values. A ratio whose
// denominator is zero is nil.
type MonthlyBucket struct {
	Month   string                `json:"month"`
	Records int                   `json:"records"`
	Values  map[MetricKey]float64 `json:"values"`
	Ratios  map[string]*float64   `json:"ratios,omitempty"`
}

// WasteShare is one category of the aggregated waste composition.
type WasteShare struct {
	Type       string  `json:"type"`
	Mass       float64 `json:"mass"`
	Percentage float64 `json:"percentage"`
}

// Aggregation is the full result of Run.
type Aggregation struct {
	Buckets []MonthlyBucket `json:"buckets"`
	// Composition covers every dated record of the run, across all months.
	Composition []WasteShare `json:"composition,omitempty"`
	// Skipped lists the indexes of records whose date could not be parsed.
	Skipped []int `json:"-"`
}

// Aggregate groups records by month and reduces the metrics named in spec.
func Aggregate(records []Record, spec Spec) []MonthlyBucket {
	return Run(records, spec).Buckets
}

type accumulator struct {
	records int
	sums    map[MetricKey]float64
	counts  map[MetricKey]int
}

// Run is Aggregate plus waste composition and the list of skipped records.
func Run(records []Record, spec Spec) Aggregation {
	result := Aggregation{Buckets: []MonthlyBucket{}}
	groups := make(map[string]*accumulator)
	masses := make(map[string]float64)

	for i, rec := range records {
		t, err := ParseDate(rec.Date)
		if err != nil {
			result.Skipped = append(result.Skipped, i)
			continue
		}
		key := MonthKey(t)

		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{
				sums:   make(map[MetricKey]float64),
				counts: make(map[MetricKey]int),
			}
			groups[key] = acc
		}
		acc.records++

		for metric := range spec.Metrics {
			if v, ok := rec.Value(metric); ok && finite(v) {
				acc.sums[metric] += v
				acc.counts[metric]++
			}
		}

		if spec.Composition {
			addComposition(masses, rec)
		}
	}

	months := make([]string, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	sort.Strings(months)

	for _, m := range months {
		acc := groups[m]
		bucket := MonthlyBucket{
			Month:   m,
			Records: acc.records,
			Values:  make(map[MetricKey]float64, len(spec.Metrics)),
		}
		for metric, red := range spec.Metrics {
			v := acc.sums[metric]
			if red == Average {
				if acc.counts[metric] == 0 {
					continue
				}
				v /= float64(acc.counts[metric])
			}
			// a sum that overflows is left out like a missing average
			if finite(v) {
				bucket.Values[metric] = v
			}
		}
		if len(spec.Ratios) > 0 {
			bucket.Ratios = make(map[string]*float64, len(spec.Ratios))
			for _, r := range spec.Ratios {
				bucket.Ratios[r.Name] = ratio(bucket.Values, r)
			}
		}
		result.Buckets = append(result.Buckets, bucket)
	}

	if spec.Composition {
		result.Composition = composition(masses)
	}

	return result
}

func ratio(values map[MetricKey]float64, r Ratio) *float64 {
	var num, den float64
	for _, k := range r.Numerator {
		v, ok := values[k]
		if !ok {
			return nil
		}
		num += v
	}
	for _, k := range r.Denominator {
		v, ok := values[k]
		if !ok {
			return nil
		}
		den += v
	}
	if den == 0 {
		return nil
	}
	scale := r.Scale
	if scale == 0 {
		scale = 1
	}
	out := num / den * scale
	if !finite(out) {
		return nil
	}
	return &out
}

// addComposition converts each share back to an absolute mass so events of
// different size weigh correctly in the final percentages. Shares adding up
// to more than 100 are scaled down so a record never contributes more than
// its wasteCollected.
func addComposition(masses map[string]float64, rec Record) {
	total, ok := rec.Value(WasteCollected)
	if !ok || !finite(total) || total <= 0 {
		return
	}
	var pct float64
	for _, wt := range rec.WasteTypes {
		if finite(wt.Percentage) && wt.Percentage > 0 {
			pct += wt.Percentage
		}
	}
	divisor := math.Max(pct, 100)
	for _, wt := range rec.WasteTypes {
		if !finite(wt.Percentage) || wt.Percentage <= 0 {
			continue
		}
		name := strings.TrimSpace(wt.Type)
		if name == "" {
			name = "Other"
		}
		masses[name] += wt.Percentage / divisor * total
	}
}

func composition(masses map[string]float64) []WasteShare {
	var grand float64
	for _, m := range masses {
		grand += m
	}
	if grand == 0 {
		return []WasteShare{}
	}

	shares := make([]WasteShare, 0, len(masses))
	for name, m := range masses {
		shares = append(shares, WasteShare{
			Type:       name,
			Mass:       m,
			Percentage: m / grand * 100,
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Mass != shares[j].Mass {
			return shares[i].Mass > shares[j].Mass
		}
		return shares[i].Type < shares[j].Type
	})
	return shares
}
