package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shoreline/internal/analytics"
	"shoreline/internal/cache"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/metrics"
	"shoreline/internal/models"
	"shoreline/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// CustomReport is the report name of ad-hoc aggregations.
const CustomReport = "custom"

// AnalyticsService renders dashboard series from completion records. Preset
// reports are cached until the record set changes.
type AnalyticsService struct {
	completionRepo *repository.CompletionRepository
	cache          ReportCache
	metrics        *metrics.Metrics
}

func NewAnalyticsService(completionRepo *repository.CompletionRepository, c ReportCache, m *metrics.Metrics) *AnalyticsService {
	return &AnalyticsService{
		completionRepo: completionRepo,
		cache:          c,
		metrics:        m,
	}
}

func (s *AnalyticsService) PresetNames() []string {
	return analytics.PresetNames()
}

// Compute runs one aggregation. Records with an unparsable date are left out
// and counted in Skipped.
func (s *AnalyticsService) Compute(ctx context.Context, name string, spec analytics.Spec, records []analytics.Record) *models.AnalyticsResponse {
	_, span := otel.Tracer("shoreline/analytics").Start(ctx, "analytics.Aggregate")
	defer span.End()
	span.SetAttributes(
		attribute.String("analytics.report", name),
		attribute.Int("analytics.records", len(records)),
	)

	start := time.Now()
	result := analytics.Run(records, spec)
	if s.metrics != nil {
		s.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
		s.metrics.AggregationRuns.WithLabelValues(name).Inc()
		s.metrics.AggregationSkipped.Add(float64(len(result.Skipped)))
	}
	if len(result.Skipped) > 0 {
		slog.Warn("Skipped completion records with unparsable date",
			"report", name, "count", len(result.Skipped), "indexes", result.Skipped)
	}

	composition := result.Composition
	if composition == nil {
		composition = []analytics.WasteShare{}
	}
	return &models.AnalyticsResponse{
		Report:      name,
		Buckets:     result.Buckets,
		Composition: composition,
		Skipped:     len(result.Skipped),
	}
}

// Report returns the JSON of a preset report, from cache when possible.
func (s *AnalyticsService) Report(ctx context.Context, name string) ([]byte, error) {
	spec, ok := analytics.Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown report %q", apperrors.ErrNotFound, name)
	}

	gen, cacheable := s.generation(ctx)
	if cacheable {
		data, err := s.cache.GetReport(ctx, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("Analytics cache read failed", "report", name, "error", err)
		}
	}

	records, err := s.completionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load completion records: %w", err)
	}
	data, err := json.Marshal(s.Compute(ctx, name, spec, records))
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if cacheable {
		s.store(ctx, gen, name, data)
	}
	return data, nil
}

// Custom aggregates an ad-hoc metric list such as "wasteCollected:sum".
func (s *AnalyticsService) Custom(ctx context.Context, metricList string, composition bool) (*models.AnalyticsResponse, error) {
	spec, err := analytics.ParseSpec(metricList, composition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	records, err := s.completionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load completion records: %w", err)
	}
	return s.Compute(ctx, CustomReport, spec, records), nil
}

// Refresh recomputes every preset from the stored records and writes them
// to the cache.
func (s *AnalyticsService) Refresh(ctx context.Context) error {
	gen, cacheable := s.generation(ctx)
	if !cacheable {
		return nil
	}
	records, err := s.completionRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load completion records: %w", err)
	}
	for _, name := range analytics.PresetNames() {
		data, err := json.Marshal(s.Compute(ctx, name, analytics.Presets[name], records))
		if err != nil {
			slog.Error("Failed to encode report", "report", name, "error", err)
			continue
		}
		s.store(ctx, gen, name, data)
	}
	return nil
}

// Watch recomputes the presets on every change to the completion records
// until ctx is cancelled. The snapshot only signals the change; Refresh
// reloads the records after reading the cache generation.
func (s *AnalyticsService) Watch(ctx context.Context) error {
	return s.completionRepo.Subscribe(ctx, func(records []analytics.Record) {
		slog.Info("Completion records changed, refreshing analytics", "records", len(records))
		s.Invalidate(ctx)
		if err := s.Refresh(ctx); err != nil {
			slog.Error("Failed to refresh analytics", "error", err)
		}
	})
}

// Invalidate drops every cached report.
func (s *AnalyticsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Error("Failed to invalidate analytics cache", "error", err)
	}
}

// generation reports the cache generation to tag a report with, and false
// when there is no usable cache.
func (s *AnalyticsService) generation(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		slog.Warn("Analytics cache generation lookup failed", "error", err)
		return 0, false
	}
	return gen, true
}

func (s *AnalyticsService) store(ctx context.Context, gen int64, name string, data []byte) {
	if err := s.cache.SetReport(ctx, gen, name, data); err != nil {
		slog.Warn("Analytics cache write failed", "report", name, "error", err)
	}
}
