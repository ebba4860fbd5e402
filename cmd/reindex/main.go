package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"shoreline/internal/backend"
	"shoreline/internal/config"
	"shoreline/internal/logger"
	"shoreline/internal/models"
	"shoreline/internal/repository"
)

// indexer is the subset of the search client used here
type indexer interface {
	IndexEvent(ctx context.Context, event *models.Event) error
	IndexReport(ctx context.Context, report *models.Report) error
}

func main() {
	var skipReports bool
	flag.BoolVar(&skipReports, "events-only", false, "Reindex events only")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting search reindex")

	// Domain events are not needed here
	cfg.NATS.Enabled = false
	cfg.Cache.Enabled = false

	ctx := context.Background()
	b, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open backends", "error", err)
	}
	if b.Search == nil {
		b.Close()
		logger.Fatal("Elasticsearch is not available, nothing to reindex into")
	}

	stats, err := reindex(ctx, b.Repos, b.Search, !skipReports)
	b.Close()
	if err != nil {
		logger.Fatal("Reindex failed", "error", err)
	}

	slog.Info("Reindex completed successfully",
		"events", stats.events, "reports", stats.reports, "failed", stats.failed, "duration", stats.duration)
}

type reindexStats struct {
	events   int
	reports  int
	failed   int
	duration time.Duration
}

// reindex copies every event and, optionally, every report from the document
// store into the search index. A document that fails to index is logged and
// counted; listing failures abort the run.
func reindex(ctx context.Context, repos *repository.Repositories, idx indexer, withReports bool) (reindexStats, error) {
	start := time.Now()
	var stats reindexStats

	events, err := repos.Events.List(ctx, "")
	if err != nil {
		return stats, fmt.Errorf("failed to list events: %w", err)
	}
	slog.Info("Indexing events", "count", len(events))
	for i := range events {
		if err := idx.IndexEvent(ctx, &events[i]); err != nil {
			slog.Error("Failed to index event", "event_id", events[i].ID, "error", err)
			stats.failed++
			continue
		}
		stats.events++
	}

	if withReports {
		reports, err := repos.Reports.List(ctx, "")
		if err != nil {
			return stats, fmt.Errorf("failed to list reports: %w", err)
		}
		slog.Info("Indexing reports", "count", len(reports))
		for i := range reports {
			if err := idx.IndexReport(ctx, &reports[i]); err != nil {
				slog.Error("Failed to index report", "report_id", reports[i].ID, "error", err)
				stats.failed++
				continue
			}
			stats.reports++
		}
	}

	stats.duration = time.Since(start)
	return stats, nil
}
