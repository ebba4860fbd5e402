package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"shoreline/internal/analytics"
	"shoreline/internal/docstore"
	"shoreline/internal/models"
)

// CompletionRepository stores one completion record per finished event.
type CompletionRepository struct {
	store docstore.Store
}

func NewCompletionRepository(store docstore.Store) *CompletionRepository {
	return &CompletionRepository{store: store}
}

// Save writes the record as a flat document keyed by the event id.
func (r *CompletionRepository) Save(ctx context.Context, eventID string, rec analytics.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode completion: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("encode completion: %w", err)
	}
	doc["eventId"] = eventID
	return r.store.Set(ctx, models.CollectionCompletions, eventID, doc)
}

func (r *CompletionRepository) List(ctx context.Context) ([]analytics.Record, error) {
	snaps, err := r.store.Query(ctx, models.CollectionCompletions)
	if err != nil {
		return nil, err
	}
	return decodeRecords(snaps), nil
}

// Subscribe delivers the full record set on start and after every change.
func (r *CompletionRepository) Subscribe(ctx context.Context, fn func([]analytics.Record)) error {
	return r.store.Subscribe(ctx, models.CollectionCompletions, func(snaps []docstore.Snapshot) {
		fn(decodeRecords(snaps))
	})
}

// decodeRecords drops documents that are not JSON objects.
func decodeRecords(snaps []docstore.Snapshot) []analytics.Record {
	records := make([]analytics.Record, 0, len(snaps))
	for _, snap := range snaps {
		var rec analytics.Record
		if err := snap.DataTo(&rec); err != nil {
			slog.Warn("Skipping malformed completion record", "id", snap.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}
