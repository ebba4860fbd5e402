package main

import (
	"context"
	"errors"
	"testing"

	"shoreline/internal/docstore"
	"shoreline/internal/models"
	"shoreline/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	events  []string
	reports []string
	failID  string
}

func (f *fakeIndex) IndexEvent(_ context.Context, e *models.Event) error {
	if e.ID == f.failID {
		return errors.New("index rejected")
	}
	f.events = append(f.events, e.ID)
	return nil
}

func (f *fakeIndex) IndexReport(_ context.Context, r *models.Report) error {
	f.reports = append(f.reports, r.ID)
	return nil
}

func seed(t *testing.T) (*repository.Repositories, []string) {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewRepositories(docstore.NewMemoryStore())

	var ids []string
	for _, title := range []string{"Mangrove", "River mouth"} {
		e := &models.Event{Title: title, Date: "2030-01-01", Status: models.EventStatusUpcoming}
		require.NoError(t, repos.Events.Create(ctx, e))
		ids = append(ids, e.ID)
	}
	require.NoError(t, repos.Reports.Create(ctx, &models.Report{ID: "r1", Description: "Nets on the rocks", Status: models.ReportStatusPending}))
	return repos, ids
}

func TestReindex(t *testing.T) {
	repos, ids := seed(t)
	idx := &fakeIndex{}

	stats, err := reindex(context.Background(), repos, idx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.events)
	assert.Equal(t, 1, stats.reports)
	assert.Zero(t, stats.failed)
	assert.ElementsMatch(t, ids, idx.events)
	assert.Equal(t, []string{"r1"}, idx.reports)
}

func TestReindex_CountsFailuresAndSkipsReports(t *testing.T) {
	repos, ids := seed(t)
	idx := &fakeIndex{failID: ids[0]}

	stats, err := reindex(context.Background(), repos, idx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.events)
	assert.Equal(t, 1, stats.failed)
	assert.Empty(t, idx.reports)
}
