package repository

import (
	"context"
	"time"

	"shoreline/internal/docstore"
	"shoreline/internal/models"
)

type ReportRepository struct {
	docs collection[models.Report]
}

func NewReportRepository(store docstore.Store) *ReportRepository {
	return &ReportRepository{docs: collection[models.Report]{
		store: store,
		name:  models.CollectionReports,
		setID: func(r *models.Report, id string) { r.ID = id },
	}}
}

// Create stores a report under its preassigned id.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now
	return r.docs.set(ctx, report.ID, report)
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	return r.docs.get(ctx, id)
}

func (r *ReportRepository) List(ctx context.Context, status string) ([]models.Report, error) {
	if status == "" {
		return r.docs.list(ctx)
	}
	return r.docs.list(ctx, docstore.Eq("status", status))
}

func (r *ReportRepository) Update(ctx context.Context, id string, fn func(*models.Report) error) (*models.Report, error) {
	return r.docs.mutate(ctx, id, func(rep *models.Report) error {
		if err := fn(rep); err != nil {
			return err
		}
		rep.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	return r.docs.delete(ctx, id)
}
