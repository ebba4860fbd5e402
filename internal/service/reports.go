package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"shoreline/internal/blobstore"
	"shoreline/internal/docstore"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/models"
	"shoreline/internal/repository"

	"github.com/google/uuid"
)

// ReportService handles pollution-area reports and their photos.
type ReportService struct {
	reportRepo *repository.ReportRepository
	blobs      blobstore.Store
	index      ReportIndex
	publisher  Publisher
}

func NewReportService(reportRepo *repository.ReportRepository, blobs blobstore.Store, index ReportIndex, publisher Publisher) *ReportService {
	return &ReportService{
		reportRepo: reportRepo,
		blobs:      blobs,
		index:      index,
		publisher:  publisher,
	}
}

// photoPath builds reports/<id>/photo<ext>, keeping the extension of the
// uploaded name only when it is short and alphanumeric.
func photoPath(reportID, name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if len(ext) < 2 || len(ext) > 6 {
		return "reports/" + reportID + "/photo"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "reports/" + reportID + "/photo"
		}
	}
	return "reports/" + reportID + "/photo" + ext
}

func (s *ReportService) Create(ctx context.Context, actor Actor, req *models.CreateReportRequest) (*models.Report, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", apperrors.ErrValidation)
	}
	loc := models.Location{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := validateLocation(loc); err != nil {
		return nil, err
	}
	severity := strings.ToLower(strings.TrimSpace(req.Severity))
	if severity == "" {
		severity = models.SeverityMedium
	}
	if !models.ValidSeverity(severity) {
		return nil, fmt.Errorf("%w: unknown severity %q", apperrors.ErrValidation, req.Severity)
	}

	report := &models.Report{
		ID:          uuid.New().String(),
		ReporterID:  actor.UID,
		Description: description,
		Location:    loc,
		Severity:    severity,
		Status:      models.ReportStatusPending,
	}

	if len(req.Photo) > 0 {
		contentType := req.PhotoType
		if contentType == "" {
			contentType = http.DetectContentType(req.Photo)
		}
		if !strings.HasPrefix(contentType, "image/") {
			return nil, fmt.Errorf("%w: photo must be an image, got %s", apperrors.ErrValidation, contentType)
		}
		p := photoPath(report.ID, req.PhotoName)
		url, err := s.blobs.Upload(ctx, p, contentType, req.Photo)
		if errors.Is(err, blobstore.ErrTooLarge) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to upload photo: %w", err)
		}
		report.PhotoPath = p
		report.PhotoURL = url
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		if report.PhotoPath != "" {
			if delErr := s.blobs.Delete(ctx, report.PhotoPath); delErr != nil {
				slog.Error("Failed to remove orphaned photo", "path", report.PhotoPath, "error", delErr)
			}
		}
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.reindex(ctx, report)
	s.publishChange(models.SubjectReportCreated, report)
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if report == nil {
		return nil, notFound("report", id)
	}
	return report, nil
}

func (s *ReportService) List(ctx context.Context, query, status string) ([]models.Report, error) {
	if status != "" && !models.ValidReportStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, status)
	}
	query = strings.TrimSpace(query)

	if query != "" && s.index != nil {
		reports, err := s.index.SearchReports(ctx, query, status, 100)
		if err == nil {
			return reports, nil
		}
		slog.Error("Report search failed, scanning store", "error", err)
	}

	reports, err := s.reportRepo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if query == "" {
		return reports, nil
	}
	q := strings.ToLower(query)
	return slices.DeleteFunc(reports, func(r models.Report) bool {
		return !strings.Contains(strings.ToLower(r.Description), q)
	}), nil
}

func (s *ReportService) UpdateStatus(ctx context.Context, actor Actor, id, status string) (*models.Report, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if !models.ValidReportStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, status)
	}
	report, err := s.reportRepo.Update(ctx, id, func(r *models.Report) error {
		r.Status = status
		return nil
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, notFound("report", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	s.reindex(ctx, report)
	s.publishChange(models.SubjectReportUpdated, report)
	return report, nil
}

// Delete removes the report and its photo. A photo that cannot be removed is
// logged and left behind.
func (s *ReportService) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	report, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.reportRepo.Delete(ctx, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	if report.PhotoPath != "" {
		if err := s.blobs.Delete(ctx, report.PhotoPath); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			slog.Error("Failed to delete report photo", "report_id", id, "path", report.PhotoPath, "error", err)
		}
	}
	if s.index != nil {
		if err := s.index.DeleteReport(ctx, id); err != nil {
			slog.Error("Failed to remove report from search index", "report_id", id, "error", err)
		}
	}
	s.publishChange(models.SubjectReportDeleted, report)
	return nil
}

func (s *ReportService) reindex(ctx context.Context, report *models.Report) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexReport(ctx, report); err != nil {
		slog.Error("Failed to index report", "report_id", report.ID, "error", err)
	}
}

func (s *ReportService) publishChange(subject string, report *models.Report) {
	publish(s.publisher, subject, models.ReportChangedEvent{
		ReportID:  report.ID,
		Status:    report.Status,
		Timestamp: time.Now(),
	})
}
