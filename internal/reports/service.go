package reports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/blob"
	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrTooManyReports = errors.New("too many reports")
)

type weekProvider interface {
	Week(ctx context.Context, ownerUserID string, dateStr string) (mealplans.Week, error)
}

// Options configures download links.
type Options struct {
	MaxPerUser      int
	PresignTTL      time.Duration
	PublicBaseURL   string
	PreferPublicURL bool
}

// Service handles reports business logic
type Service struct {
	reportsStorage storage.ReportsStorage
	plans          weekProvider
	blobStore      blob.Store
	opts           Options
}

// NewService creates a new reports service
func NewService(reportsStorage storage.ReportsStorage, plans weekProvider, blobStore blob.Store, opts Options) *Service {
	if blobStore == nil {
		blobStore = blob.NewMemoryStore()
	}
	return &Service{
		reportsStorage: reportsStorage,
		plans:          plans,
		blobStore:      blobStore,
		opts:           opts,
	}
}

// CreateReport renders the week containing req.Date and stores it.
func (s *Service) CreateReport(ctx context.Context, ownerUserID string, req CreateReportRequest) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if s.opts.MaxPerUser > 0 {
		count, err := s.reportsStorage.CountReports(ctx, ownerUserID)
		if err != nil {
			return nil, fmt.Errorf("%w: count reports: %v", storage.ErrQueryFailed, err)
		}
		if count >= s.opts.MaxPerUser {
			return nil, ErrTooManyReports
		}
	}

	week, err := s.plans.Week(ctx, ownerUserID, req.Date)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch req.Format {
	case FormatCSV:
		data, err = RenderCSV(week)
	default:
		data, err = RenderPDF(week)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}

	objectKey := fmt.Sprintf("reports/%s/%s_%s.%s", ownerUserID, week.Start, uuid.New().String(), req.Format)
	obj := blob.Object{
		Key:         objectKey,
		Data:        data,
		ContentType: contentTypeFor(req.Format),
		FileName:    fileName(week.Start, req.Format),
	}
	if _, err := s.blobStore.PutObject(ctx, obj); err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	meta := &storage.ReportMeta{
		OwnerUserID: ownerUserID,
		Format:      req.Format,
		FromDate:    week.Start,
		ToDate:      week.End,
		ObjectKey:   &objectKey,
		SizeBytes:   int64(len(data)),
		Status:      StatusReady,
	}
	if err := s.reportsStorage.CreateReport(ctx, meta); err != nil {
		if delErr := s.blobStore.DeleteObject(ctx, objectKey); delErr != nil {
			log.Printf("WARN reports: orphan object key=%s: %v", objectKey, delErr)
		}
		return nil, fmt.Errorf("failed to save report metadata: %w", err)
	}

	return toReport(meta), nil
}

// GetReport retrieves a report by ID
func (s *Service) GetReport(ctx context.Context, ownerUserID string, id uuid.UUID) (*Report, error) {
	meta, err := s.getMeta(ctx, ownerUserID, id)
	if err != nil {
		return nil, err
	}
	return toReport(meta), nil
}

// ListReports lists reports of the user, newest first, with the total count.
func (s *Service) ListReports(ctx context.Context, ownerUserID string, limit, offset int) ([]Report, int, error) {
	metaList, err := s.reportsStorage.ListReports(ctx, ownerUserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list reports: %v", storage.ErrQueryFailed, err)
	}
	total, err := s.reportsStorage.CountReports(ctx, ownerUserID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: count reports: %v", storage.ErrQueryFailed, err)
	}

	reports := make([]Report, len(metaList))
	for i := range metaList {
		reports[i] = *toReport(&metaList[i])
	}

	return reports, total, nil
}

// DeleteReport deletes the metadata and the stored object.
func (s *Service) DeleteReport(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	meta, err := s.getMeta(ctx, ownerUserID, id)
	if err != nil {
		return err
	}

	if meta.ObjectKey != nil {
		if err := s.blobStore.DeleteObject(ctx, *meta.ObjectKey); err != nil {
			// метаданные важнее, объект останется сиротой
			log.Printf("WARN reports: failed to delete object key=%s: %v", *meta.ObjectKey, err)
		}
	}

	if err := s.reportsStorage.DeleteReport(ctx, ownerUserID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("failed to delete report metadata: %w", err)
	}

	return nil
}

// DownloadURL returns the external URL of the object, or the API
// download endpoint when the store cannot serve one.
func (s *Service) DownloadURL(ctx context.Context, report *Report, baseURL string) string {
	if url, ok := s.ExternalURL(ctx, report); ok {
		return url
	}
	return fmt.Sprintf("%s/v1/reports/%s/download", strings.TrimSuffix(baseURL, "/"), report.ID.String())
}

// ExternalURL returns a public or presigned URL when the store supports it.
func (s *Service) ExternalURL(ctx context.Context, report *Report) (string, bool) {
	if report.ObjectKey == nil {
		return "", false
	}

	if s.opts.PreferPublicURL && s.opts.PublicBaseURL != "" {
		return strings.TrimSuffix(s.opts.PublicBaseURL, "/") + "/" + *report.ObjectKey, true
	}

	url, err := s.blobStore.PresignGet(ctx, *report.ObjectKey, s.opts.PresignTTL)
	if err != nil {
		if !errors.Is(err, blob.ErrPresignNotSupported) {
			log.Printf("WARN reports: presign failed id=%s: %v", report.ID, err)
		}
		return "", false
	}
	return url, true
}

// GetReportData reads the stored object.
func (s *Service) GetReportData(ctx context.Context, ownerUserID string, id uuid.UUID) ([]byte, *Report, error) {
	meta, err := s.getMeta(ctx, ownerUserID, id)
	if err != nil {
		return nil, nil, err
	}
	if meta.ObjectKey == nil {
		return nil, nil, fmt.Errorf("object key is missing")
	}

	data, err := s.blobStore.GetObject(ctx, *meta.ObjectKey)
	if errors.Is(err, blob.ErrObjectNotFound) {
		log.Printf("WARN reports: object missing id=%s key=%s", meta.ID, *meta.ObjectKey)
		return nil, nil, ErrReportNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read report: %w", err)
	}
	return data, toReport(meta), nil
}

func (s *Service) getMeta(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.ReportMeta, error) {
	meta, err := s.reportsStorage.GetReport(ctx, ownerUserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get report: %v", storage.ErrQueryFailed, err)
	}
	return meta, nil
}

// FileName is the attachment name for downloads.
func (r *Report) FileName() string {
	return fileName(r.FromDate, r.Format)
}

func fileName(from, format string) string {
	return fmt.Sprintf("meal-plan_%s.%s", from, format)
}

func toReport(meta *storage.ReportMeta) *Report {
	return &Report{
		ID:        meta.ID,
		Format:    meta.Format,
		FromDate:  meta.FromDate,
		ToDate:    meta.ToDate,
		ObjectKey: meta.ObjectKey,
		SizeBytes: meta.SizeBytes,
		Status:    meta.Status,
		CreatedAt: meta.CreatedAt,
	}
}

