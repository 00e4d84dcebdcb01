// Package service provides the import orchestration logic: a raw upload goes
// through grid loading, marketplace detection and order persistence, with the
// job row tracking every transition.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendalink/orderhub/internal/domain/import/grid"
	"github.com/vendalink/orderhub/internal/domain/import/parser"
	"github.com/vendalink/orderhub/internal/domain/import/repository"
	"github.com/vendalink/orderhub/pkg/metrics"
	"github.com/vendalink/orderhub/pkg/storage"
)

const tracerName = "orderhub.import"

// ErrUnknownStore marks imports addressed to a store that does not exist.
var ErrUnknownStore = errors.New("unknown store")

// Detector identifies the marketplace behind a cell grid.
type Detector interface {
	Detect(rows [][]any, hint string) (*parser.Result, error)
}

// ImportInput describes one uploaded spreadsheet.
type ImportInput struct {
	StoreID  uuid.UUID
	FileName string
	Data     []byte
	// Hint is an optional caller-supplied marketplace label, forwarded to the
	// aggregator fallback.
	Hint string
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	JobID          uuid.UUID
	Marketplace    parser.Marketplace
	Imported       int
	Skipped        int
	TotalProcessed int
}

// ImportService orchestrates detection and persistence of order exports.
type ImportService struct {
	repo     repository.ImportRepository
	detector Detector
	store    storage.Storage // optional, keeps the raw upload for reprocessing
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewImportService creates a new import service.
func NewImportService(repo repository.ImportRepository, detector Detector, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		repo:     repo,
		detector: detector,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// WithFileStorage keeps raw uploads around after processing.
func (s *ImportService) WithFileStorage(store storage.Storage) *ImportService {
	s.store = store
	return s
}

// WithMetrics adds Prometheus instrumentation.
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// ImportFile runs the full pipeline for one upload. The job row is created
// before any parsing so failures stay visible: a grid or detection error
// finishes the job as failed with the reason recorded.
func (s *ImportService) ImportFile(ctx context.Context, input ImportInput) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.file",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("import.file_name", input.FileName),
			attribute.Int("import.size_bytes", len(input.Data)),
			attribute.String("import.store_id", input.StoreID.String()),
		),
	)
	defer span.End()
	started := time.Now()

	if _, err := s.repo.GetStore(ctx, input.StoreID); err != nil {
		span.SetStatus(codes.Error, "unknown store")
		return nil, fmt.Errorf("%w %s: %v", ErrUnknownStore, input.StoreID, err)
	}

	job := &repository.ImportJob{
		StoreID:   input.StoreID,
		FileName:  input.FileName,
		SizeBytes: int64(len(input.Data)),
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		span.SetStatus(codes.Error, "job creation failed")
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}
	span.SetAttributes(attribute.String("import.job_id", job.ID.String()))

	if err := s.repo.MarkJobProcessing(ctx, job.ID); err != nil {
		span.SetStatus(codes.Error, "job claim failed")
		return nil, fmt.Errorf("failed to claim import job: %w", err)
	}

	rows, err := grid.Load(input.FileName, bytes.NewReader(input.Data))
	if err != nil {
		s.failJob(ctx, span, job.ID, "", fmt.Sprintf("unreadable file: %v", err))
		return nil, fmt.Errorf("failed to read %s: %w", input.FileName, err)
	}

	result, err := s.detector.Detect(rows, input.Hint)
	if err != nil {
		var noMatch *parser.NoMatchError
		if errors.As(err, &noMatch) && len(noMatch.Hints) > 0 {
			s.logger.Info("detection failed with header hints",
				slog.String("jobID", job.ID.String()),
				slog.Any("hints", noMatch.Hints),
			)
		}
		s.failJob(ctx, span, job.ID, "", err.Error())
		return nil, fmt.Errorf("marketplace detection failed: %w", err)
	}
	span.SetAttributes(attribute.String("import.marketplace", string(result.Marketplace)))

	stats, err := s.repo.BulkInsertOrders(ctx, input.StoreID, job.ID, result.Marketplace, result.Orders)
	if err != nil {
		s.failJob(ctx, span, job.ID, result.Marketplace, fmt.Sprintf("persistence failed: %v", err))
		return nil, fmt.Errorf("failed to persist orders: %w", err)
	}

	marketplace := string(result.Marketplace)
	if err := s.repo.FinishImportJob(ctx, job.ID, repository.JobStatusSuccess, &marketplace, stats.Inserted, stats.Skipped, nil); err != nil {
		s.logger.Warn("failed to finish import job", slog.String("jobID", job.ID.String()), slog.Any("error", err))
	}

	s.archiveUpload(ctx, input)
	s.recordMetrics(result.Marketplace, "success", stats, time.Since(started))

	s.logger.Info("import completed",
		slog.String("jobID", job.ID.String()),
		slog.String("marketplace", marketplace),
		slog.Int("imported", stats.Inserted),
		slog.Int("skipped", stats.Skipped),
	)

	return &ImportResult{
		JobID:          job.ID,
		Marketplace:    result.Marketplace,
		Imported:       stats.Inserted,
		Skipped:        stats.Skipped,
		TotalProcessed: stats.Inserted + stats.Skipped,
	}, nil
}

// GetJob returns the current state of an import job.
func (s *ImportService) GetJob(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	return s.repo.GetImportJob(ctx, id)
}

// ListOrders returns the orders persisted by one import job.
func (s *ImportService) ListOrders(ctx context.Context, jobID uuid.UUID) ([]repository.StoredOrder, error) {
	return s.repo.ListOrdersByJob(ctx, jobID)
}

// ResolveStore returns the store with the given name, creating it if absent.
func (s *ImportService) ResolveStore(ctx context.Context, name string) (*repository.Store, error) {
	return s.repo.ResolveStore(ctx, name)
}

func (s *ImportService) failJob(ctx context.Context, span trace.Span, jobID uuid.UUID, marketplace parser.Marketplace, reason string) {
	span.SetStatus(codes.Error, reason)

	var marketplacePtr *string
	if marketplace != "" {
		m := string(marketplace)
		marketplacePtr = &m
	}
	if err := s.repo.FinishImportJob(ctx, jobID, repository.JobStatusFailed, marketplacePtr, 0, 0, &reason); err != nil {
		s.logger.Warn("failed to record job failure", slog.String("jobID", jobID.String()), slog.Any("error", err))
	}
	s.recordMetrics(marketplace, "failed", nil, 0)
}

func (s *ImportService) archiveUpload(ctx context.Context, input ImportInput) {
	if s.store == nil {
		return
	}
	_, err := s.store.Upload(ctx, input.StoreID, input.FileName, contentTypeFor(input.FileName), bytes.NewReader(input.Data))
	if err != nil {
		s.logger.Warn("failed to archive upload", slog.String("fileName", input.FileName), slog.Any("error", err))
	}
}

func (s *ImportService) recordMetrics(marketplace parser.Marketplace, status string, stats *repository.InsertStats, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	label := string(marketplace)
	if label == "" {
		label = "unknown"
	}
	s.metrics.ImportsTotal.WithLabelValues(label, status).Inc()
	if stats != nil {
		s.metrics.OrdersImportedTotal.WithLabelValues(label).Add(float64(stats.Inserted))
		s.metrics.OrdersSkippedTotal.WithLabelValues(label).Add(float64(stats.Skipped))
	}
	if elapsed > 0 {
		s.metrics.ImportDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	}
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv", ".txt":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
