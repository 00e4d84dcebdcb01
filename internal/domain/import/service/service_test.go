package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendalink/orderhub/internal/domain/import/parser"
	"github.com/vendalink/orderhub/internal/domain/import/repository"
	"github.com/vendalink/orderhub/pkg/metrics"
)

type mockRepo struct {
	stores map[uuid.UUID]*repository.Store

	createdJob    *repository.ImportJob
	processingIDs []uuid.UUID

	insertStats *repository.InsertStats
	insertErr   error
	inserted    []parser.NormalizedOrder

	finishedStatus      repository.JobStatus
	finishedMarketplace *string
	finishedImported    int
	finishedSkipped     int
	finishedErrMsg      *string
}

func (m *mockRepo) ResolveStore(ctx context.Context, name string) (*repository.Store, error) {
	return &repository.Store{ID: uuid.New(), Name: name}, nil
}

func (m *mockRepo) GetStore(ctx context.Context, id uuid.UUID) (*repository.Store, error) {
	store, ok := m.stores[id]
	if !ok {
		return nil, errors.New("store not found")
	}
	return store, nil
}

func (m *mockRepo) CreateImportJob(ctx context.Context, job *repository.ImportJob) error {
	job.ID = uuid.New()
	job.Status = repository.JobStatusPending
	m.createdJob = job
	return nil
}

func (m *mockRepo) MarkJobProcessing(ctx context.Context, id uuid.UUID) error {
	m.processingIDs = append(m.processingIDs, id)
	return nil
}

func (m *mockRepo) FinishImportJob(ctx context.Context, id uuid.UUID, status repository.JobStatus, marketplace *string, imported, skipped int, errMsg *string) error {
	m.finishedStatus = status
	m.finishedMarketplace = marketplace
	m.finishedImported = imported
	m.finishedSkipped = skipped
	m.finishedErrMsg = errMsg
	return nil
}

func (m *mockRepo) GetImportJob(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	if m.createdJob != nil && m.createdJob.ID == id {
		return m.createdJob, nil
	}
	return nil, errors.New("job not found")
}

func (m *mockRepo) FailStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (m *mockRepo) BulkInsertOrders(ctx context.Context, storeID, jobID uuid.UUID, marketplace parser.Marketplace, orders []parser.NormalizedOrder) (*repository.InsertStats, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.inserted = orders
	if m.insertStats != nil {
		return m.insertStats, nil
	}
	return &repository.InsertStats{Inserted: len(orders)}, nil
}

func (m *mockRepo) ListOrdersByJob(ctx context.Context, jobID uuid.UUID) ([]repository.StoredOrder, error) {
	return nil, nil
}

type stubDetector struct {
	result *parser.Result
	err    error
	hint   string
}

func (d *stubDetector) Detect(rows [][]any, hint string) (*parser.Result, error) {
	d.hint = hint
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func knownStore(repo *mockRepo) uuid.UUID {
	id := uuid.New()
	repo.stores = map[uuid.UUID]*repository.Store{
		id: {ID: id, Name: "Minha Loja"},
	}
	return id
}

var csvUpload = []byte("ID do pedido;Data;Valor Total\nBR-1;05/01/2024;100,00\n")

func TestImportFile(t *testing.T) {
	order := parser.NormalizedOrder{PlatformOrderID: "BR-1", Revenue: 100}

	t.Run("runs the full pipeline", func(t *testing.T) {
		repo := &mockRepo{insertStats: &repository.InsertStats{Inserted: 2, Skipped: 1}}
		storeID := knownStore(repo)
		detector := &stubDetector{result: &parser.Result{
			Marketplace: parser.MarketplaceShopee,
			Orders:      []parser.NormalizedOrder{order},
		}}

		svc := NewImportService(repo, detector, testLogger())
		result, err := svc.ImportFile(context.Background(), ImportInput{
			StoreID:  storeID,
			FileName: "pedidos.csv",
			Data:     csvUpload,
			Hint:     "shopee",
		})
		require.NoError(t, err)

		assert.Equal(t, parser.MarketplaceShopee, result.Marketplace)
		assert.Equal(t, 2, result.Imported)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 3, result.TotalProcessed)

		require.NotNil(t, repo.createdJob)
		assert.Equal(t, result.JobID, repo.createdJob.ID)
		assert.Equal(t, []uuid.UUID{repo.createdJob.ID}, repo.processingIDs)
		assert.Equal(t, "shopee", detector.hint)

		assert.Equal(t, repository.JobStatusSuccess, repo.finishedStatus)
		require.NotNil(t, repo.finishedMarketplace)
		assert.Equal(t, "shopee", *repo.finishedMarketplace)
		assert.Equal(t, 2, repo.finishedImported)
		assert.Equal(t, 1, repo.finishedSkipped)
		assert.Nil(t, repo.finishedErrMsg)
	})

	t.Run("detection failure marks the job failed", func(t *testing.T) {
		repo := &mockRepo{}
		storeID := knownStore(repo)
		noMatch := &parser.NoMatchError{RowCount: 3, Hints: []string{"column \"receit\" resembles known column \"receita\""}}
		detector := &stubDetector{err: noMatch}

		svc := NewImportService(repo, detector, testLogger())
		_, err := svc.ImportFile(context.Background(), ImportInput{
			StoreID:  storeID,
			FileName: "pedidos.csv",
			Data:     csvUpload,
		})
		require.Error(t, err)

		var got *parser.NoMatchError
		assert.ErrorAs(t, err, &got)
		assert.Equal(t, repository.JobStatusFailed, repo.finishedStatus)
		require.NotNil(t, repo.finishedErrMsg)
		assert.Contains(t, *repo.finishedErrMsg, "no marketplace format matched")
	})

	t.Run("unreadable upload marks the job failed", func(t *testing.T) {
		repo := &mockRepo{}
		storeID := knownStore(repo)
		svc := NewImportService(repo, &stubDetector{}, testLogger())

		_, err := svc.ImportFile(context.Background(), ImportInput{
			StoreID:  storeID,
			FileName: "pedidos.xlsx",
			Data:     []byte("not a workbook"),
		})
		require.Error(t, err)
		assert.Equal(t, repository.JobStatusFailed, repo.finishedStatus)
		require.NotNil(t, repo.finishedErrMsg)
		assert.Contains(t, *repo.finishedErrMsg, "unreadable file")
	})

	t.Run("persistence failure marks the job failed with marketplace", func(t *testing.T) {
		repo := &mockRepo{insertErr: errors.New("connection lost")}
		storeID := knownStore(repo)
		detector := &stubDetector{result: &parser.Result{
			Marketplace: parser.MarketplaceMeli,
			Orders:      []parser.NormalizedOrder{order},
		}}

		svc := NewImportService(repo, detector, testLogger())
		_, err := svc.ImportFile(context.Background(), ImportInput{
			StoreID:  storeID,
			FileName: "pedidos.csv",
			Data:     csvUpload,
		})
		require.Error(t, err)
		assert.Equal(t, repository.JobStatusFailed, repo.finishedStatus)
		require.NotNil(t, repo.finishedMarketplace)
		assert.Equal(t, "meli", *repo.finishedMarketplace)
	})

	t.Run("unknown store fails before creating a job", func(t *testing.T) {
		repo := &mockRepo{}
		svc := NewImportService(repo, &stubDetector{}, testLogger())

		_, err := svc.ImportFile(context.Background(), ImportInput{
			StoreID:  uuid.New(),
			FileName: "pedidos.csv",
			Data:     csvUpload,
		})
		require.ErrorIs(t, err, ErrUnknownStore)
		assert.Nil(t, repo.createdJob)
	})

	t.Run("records metrics per marketplace", func(t *testing.T) {
		repo := &mockRepo{insertStats: &repository.InsertStats{Inserted: 5, Skipped: 2}}
		storeID := knownStore(repo)
		detector := &stubDetector{result: &parser.Result{
			Marketplace: parser.MarketplaceTikTok,
			Orders:      []parser.NormalizedOrder{order},
		}}
		m := metrics.New(prometheus.NewRegistry())

		svc := NewImportService(repo, detector, testLogger()).WithMetrics(m)
		_, err := svc.ImportFile(context.Background(), ImportInput{
			StoreID:  storeID,
			FileName: "pedidos.csv",
			Data:     csvUpload,
		})
		require.NoError(t, err)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportsTotal.WithLabelValues("tiktok", "success")))
		assert.Equal(t, 5.0, testutil.ToFloat64(m.OrdersImportedTotal.WithLabelValues("tiktok")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersSkippedTotal.WithLabelValues("tiktok")))
	})
}
