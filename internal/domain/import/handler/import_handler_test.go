package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendalink/orderhub/internal/domain/import/parser"
	"github.com/vendalink/orderhub/internal/domain/import/repository"
	"github.com/vendalink/orderhub/internal/domain/import/service"
)

type stubService struct {
	importResult *service.ImportResult
	importErr    error
	lastInput    service.ImportInput

	job    *repository.ImportJob
	jobErr error

	orders    []repository.StoredOrder
	ordersErr error

	store    *repository.Store
	storeErr error
}

func (s *stubService) ImportFile(ctx context.Context, input service.ImportInput) (*service.ImportResult, error) {
	s.lastInput = input
	if s.importErr != nil {
		return nil, s.importErr
	}
	return s.importResult, nil
}

func (s *stubService) GetJob(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	if s.jobErr != nil {
		return nil, s.jobErr
	}
	return s.job, nil
}

func (s *stubService) ListOrders(ctx context.Context, jobID uuid.UUID) ([]repository.StoredOrder, error) {
	if s.ordersErr != nil {
		return nil, s.ordersErr
	}
	return s.orders, nil
}

func (s *stubService) ResolveStore(ctx context.Context, name string) (*repository.Store, error) {
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	return s.store, nil
}

func testHandler(svc *stubService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImportHandler(svc, logger).Routes()
}

func multipartUpload(t *testing.T, filename string, contents []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(contents)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func TestUpload(t *testing.T) {
	csvBody := []byte("ID do pedido;Data;Valor Total\nBR-1;05/01/2024;100,00\n")

	t.Run("accepts a valid upload", func(t *testing.T) {
		jobID := uuid.New()
		storeID := uuid.New()
		svc := &stubService{importResult: &service.ImportResult{
			JobID:          jobID,
			Marketplace:    parser.MarketplaceShopee,
			Imported:       10,
			Skipped:        2,
			TotalProcessed: 12,
		}}

		body, contentType := multipartUpload(t, "pedidos.csv", csvBody, map[string]string{
			"store_id":         storeID.String(),
			"marketplace_hint": "shopee",
		})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp uploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, jobID.String(), resp.JobID)
		assert.Equal(t, "shopee", resp.Marketplace)
		assert.Equal(t, 10, resp.OrderCount)
		assert.Equal(t, 2, resp.Skipped)
		assert.Equal(t, 12, resp.TotalProcessed)

		assert.Equal(t, storeID, svc.lastInput.StoreID)
		assert.Equal(t, "pedidos.csv", svc.lastInput.FileName)
		assert.Equal(t, "shopee", svc.lastInput.Hint)
		assert.Equal(t, csvBody, svc.lastInput.Data)
	})

	t.Run("resolves store by name", func(t *testing.T) {
		storeID := uuid.New()
		svc := &stubService{
			store:        &repository.Store{ID: storeID, Name: "Minha Loja"},
			importResult: &service.ImportResult{JobID: uuid.New(), Marketplace: parser.MarketplaceMeli},
		}

		body, contentType := multipartUpload(t, "vendas.xlsx", []byte("fake"), map[string]string{
			"store_name": "Minha Loja",
		})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, storeID, svc.lastInput.StoreID)
	})

	t.Run("rejects unsupported extensions", func(t *testing.T) {
		svc := &stubService{}
		body, contentType := multipartUpload(t, "pedidos.pdf", []byte("%PDF"), map[string]string{
			"store_id": uuid.New().String(),
		})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unsupported file type")
	})

	t.Run("requires a store reference", func(t *testing.T) {
		svc := &stubService{}
		body, contentType := multipartUpload(t, "pedidos.csv", csvBody, nil)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "store_id or store_name")
	})

	t.Run("requires a file part", func(t *testing.T) {
		svc := &stubService{}
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("store_id", uuid.New().String()))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing file field")
	})

	t.Run("maps unknown stores to 404", func(t *testing.T) {
		svc := &stubService{importErr: service.ErrUnknownStore}
		body, contentType := multipartUpload(t, "pedidos.csv", csvBody, map[string]string{
			"store_id": uuid.New().String(),
		})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "store not found")
	})

	t.Run("maps detection failures to 422 with hints", func(t *testing.T) {
		svc := &stubService{importErr: &parser.NoMatchError{
			Header:   []string{"receit", "qty"},
			RowCount: 3,
			Hints:    []string{`column "receit" resembles known column "receita"`},
		}}
		body, contentType := multipartUpload(t, "pedidos.csv", csvBody, map[string]string{
			"store_id": uuid.New().String(),
		})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Hints, 1)
		assert.Contains(t, resp.Hints[0], "receita")
	})

	t.Run("maps other failures to 500", func(t *testing.T) {
		svc := &stubService{importErr: errors.New("connection lost")}
		body, contentType := multipartUpload(t, "pedidos.csv", csvBody, map[string]string{
			"store_id": uuid.New().String(),
		})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection lost")
	})
}

func TestGetJob(t *testing.T) {
	marketplace := "meli"
	job := &repository.ImportJob{
		ID:             uuid.New(),
		StoreID:        uuid.New(),
		FileName:       "pedidos.xlsx",
		Status:         repository.JobStatusSuccess,
		Marketplace:    &marketplace,
		OrdersImported: 42,
		OrdersSkipped:  3,
		CreatedAt:      time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 1, 15, 10, 0, 5, 0, time.UTC),
	}

	t.Run("returns the job", func(t *testing.T) {
		svc := &stubService{job: job}
		req := httptest.NewRequest(http.MethodGet, "/"+job.ID.String(), nil)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp jobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, job.ID.String(), resp.ID)
		assert.Equal(t, "success", resp.Status)
		require.NotNil(t, resp.Marketplace)
		assert.Equal(t, "meli", *resp.Marketplace)
		assert.Equal(t, 42, resp.OrdersImported)
	})

	t.Run("rejects malformed IDs", func(t *testing.T) {
		svc := &stubService{}
		req := httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 404 for unknown jobs", func(t *testing.T) {
		svc := &stubService{jobErr: errors.New("not found")}
		req := httptest.NewRequest(http.MethodGet, "/"+uuid.New().String(), nil)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListOrders(t *testing.T) {
	jobID := uuid.New()
	job := &repository.ImportJob{ID: jobID, Status: repository.JobStatusSuccess}
	orders := []repository.StoredOrder{
		{
			Marketplace:     "shopee",
			PlatformOrderID: "BR-1",
			OrderDate:       time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			SKU:             "SKU-1",
			Quantity:        1,
			Revenue:         100,
		},
	}

	t.Run("returns JSON by default", func(t *testing.T) {
		svc := &stubService{job: job, orders: orders}
		req := httptest.NewRequest(http.MethodGet, "/"+jobID.String()+"/orders", nil)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("exports CSV on demand", func(t *testing.T) {
		svc := &stubService{job: job, orders: orders}
		req := httptest.NewRequest(http.MethodGet, "/"+jobID.String()+"/orders?format=csv", nil)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[1], "shopee,BR-1")
	})

	t.Run("returns 404 for unknown jobs", func(t *testing.T) {
		svc := &stubService{jobErr: errors.New("not found")}
		req := httptest.NewRequest(http.MethodGet, "/"+uuid.New().String()+"/orders", nil)
		rec := httptest.NewRecorder()

		testHandler(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
