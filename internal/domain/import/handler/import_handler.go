// Package handler exposes the import pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/vendalink/orderhub/internal/domain/import/exporter"
	"github.com/vendalink/orderhub/internal/domain/import/parser"
	"github.com/vendalink/orderhub/internal/domain/import/repository"
	"github.com/vendalink/orderhub/internal/domain/import/service"
)

// maxUploadBytes caps marketplace exports; real ones top out well under this.
const maxUploadBytes = 10 << 20

var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
	".txt":  true,
}

// ImportService is the surface the handler needs from the service layer.
type ImportService interface {
	ImportFile(ctx context.Context, input service.ImportInput) (*service.ImportResult, error)
	GetJob(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error)
	ListOrders(ctx context.Context, jobID uuid.UUID) ([]repository.StoredOrder, error)
	ResolveStore(ctx context.Context, name string) (*repository.Store, error)
}

// ImportHandler handles spreadsheet upload and job inspection requests.
type ImportHandler struct {
	service ImportService
	logger  *slog.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(svc ImportService, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "import_handler")),
	}
}

// Routes returns the import routes.
func (h *ImportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.Upload)
	r.Route("/{jobID}", func(r chi.Router) {
		r.Use(h.JobCtx)
		r.Get("/", h.GetJob)
		r.Get("/orders", h.ListOrders)
	})

	return r
}

type ctxKey string

const jobIDKey ctxKey = "jobID"

// JobCtx validates the job ID path parameter.
func (h *ImportHandler) JobCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			h.renderError(w, r, http.StatusBadRequest, "invalid job ID")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), jobIDKey, id)))
	})
}

type uploadResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	JobID          string `json:"jobId"`
	Marketplace    string `json:"marketplace"`
	OrderCount     int    `json:"orderCount"`
	Skipped        int    `json:"skipped"`
	TotalProcessed int    `json:"totalProcessed"`
}

type jobResponse struct {
	ID             string  `json:"id"`
	StoreID        string  `json:"storeId"`
	FileName       string  `json:"fileName"`
	Status         string  `json:"status"`
	Marketplace    *string `json:"marketplace"`
	OrdersImported int     `json:"ordersImported"`
	OrdersSkipped  int     `json:"ordersSkipped"`
	ErrorMessage   *string `json:"errorMessage,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

type errorResponse struct {
	Error string   `json:"error"`
	Hints []string `json:"hints,omitempty"`
}

// Upload handles POST /: a multipart upload with a "file" part, a store
// reference (store_id or store_name) and an optional marketplace_hint.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "upload too large or malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		h.renderError(w, r, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q, expected .xlsx, .xls, .csv or .txt", ext))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "failed to read upload")
		return
	}

	storeID, err := h.resolveStoreID(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.ImportFile(r.Context(), service.ImportInput{
		StoreID:  storeID,
		FileName: header.Filename,
		Data:     data,
		Hint:     r.FormValue("marketplace_hint"),
	})
	if err != nil {
		if errors.Is(err, service.ErrUnknownStore) {
			h.renderError(w, r, http.StatusNotFound, "store not found")
			return
		}
		var noMatch *parser.NoMatchError
		if errors.As(err, &noMatch) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, errorResponse{
				Error: noMatch.Error(),
				Hints: noMatch.Hints,
			})
			return
		}
		h.logger.Error("import failed", slog.String("fileName", header.Filename), slog.Any("error", err))
		h.renderError(w, r, http.StatusInternalServerError, "import failed")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, uploadResponse{
		Success:        true,
		Message:        fmt.Sprintf("imported %d orders from %s", result.Imported, result.Marketplace),
		JobID:          result.JobID.String(),
		Marketplace:    string(result.Marketplace),
		OrderCount:     result.Imported,
		Skipped:        result.Skipped,
		TotalProcessed: result.TotalProcessed,
	})
}

// GetJob handles GET /{jobID}.
func (h *ImportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(jobIDKey).(uuid.UUID)

	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		h.renderError(w, r, http.StatusNotFound, "job not found")
		return
	}

	render.JSON(w, r, jobResponse{
		ID:             job.ID.String(),
		StoreID:        job.StoreID.String(),
		FileName:       job.FileName,
		Status:         string(job.Status),
		Marketplace:    job.Marketplace,
		OrdersImported: job.OrdersImported,
		OrdersSkipped:  job.OrdersSkipped,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// ListOrders handles GET /{jobID}/orders. With ?format=csv the orders come
// back as a CSV attachment instead of JSON.
func (h *ImportHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(jobIDKey).(uuid.UUID)

	if _, err := h.service.GetJob(r.Context(), id); err != nil {
		h.renderError(w, r, http.StatusNotFound, "job not found")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list orders", slog.String("jobID", id.String()), slog.Any("error", err))
		h.renderError(w, r, http.StatusInternalServerError, "failed to list orders")
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "orders-"+id.String()+".csv"))
		if err := exporter.WriteCSV(w, orders); err != nil {
			h.logger.Error("failed to stream orders CSV", slog.String("jobID", id.String()), slog.Any("error", err))
		}
		return
	}

	render.JSON(w, r, map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

func (h *ImportHandler) resolveStoreID(r *http.Request) (uuid.UUID, error) {
	if raw := r.FormValue("store_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid store_id %q", raw)
		}
		return id, nil
	}

	name := strings.TrimSpace(r.FormValue("store_name"))
	if name == "" {
		return uuid.Nil, errors.New("store_id or store_name is required")
	}
	store, err := h.service.ResolveStore(r.Context(), name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve store %q", name)
	}
	return store.ID, nil
}

func (h *ImportHandler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: message})
}
