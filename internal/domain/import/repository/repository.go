// Package repository provides database operations for marketplace order imports.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vendalink/orderhub/internal/domain/import/parser"
)

// JobStatus represents the lifecycle state of an import job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// Store is a seller storefront orders are attributed to.
type Store struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ImportJob tracks one uploaded spreadsheet through detection and persistence.
type ImportJob struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	FileName       string
	SizeBytes      int64
	Status         JobStatus
	Marketplace    *string
	OrdersImported int
	OrdersSkipped  int
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InsertStats reports the outcome of a bulk order insert.
type InsertStats struct {
	Inserted int
	Skipped  int
}

// ImportRepository defines the persistence interface for order imports.
type ImportRepository interface {
	// Store management
	ResolveStore(ctx context.Context, name string) (*Store, error)
	GetStore(ctx context.Context, id uuid.UUID) (*Store, error)

	// Job lifecycle
	CreateImportJob(ctx context.Context, job *ImportJob) error
	MarkJobProcessing(ctx context.Context, id uuid.UUID) error
	FinishImportJob(ctx context.Context, id uuid.UUID, status JobStatus, marketplace *string, imported, skipped int, errMsg *string) error
	GetImportJob(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	FailStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error)

	// Orders
	BulkInsertOrders(ctx context.Context, storeID, jobID uuid.UUID, marketplace parser.Marketplace, orders []parser.NormalizedOrder) (*InsertStats, error)
	ListOrdersByJob(ctx context.Context, jobID uuid.UUID) ([]StoredOrder, error)
}

// StoredOrder is an order row joined with its item and financial data.
type StoredOrder struct {
	ID              uuid.UUID
	StoreID         uuid.UUID
	ImportJobID     uuid.UUID
	Marketplace     string
	PlatformOrderID string
	ExternalOrderID string
	OrderDate       time.Time
	SettlementDate  *time.Time
	SKU             string
	Quantity        int
	OrderValue      float64
	Revenue         float64
	Commissions     float64
	Fees            float64
	Refunds         float64
	ProductCost     float64
	Profit          *float64
	ProfitMargin    *float64
	CreatedAt       time.Time
}
