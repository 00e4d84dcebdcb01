package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vendalink/orderhub/internal/domain/import/parser"
)

// PgxPool is the subset of pgxpool.Pool the repository needs. Declared as an
// interface so tests can substitute a mock pool.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresImportRepository implements ImportRepository using PostgreSQL.
type PostgresImportRepository struct {
	pool PgxPool
}

// NewPostgresImportRepository creates a new PostgreSQL import repository.
func NewPostgresImportRepository(pool PgxPool) *PostgresImportRepository {
	return &PostgresImportRepository{pool: pool}
}

// ResolveStore returns the store with the given name, creating it if absent.
func (r *PostgresImportRepository) ResolveStore(ctx context.Context, name string) (*Store, error) {
	query := `
		INSERT INTO stores (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at`

	store := &Store{}
	err := r.pool.QueryRow(ctx, query, uuid.New(), name).Scan(&store.ID, &store.Name, &store.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store: %w", err)
	}
	return store, nil
}

// GetStore retrieves a store by ID.
func (r *PostgresImportRepository) GetStore(ctx context.Context, id uuid.UUID) (*Store, error) {
	query := `SELECT id, name, created_at FROM stores WHERE id = $1`

	store := &Store{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&store.ID, &store.Name, &store.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return store, nil
}

// CreateImportJob inserts a new job in pending state.
func (r *PostgresImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	query := `
		INSERT INTO import_jobs (id, store_id, file_name, size_bytes, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}

	err := r.pool.QueryRow(ctx, query,
		job.ID,
		job.StoreID,
		job.FileName,
		job.SizeBytes,
		job.Status,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// MarkJobProcessing transitions a pending job to processing.
func (r *PostgresImportRepository) MarkJobProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE import_jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`

	result, err := r.pool.Exec(ctx, query, id, JobStatusProcessing, JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FinishImportJob records the terminal state of a job.
func (r *PostgresImportRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status JobStatus, marketplace *string, imported, skipped int, errMsg *string) error {
	query := `
		UPDATE import_jobs
		SET status = $2, marketplace = $3, orders_imported = $4, orders_skipped = $5,
			error_message = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status, marketplace, imported, skipped, errMsg)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetImportJob retrieves a job by ID.
func (r *PostgresImportRepository) GetImportJob(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	query := `
		SELECT id, store_id, file_name, size_bytes, status, marketplace,
			orders_imported, orders_skipped, error_message, created_at, updated_at
		FROM import_jobs
		WHERE id = $1`

	job := &ImportJob{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.StoreID,
		&job.FileName,
		&job.SizeBytes,
		&job.Status,
		&job.Marketplace,
		&job.OrdersImported,
		&job.OrdersSkipped,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	return job, nil
}

// FailStaleJobs marks processing jobs older than the cutoff as failed. Covers
// crashes between MarkJobProcessing and FinishImportJob.
func (r *PostgresImportRepository) FailStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE import_jobs
		SET status = $1, error_message = 'import timed out', updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - $3::interval`

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	result, err := r.pool.Exec(ctx, query, JobStatusFailed, JobStatusProcessing, interval)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// BulkInsertOrders persists normalized orders inside one transaction. An order
// already present for the same store, platform order id and calendar day is a
// duplicate upload and counts as skipped, not an error.
func (r *PostgresImportRepository) BulkInsertOrders(ctx context.Context, storeID, jobID uuid.UUID, marketplace parser.Marketplace, orders []parser.NormalizedOrder) (*InsertStats, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stats := &InsertStats{}
	for _, o := range orders {
		orderID, inserted, err := insertOrder(ctx, tx, storeID, jobID, marketplace, o)
		if err != nil {
			return nil, err
		}
		if !inserted {
			stats.Skipped++
			continue
		}
		if err := insertOrderItem(ctx, tx, orderID, o); err != nil {
			return nil, err
		}
		if err := insertOrderFinancials(ctx, tx, orderID, o); err != nil {
			return nil, err
		}
		stats.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit orders: %w", err)
	}
	return stats, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, storeID, jobID uuid.UUID, marketplace parser.Marketplace, o parser.NormalizedOrder) (uuid.UUID, bool, error) {
	query := `
		INSERT INTO orders (id, store_id, import_job_id, marketplace, platform_order_id,
			external_order_id, platform_name, order_date, settlement_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (store_id, platform_order_id, order_day) DO NOTHING
		RETURNING id`

	id := uuid.New()
	var returned uuid.UUID
	err := tx.QueryRow(ctx, query,
		id,
		storeID,
		jobID,
		string(marketplace),
		o.PlatformOrderID,
		o.ExternalOrderID,
		o.PlatformName,
		o.OrderDate,
		o.SettlementDate,
	).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to insert order %s: %w", o.PlatformOrderID, err)
	}
	return returned, true, nil
}

func insertOrderItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, o parser.NormalizedOrder) error {
	query := `
		INSERT INTO order_items (id, order_id, sku, quantity)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, uuid.New(), orderID, o.SKU, o.Quantity)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

func insertOrderFinancials(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, o parser.NormalizedOrder) error {
	query := `
		INSERT INTO order_financials (id, order_id, order_value, revenue, product_sales,
			shipping_fee_buyer, platform_discount, commissions, transaction_fee, shipping_fee,
			other_platform_fees, total_fees, fees, refunds, product_cost, profit, profit_margin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := tx.Exec(ctx, query,
		uuid.New(),
		orderID,
		o.OrderValue,
		o.Revenue,
		o.ProductSales,
		o.ShippingFeeBuyer,
		o.PlatformDiscount,
		o.Commissions,
		o.TransactionFee,
		o.ShippingFee,
		o.OtherPlatformFees,
		o.TotalFees,
		o.Fees,
		o.Refunds,
		o.ProductCost,
		o.Profit,
		o.ProfitMargin,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order financials: %w", err)
	}
	return nil
}

// ListOrdersByJob returns the orders persisted by one import job, joined with
// item and financial data, in order-date order.
func (r *PostgresImportRepository) ListOrdersByJob(ctx context.Context, jobID uuid.UUID) ([]StoredOrder, error) {
	query := `
		SELECT o.id, o.store_id, o.import_job_id, o.marketplace, o.platform_order_id,
			o.external_order_id, o.order_date, o.settlement_date,
			i.sku, i.quantity,
			f.order_value, f.revenue, f.commissions, f.fees, f.refunds, f.product_cost,
			f.profit, f.profit_margin,
			o.created_at
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		JOIN order_financials f ON f.order_id = o.id
		WHERE o.import_job_id = $1
		ORDER BY o.order_date, o.platform_order_id`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []StoredOrder
	for rows.Next() {
		var o StoredOrder
		err := rows.Scan(
			&o.ID,
			&o.StoreID,
			&o.ImportJobID,
			&o.Marketplace,
			&o.PlatformOrderID,
			&o.ExternalOrderID,
			&o.OrderDate,
			&o.SettlementDate,
			&o.SKU,
			&o.Quantity,
			&o.OrderValue,
			&o.Revenue,
			&o.Commissions,
			&o.Fees,
			&o.Refunds,
			&o.ProductCost,
			&o.Profit,
			&o.ProfitMargin,
			&o.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
