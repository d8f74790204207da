package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/pkg/errors"
)

type refundRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db *sql.DB, logger *zap.Logger) *refundRepository {
	return &refundRepository{
		db:     db,
		logger: logger,
	}
}

const refundColumns = `
	row_index, order_id, order_number, customer_name, phone, address,
	refund_method, status, refund_amount, line_items, extra_data,
	created_at, updated_at
`

func (r *refundRepository) ListAll(ctx context.Context) ([]*domain.RefundRecord, error) {
	query := `
		SELECT ` + refundColumns + `
		FROM refunds
		WHERE status <> ''
		ORDER BY row_index
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query refunds", zap.Error(err))
		return nil, &errors.ErrStoreUnavailable{Op: "list refunds", Err: err}
	}
	defer rows.Close()

	var records []*domain.RefundRecord
	for rows.Next() {
		record, err := scanRefund(rows)
		if err != nil {
			r.logger.Error("Failed to scan refund row", zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, &errors.ErrStoreUnavailable{Op: "list refunds", Err: err}
	}

	return records, nil
}

func (r *refundRepository) GetByRowIndex(ctx context.Context, rowIndex int) (*domain.RefundRecord, error) {
	query := `
		SELECT ` + refundColumns + `
		FROM refunds
		WHERE row_index = $1
	`

	record, err := scanRefund(r.db.QueryRowContext(ctx, query, rowIndex))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "refund", ID: strconv.Itoa(rowIndex)}
	}
	if err != nil {
		r.logger.Error("Failed to get refund", zap.Int("row_index", rowIndex), zap.Error(err))
		return nil, &errors.ErrStoreUnavailable{Op: "get refund", Err: err}
	}

	return record, nil
}

func (r *refundRepository) Create(ctx context.Context, record *domain.RefundRecord) error {
	query := `
		INSERT INTO refunds (
			order_id, order_number, customer_name, phone, address,
			refund_method, status, refund_amount, line_items, extra_data,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING row_index
	`

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	if record.ExtraData == nil {
		record.ExtraData = map[string]interface{}{}
	}

	lineItems, err := json.Marshal(record.LineItems)
	if err != nil {
		return &errors.ErrStoreUnavailable{Op: "create refund", Err: err}
	}
	extraData, err := json.Marshal(record.ExtraData)
	if err != nil {
		return &errors.ErrStoreUnavailable{Op: "create refund", Err: err}
	}

	err = r.db.QueryRowContext(ctx, query,
		record.OrderID,
		record.OrderNumber,
		record.CustomerName,
		record.Phone,
		record.Address,
		string(record.RefundMethod),
		string(record.Status),
		record.RefundAmount,
		lineItems,
		extraData,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.RowIndex)

	if err != nil {
		r.logger.Error("Failed to create refund", zap.Error(err))
		return &errors.ErrStoreUnavailable{Op: "create refund", Err: err}
	}

	return nil
}

func (r *refundRepository) MarkCompleted(ctx context.Context, rowIndex int, receiptURL *string, completedBy string) (*domain.RefundRecord, error) {
	// Status and completion metadata go in one statement; the JSONB merge
	// preserves whatever method-specific fields were written earlier.
	query := `
		UPDATE refunds
		SET status = $2,
		    extra_data = COALESCE(extra_data, '{}'::jsonb) || $3::jsonb,
		    updated_at = $4
		WHERE row_index = $1
		RETURNING ` + refundColumns

	now := time.Now()
	meta := map[string]interface{}{
		domain.ExtraCompleted:   true,
		domain.ExtraCompletedAt: now.Format(time.RFC3339),
		domain.ExtraCompletedBy: completedBy,
	}
	if receiptURL != nil {
		meta[domain.ExtraReceiptURL] = *receiptURL
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, &errors.ErrStoreUnavailable{Op: "mark refund completed", Err: err}
	}

	record, err := scanRefund(r.db.QueryRowContext(ctx, query,
		rowIndex,
		string(domain.RefundStatusCompleted),
		metaJSON,
		now,
	))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "refund", ID: strconv.Itoa(rowIndex)}
	}
	if err != nil {
		r.logger.Error("Failed to mark refund completed", zap.Int("row_index", rowIndex), zap.Error(err))
		return nil, &errors.ErrStoreUnavailable{Op: "mark refund completed", Err: err}
	}

	return record, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRefund(row rowScanner) (*domain.RefundRecord, error) {
	var record domain.RefundRecord
	var method, status string
	var lineItems, extraData []byte

	err := row.Scan(
		&record.RowIndex,
		&record.OrderID,
		&record.OrderNumber,
		&record.CustomerName,
		&record.Phone,
		&record.Address,
		&method,
		&status,
		&record.RefundAmount,
		&lineItems,
		&extraData,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.RefundMethod = domain.RefundMethod(method)
	record.Status = domain.RefundStatus(status)

	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &record.LineItems); err != nil {
			return nil, err
		}
	}
	if len(extraData) > 0 {
		if err := json.Unmarshal(extraData, &record.ExtraData); err != nil {
			return nil, err
		}
	}

	return &record, nil
}
