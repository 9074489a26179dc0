package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/payment"
)

const createResponsibility = `-- name: CreateResponsibility :exec
INSERT INTO payment_responsibilities (group_order_id, payer_id, name, item_ids, due_date)
VALUES ($1, $2, $3, $4, $5)
`

func (q *Queries) CreateResponsibilities(ctx context.Context, groupOrderID uuid.UUID, payers []payment.Responsibility) error {
	for i, p := range payers {
		if _, err := q.db.Exec(ctx, createResponsibility,
			groupOrderID, p.PayerID, p.Name, p.ItemIDs, p.DueDate); err != nil {
			return fmt.Errorf("create payer[%d] %s: %w", i, p.PayerID, err)
		}
	}
	return nil
}

const listResponsibilities = `-- name: ListResponsibilities :many
SELECT payer_id, name, item_ids, due_date
FROM payment_responsibilities
WHERE group_order_id = $1
ORDER BY name, payer_id
`

// LoadResponsibilities returns the stored part of each payer's
// responsibility. Totals and status are left for the coordinator to derive.
func (q *Queries) LoadResponsibilities(ctx context.Context, groupOrderID uuid.UUID) ([]payment.Responsibility, error) {
	rows, err := q.db.Query(ctx, listResponsibilities, groupOrderID)
	if err != nil {
		return nil, fmt.Errorf("list payers of %s: %w", groupOrderID, err)
	}
	defer rows.Close()

	var out []payment.Responsibility
	for rows.Next() {
		var r payment.Responsibility
		if err := rows.Scan(&r.PayerID, &r.Name, &r.ItemIDs, &r.DueDate); err != nil {
			return nil, fmt.Errorf("scan payer: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payers of %s: %w", groupOrderID, err)
	}
	return out, nil
}

const insertPaymentRecord = `-- name: InsertPaymentRecord :exec
INSERT INTO payment_records (
    id, payment_id, group_order_id, item_id, payer_id, stage, amount, method, reference, recorded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// InsertPaymentRecords appends audit rows. Records are never updated.
func (q *Queries) InsertPaymentRecords(ctx context.Context, records []payment.Record) error {
	for i, r := range records {
		amount, err := toNumeric(r.Amount)
		if err != nil {
			return fmt.Errorf("insert payment record[%d] item %s: %w", i, r.ItemID, err)
		}
		if _, err := q.db.Exec(ctx, insertPaymentRecord,
			r.ID, r.PaymentID, r.GroupOrderID, r.ItemID, r.PayerID, string(r.Stage),
			amount, r.Method, r.Reference, r.RecordedAt,
		); err != nil {
			return fmt.Errorf("insert payment record[%d] item %s: %w", i, r.ItemID, err)
		}
	}
	return nil
}

const listPaymentRecords = `-- name: ListPaymentRecords :many
SELECT id, payment_id, group_order_id, item_id, payer_id, stage, amount, method, reference, recorded_at
FROM payment_records
WHERE group_order_id = $1
ORDER BY recorded_at, id
`

// ListPaymentRecords returns the payment audit trail of a group order, oldest first.
func (q *Queries) ListPaymentRecords(ctx context.Context, groupOrderID uuid.UUID) ([]payment.Record, error) {
	rows, err := q.db.Query(ctx, listPaymentRecords, groupOrderID)
	if err != nil {
		return nil, fmt.Errorf("list payments of %s: %w", groupOrderID, err)
	}
	defer rows.Close()

	var out []payment.Record
	for rows.Next() {
		var (
			r      payment.Record
			stage  string
			amount pgtype.Numeric
			at     time.Time
		)
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.GroupOrderID, &r.ItemID, &r.PayerID,
			&stage, &amount, &r.Method, &r.Reference, &at); err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		if r.Amount, err = toDecimal(amount); err != nil {
			return nil, fmt.Errorf("payment record %s: %w", r.ID, err)
		}
		r.Stage = enum.EscrowStage(stage)
		r.RecordedAt = at
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments of %s: %w", groupOrderID, err)
	}
	return out, nil
}
