package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/order"
)

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    id, group_order_id, garment_type, base_amount, discount_amount, final_amount,
    delivery_priority, status, estimated_delivery
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING version
`

func (q *Queries) CreateOrderItems(ctx context.Context, items []order.Item) error {
	for i := range items {
		it := &items[i]
		amounts, err := toNumerics(it.BaseAmount, it.DiscountAmount, it.FinalAmount)
		if err != nil {
			return fmt.Errorf("create item[%d] %s: %w", i, it.ID, err)
		}
		row := q.db.QueryRow(ctx, createOrderItem,
			it.ID, it.GroupOrderID, it.GarmentType,
			amounts[0], amounts[1], amounts[2],
			it.DeliveryPriority, string(it.Status), it.EstimatedDelivery,
		)
		if err := row.Scan(&it.Version); err != nil {
			return fmt.Errorf("create item[%d] %s: %w", i, it.ID, err)
		}
	}
	return nil
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, group_order_id, garment_type, base_amount, discount_amount, final_amount,
       delivery_priority, status, estimated_delivery, actual_delivery, version
FROM order_items
WHERE group_order_id = $1
ORDER BY delivery_priority
`

// LoadOrderItems returns the items of a group order by delivery priority.
func (q *Queries) LoadOrderItems(ctx context.Context, groupOrderID uuid.UUID) ([]order.Item, error) {
	rows, err := q.db.Query(ctx, listOrderItems, groupOrderID)
	if err != nil {
		return nil, fmt.Errorf("list items of %s: %w", groupOrderID, err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var (
			it                   order.Item
			status               string
			base, disc, finalAmt pgtype.Numeric
		)
		if err := rows.Scan(
			&it.ID, &it.GroupOrderID, &it.GarmentType, &base, &disc, &finalAmt,
			&it.DeliveryPriority, &status, &it.EstimatedDelivery, &it.ActualDelivery, &it.Version,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		amounts, err := toDecimals(base, disc, finalAmt)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
		it.BaseAmount, it.DiscountAmount, it.FinalAmount = amounts[0], amounts[1], amounts[2]
		it.Status = enum.ItemStatus(status)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items of %s: %w", groupOrderID, err)
	}
	return items, nil
}

const updateOrderItem = `-- name: UpdateOrderItem :execresult
UPDATE order_items
SET status = $3, estimated_delivery = $4, actual_delivery = $5, version = version + 1
WHERE id = $1 AND version = $2
`

// SaveOrderItems writes status and delivery dates of each item, conditional
// on its loaded version. Versions are bumped in place on success.
func (q *Queries) SaveOrderItems(ctx context.Context, items []order.Item) error {
	for i := range items {
		it := &items[i]
		tag, err := q.db.Exec(ctx, updateOrderItem,
			it.ID, it.Version, string(it.Status), it.EstimatedDelivery, it.ActualDelivery)
		if err != nil {
			return fmt.Errorf("save item %s: %w", it.ID, err)
		}
		if err := checkVersion(tag, "item "+it.ID.String()); err != nil {
			return err
		}
		it.Version++
	}
	return nil
}
