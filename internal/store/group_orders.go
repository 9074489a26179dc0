package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/order"
)

const createGroupOrder = `-- name: CreateGroupOrder :one
INSERT INTO group_orders (id, name, payment_mode, delivery_strategy, primary_payer_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING version
`

func (q *Queries) CreateGroupOrder(ctx context.Context, g *order.GroupOrder) error {
	row := q.db.QueryRow(ctx, createGroupOrder,
		g.ID, g.Name, string(g.PaymentMode), string(g.DeliveryStrategy), g.PrimaryPayerID, g.CreatedAt)
	if err := row.Scan(&g.Version); err != nil {
		return fmt.Errorf("create group order %s: %w", g.ID, err)
	}
	return nil
}

const getGroupOrder = `-- name: GetGroupOrder :one
SELECT id, name, payment_mode, delivery_strategy, primary_payer_id, created_at, version
FROM group_orders
WHERE id = $1
`

// LoadGroupOrder returns the group order header.
func (q *Queries) LoadGroupOrder(ctx context.Context, id uuid.UUID) (order.GroupOrder, error) {
	return scanGroupOrder(q.db.QueryRow(ctx, getGroupOrder, id), id)
}

const lockGroupOrder = `-- name: LockGroupOrder :one
SELECT id, name, payment_mode, delivery_strategy, primary_payer_id, created_at, version
FROM group_orders
WHERE id = $1
FOR NO KEY UPDATE
`

// LockGroupOrder loads the header and holds a row lock on it until the
// surrounding transaction ends, serializing writers of one group order.
func (q *Queries) LockGroupOrder(ctx context.Context, id uuid.UUID) (order.GroupOrder, error) {
	return scanGroupOrder(q.db.QueryRow(ctx, lockGroupOrder, id), id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroupOrder(row rowScanner, id uuid.UUID) (order.GroupOrder, error) {
	var g order.GroupOrder
	var mode, strategy string
	err := row.Scan(&g.ID, &g.Name, &mode, &strategy, &g.PrimaryPayerID, &g.CreatedAt, &g.Version)
	if err != nil {
		return order.GroupOrder{}, notFound(err, "group order "+id.String())
	}
	g.PaymentMode = enum.PaymentMode(mode)
	g.DeliveryStrategy = enum.DeliveryStrategy(strategy)
	return g, nil
}
