package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
)

const ledgerColumns = `l.item_id, l.total, l.deposit_paid, l.fitting_paid, l.final_paid,
       l.stage, l.disputed, l.disputed_by, l.history, l.version`

const createLedger = `-- name: CreateLedger :one
INSERT INTO escrow_ledgers (
    item_id, total, deposit_paid, fitting_paid, final_paid, stage, disputed, disputed_by, history
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING version
`

func (q *Queries) CreateLedgers(ctx context.Context, ledgers []*escrow.Ledger) error {
	for i, l := range ledgers {
		history, err := json.Marshal(historyOrEmpty(l.History))
		if err != nil {
			return fmt.Errorf("ledger %s: encode history: %w", l.ItemID, err)
		}
		amounts, err := toNumerics(l.Total, l.DepositPaid, l.FittingPaid, l.FinalPaid)
		if err != nil {
			return fmt.Errorf("create ledger[%d] %s: %w", i, l.ItemID, err)
		}
		row := q.db.QueryRow(ctx, createLedger,
			l.ItemID, amounts[0], amounts[1], amounts[2], amounts[3],
			string(l.Stage), l.Disputed, l.DisputedBy, history,
		)
		if err := row.Scan(&l.Version); err != nil {
			return fmt.Errorf("create ledger[%d] %s: %w", i, l.ItemID, err)
		}
	}
	return nil
}

const getLedger = `-- name: GetLedger :one
SELECT ` + ledgerColumns + `
FROM escrow_ledgers l
WHERE l.item_id = $1
`

// LoadLedger returns the escrow ledger of one item.
func (q *Queries) LoadLedger(ctx context.Context, itemID uuid.UUID) (*escrow.Ledger, error) {
	l, err := scanLedger(q.db.QueryRow(ctx, getLedger, itemID))
	if err != nil {
		return nil, notFound(err, "ledger "+itemID.String())
	}
	return l, nil
}

const listLedgers = `-- name: ListLedgers :many
SELECT ` + ledgerColumns + `
FROM escrow_ledgers l
JOIN order_items i ON i.id = l.item_id
WHERE i.group_order_id = $1
ORDER BY i.delivery_priority
`

// LoadLedgers returns every ledger of a group order, ordered like its items.
func (q *Queries) LoadLedgers(ctx context.Context, groupOrderID uuid.UUID) ([]*escrow.Ledger, error) {
	rows, err := q.db.Query(ctx, listLedgers, groupOrderID)
	if err != nil {
		return nil, fmt.Errorf("list ledgers of %s: %w", groupOrderID, err)
	}
	defer rows.Close()

	var out []*escrow.Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledgers of %s: %w", groupOrderID, err)
	}
	return out, nil
}

func scanLedger(row rowScanner) (*escrow.Ledger, error) {
	var (
		l                                  escrow.Ledger
		total, deposit, fitting, finalPaid pgtype.Numeric
		stage                              string
		history                            []byte
	)
	if err := row.Scan(&l.ItemID, &total, &deposit, &fitting, &finalPaid,
		&stage, &l.Disputed, &l.DisputedBy, &history, &l.Version); err != nil {
		return nil, err
	}
	amounts, err := toDecimals(total, deposit, fitting, finalPaid)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", l.ItemID, err)
	}
	l.Total, l.DepositPaid, l.FittingPaid, l.FinalPaid = amounts[0], amounts[1], amounts[2], amounts[3]
	l.Stage = enum.EscrowStage(stage)
	if err := json.Unmarshal(history, &l.History); err != nil {
		return nil, fmt.Errorf("ledger %s: decode history: %w", l.ItemID, err)
	}
	return &l, nil
}

const updateLedger = `-- name: UpdateLedger :execresult
UPDATE escrow_ledgers
SET deposit_paid = $3, fitting_paid = $4, final_paid = $5, stage = $6,
    disputed = $7, disputed_by = $8, history = $9, version = version + 1
WHERE item_id = $1 AND version = $2
`

// SaveLedgers writes every ledger conditional on its loaded version and bumps
// the version in place. The caller's transaction makes the batch atomic.
func (q *Queries) SaveLedgers(ctx context.Context, ledgers []*escrow.Ledger) error {
	for _, l := range ledgers {
		history, err := json.Marshal(historyOrEmpty(l.History))
		if err != nil {
			return fmt.Errorf("ledger %s: encode history: %w", l.ItemID, err)
		}
		paid, err := toNumerics(l.DepositPaid, l.FittingPaid, l.FinalPaid)
		if err != nil {
			return fmt.Errorf("save ledger %s: %w", l.ItemID, err)
		}
		tag, err := q.db.Exec(ctx, updateLedger,
			l.ItemID, l.Version,
			paid[0], paid[1], paid[2],
			string(l.Stage), l.Disputed, l.DisputedBy, history,
		)
		if err != nil {
			return fmt.Errorf("save ledger %s: %w", l.ItemID, err)
		}
		if err := checkVersion(tag, "ledger "+l.ItemID.String()); err != nil {
			return err
		}
		l.Version++
	}
	return nil
}

func historyOrEmpty(h []escrow.Transition) []escrow.Transition {
	if h == nil {
		return []escrow.Transition{}
	}
	return h
}
