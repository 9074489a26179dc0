// Package store persists group orders and their escrow state in PostgreSQL.
//
// Every mutable row carries a version. Saves are conditional on the version
// that was loaded and fail with ErrConcurrentModification when another writer
// got there first.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

func toNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return n, nil
}

func toNumerics(ds ...decimal.Decimal) ([]pgtype.Numeric, error) {
	out := make([]pgtype.Numeric, len(ds))
	for i, d := range ds {
		n, err := toNumeric(d)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func toDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero, err
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected numeric value %T", val)
	}
	return decimal.NewFromString(s)
}

func toDecimals(ns ...pgtype.Numeric) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(ns))
	for i, n := range ns {
		d, err := toDecimal(n)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// notFound maps pgx.ErrNoRows onto ErrNotFound, naming what was looked up.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// checkVersion turns a zero-row conditional update into ErrConcurrentModification.
func checkVersion(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, ErrConcurrentModification)
	}
	return nil
}
