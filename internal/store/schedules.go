package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/enum"
)

const createSchedule = `-- name: CreateSchedule :one
INSERT INTO delivery_schedules (id, group_order_id, scheduled_date, item_ids, notes, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING version
`

func (q *Queries) CreateSchedule(ctx context.Context, s *delivery.Schedule) error {
	row := q.db.QueryRow(ctx, createSchedule,
		s.ID, s.GroupOrderID, s.ScheduledDate, s.ItemIDs, s.Notes, string(s.Status))
	if err := row.Scan(&s.Version); err != nil {
		return fmt.Errorf("create schedule %s: %w", s.ID, err)
	}
	return nil
}

const listSchedules = `-- name: ListSchedules :many
SELECT id, group_order_id, scheduled_date, item_ids, notes, status, version
FROM delivery_schedules
WHERE group_order_id = $1
ORDER BY created_at, id
`

// LoadSchedules returns the delivery schedules of a group order, oldest first.
func (q *Queries) LoadSchedules(ctx context.Context, groupOrderID uuid.UUID) ([]delivery.Schedule, error) {
	rows, err := q.db.Query(ctx, listSchedules, groupOrderID)
	if err != nil {
		return nil, fmt.Errorf("list schedules of %s: %w", groupOrderID, err)
	}
	defer rows.Close()

	var out []delivery.Schedule
	for rows.Next() {
		var (
			s      delivery.Schedule
			status string
		)
		if err := rows.Scan(&s.ID, &s.GroupOrderID, &s.ScheduledDate, &s.ItemIDs,
			&s.Notes, &status, &s.Version); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		s.Status = enum.ScheduleStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schedules of %s: %w", groupOrderID, err)
	}
	return out, nil
}

const updateSchedule = `-- name: UpdateSchedule :execresult
UPDATE delivery_schedules
SET status = $3, notes = $4, version = version + 1
WHERE id = $1 AND version = $2
`

// SaveSchedule writes the schedule's status and notes conditional on its
// loaded version and bumps the version in place.
func (q *Queries) SaveSchedule(ctx context.Context, s *delivery.Schedule) error {
	tag, err := q.db.Exec(ctx, updateSchedule, s.ID, s.Version, string(s.Status), s.Notes)
	if err != nil {
		return fmt.Errorf("save schedule %s: %w", s.ID, err)
	}
	if err := checkVersion(tag, "schedule "+s.ID.String()); err != nil {
		return err
	}
	s.Version++
	return nil
}
