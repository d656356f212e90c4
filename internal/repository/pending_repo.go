package repository

import (
	"context"
	"database/sql"
	"errors"

	"alarmmate"
)

type PendingSQLite struct {
	db *sql.DB
}

func NewPendingSQLite(db *sql.DB) *PendingSQLite {
	return &PendingSQLite{db: db}
}

var _ PendingRepo = (*PendingSQLite)(nil)

const (
	pendingAlarmRowID = 1

	upsertPendingSQL = `
		INSERT INTO pending_alarm (row_id, reg_id, fire_at, day, acked)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(row_id) DO UPDATE SET
			reg_id=excluded.reg_id,
			fire_at=excluded.fire_at,
			day=excluded.day,
			acked=excluded.acked
	`

	selectPendingSQL = `
		SELECT reg_id, fire_at, day, acked FROM pending_alarm WHERE row_id=?
	`

	ackPendingSQL = `UPDATE pending_alarm SET acked=1 WHERE row_id=? AND reg_id=?`

	deletePendingSQL = `DELETE FROM pending_alarm WHERE row_id=?`
)

// Save replaces the single registration row (row_id always 1).
func (r *PendingSQLite) Save(ctx context.Context, reg Registration) error {
	_, err := r.db.ExecContext(ctx, upsertPendingSQL,
		pendingAlarmRowID,
		reg.ID,
		reg.FireAt.UTC(),
		reg.Day.String(),
		reg.Acked,
	)
	return err
}

// Load fetches the registration row. ok is false when none is stored.
func (r *PendingSQLite) Load(ctx context.Context) (Registration, bool, error) {
	row := r.db.QueryRowContext(ctx, selectPendingSQL, pendingAlarmRowID)

	var (
		reg     Registration
		dayName string
	)
	if err := row.Scan(&reg.ID, &reg.FireAt, &dayName, &reg.Acked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, false, nil
		}
		return Registration{}, false, err
	}

	day, err := alarmmate.ParseWeekday(dayName)
	if err != nil {
		return Registration{}, false, err
	}
	reg.Day = day
	reg.FireAt = reg.FireAt.UTC()
	return reg, true, nil
}

// MarkAcked flags the stored registration as acknowledged. A mismatched or
// missing id is a no-op.
func (r *PendingSQLite) MarkAcked(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, ackPendingSQL, pendingAlarmRowID, id)
	return err
}

// Clear removes the registration row without error if none exists.
func (r *PendingSQLite) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, deletePendingSQL, pendingAlarmRowID)
	return err
}
