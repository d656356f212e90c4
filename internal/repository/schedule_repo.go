package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"alarmmate"
)

type ScheduleSQLite struct {
	db *sql.DB
}

func NewScheduleSQLite(db *sql.DB) *ScheduleSQLite {
	return &ScheduleSQLite{db: db}
}

var _ ScheduleRepo = (*ScheduleSQLite)(nil)

const (
	upsertDayScheduleSQL = `
		INSERT INTO day_schedules (day, first_class_hour, offset_hours, final_hour, final_minute, user_override, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			first_class_hour=excluded.first_class_hour,
			offset_hours=excluded.offset_hours,
			final_hour=excluded.final_hour,
			final_minute=excluded.final_minute,
			user_override=excluded.user_override,
			updated_at=excluded.updated_at
	`

	selectDayScheduleSQL = `
		SELECT day, first_class_hour, offset_hours, final_hour, final_minute, user_override, updated_at
		FROM day_schedules WHERE day=?
	`

	selectAllDaySchedulesSQL = `
		SELECT day, first_class_hour, offset_hours, final_hour, final_minute, user_override, updated_at
		FROM day_schedules
	`
)

// Save upserts the row for s.Day. UpdatedAt is persisted as UTC; a zero
// value is replaced with now.
func (r *ScheduleSQLite) Save(ctx context.Context, s alarmmate.DaySchedule) error {
	tsUTC := s.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	var firstClass sql.NullInt64
	if s.FirstClassHour != nil {
		firstClass = sql.NullInt64{Int64: int64(*s.FirstClassHour), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, upsertDayScheduleSQL,
		s.Day.String(),
		firstClass,
		s.AlarmOffsetHours,
		s.FinalAlarm.Hour,
		s.FinalAlarm.Minute,
		s.UserOverridden,
		tsUTC,
	)
	return err
}

// Load fetches one weekday's row. ok is false when the day was never saved.
func (r *ScheduleSQLite) Load(ctx context.Context, day alarmmate.Weekday) (alarmmate.DaySchedule, bool, error) {
	row := r.db.QueryRowContext(ctx, selectDayScheduleSQL, day.String())
	s, err := scanDaySchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return alarmmate.DaySchedule{}, false, nil
		}
		return alarmmate.DaySchedule{}, false, err
	}
	return s, true, nil
}

// LoadAll returns a fully populated WeeklyAlarmSet: days without a row
// self-heal to the default schedule.
func (r *ScheduleSQLite) LoadAll(ctx context.Context) (alarmmate.WeeklyAlarmSet, error) {
	rows, err := r.db.QueryContext(ctx, selectAllDaySchedulesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := alarmmate.DefaultWeeklyAlarmSet()
	for rows.Next() {
		s, err := scanDaySchedule(rows)
		if err != nil {
			return nil, err
		}
		set[s.Day] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDaySchedule(row rowScanner) (alarmmate.DaySchedule, error) {
	var (
		s          alarmmate.DaySchedule
		dayName    string
		firstClass sql.NullInt64
	)
	if err := row.Scan(
		&dayName,
		&firstClass,
		&s.AlarmOffsetHours,
		&s.FinalAlarm.Hour,
		&s.FinalAlarm.Minute,
		&s.UserOverridden,
		&s.UpdatedAt,
	); err != nil {
		return alarmmate.DaySchedule{}, err
	}

	day, err := alarmmate.ParseWeekday(dayName)
	if err != nil {
		return alarmmate.DaySchedule{}, err
	}
	s.Day = day
	if firstClass.Valid {
		h := int(firstClass.Int64)
		s.FirstClassHour = &h
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
