package repository

import (
	"context"
	"database/sql"
	"time"

	"alarmmate"
	"alarmmate/internal/repository/db"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*alarmmate.User, error)
}

// ScheduleRepo persists one DaySchedule row per school weekday.
type ScheduleRepo interface {
	Save(ctx context.Context, s alarmmate.DaySchedule) error
	Load(ctx context.Context, day alarmmate.Weekday) (alarmmate.DaySchedule, bool, error)
	LoadAll(ctx context.Context) (alarmmate.WeeklyAlarmSet, error)
}

// PendingRepo persists the single outstanding delivery registration.
// The delivery mechanism is its only writer; the row is how an elapsed fire
// survives a process restart.
type PendingRepo interface {
	Save(ctx context.Context, r Registration) error
	Load(ctx context.Context) (Registration, bool, error)
	MarkAcked(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Registration is the persisted delivery request plus its acknowledge state.
type Registration struct {
	ID     string
	FireAt time.Time
	Day    alarmmate.Weekday
	Acked  bool
}

type EventRepo interface {
	Append(ctx context.Context, e alarmmate.AlarmEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]alarmmate.AlarmEvent, error)
}

// SettingsRepo holds small key/value engine settings (proof game choice).
type SettingsRepo interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Repository struct {
	Schedule ScheduleRepo
	Pending  PendingRepo
	Events   EventRepo
	Settings SettingsRepo
	Auth     Authorization
}

func NewRepository(sqldb *sql.DB) *Repository {
	return &Repository{
		Schedule: NewScheduleSQLite(sqldb),
		Pending:  NewPendingSQLite(sqldb),
		Events:   NewEventSQLite(sqldb),
		Settings: NewSettingsSQLite(sqldb),
		Auth:     NewUserRepository(sqldb),
	}
}

// InitDB opens the SQLite file and ensures the schema exists.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}
