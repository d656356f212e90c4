package service

import (
	"context"
	"time"

	"alarmmate"
	"alarmmate/internal/delivery"
	"alarmmate/internal/logger"
	"alarmmate/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Schedule owns the weekly alarm set. All writes re-arm the scheduler.
type Schedule interface {
	GetWeekly(ctx context.Context) (alarmmate.WeeklyAlarmSet, error)
	Get(ctx context.Context, day alarmmate.Weekday) (alarmmate.DaySchedule, error)
	SetAlarmForDay(ctx context.Context, day alarmmate.Weekday, t alarmmate.TimeOfDay) error
	ApplyDetectionResult(ctx context.Context, dets []alarmmate.DetectedSlot, frameW, frameH float64) (map[alarmmate.Weekday]*int, error)
	TodayFireTime(ctx context.Context, now time.Time) (alarmmate.TimeOfDay, bool, error)
}

// Scheduler computes and registers the single next fire instant.
type Scheduler interface {
	Recompute(ctx context.Context) (*alarmmate.PendingAlarm, error)
	Rearm(ctx context.Context, resolvedAt time.Time) (*alarmmate.PendingAlarm, error)
	Cancel(ctx context.Context)
	Pending() *alarmmate.PendingAlarm
	ScheduleTest(ctx context.Context, in time.Duration) (*alarmmate.PendingAlarm, error)
}

// Gate drives fire/acknowledge/dismiss. Run consumes the delivery channel
// until ctx is canceled.
type Gate interface {
	Run(ctx context.Context)
	Recover(ctx context.Context) error
	State() GateSnapshot
	OpenProof(ctx context.Context) (GateSnapshot, error)
	SubmitInput(ctx context.Context, in ProofInput) (GateSnapshot, error)
	ReportSuccess(ctx context.Context) error
	Subscribe() (<-chan GateNotice, func())
	SelectedGame(ctx context.Context) (string, error)
	SelectGame(ctx context.Context, tag string) error
}

// Keeper is the best-effort background-audio session keeping the process
// eligible for delivery while backgrounded.
type Keeper interface {
	Run(ctx context.Context, tick time.Duration)
	StartTone()
	StopTone()
}

// EventLog exposes the append-only alarm log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]alarmmate.AlarmEvent, error)
}

// LogFilter restricts event listing. Zero times mean an open bound.
type LogFilter struct {
	From time.Time
	To   time.Time
	Type string
}

// Alarm event types written to the log.
const (
	EventArmed     = "ARMED"
	EventFired     = "FIRED"
	EventDismissed = "DISMISSED"
	EventOverride  = "OVERRIDE"
	EventAnalysis  = "ANALYSIS"
	EventError     = "ERROR"
)

// Service aggregates all sub-services.
type Service struct {
	Schedule
	Scheduler
	Gate
	Keeper
	EventLog
	Authorization
}

// NewService wires repositories and the delivery mechanism into concrete
// services. The schedule service re-arms through the scheduler; the gate
// re-arms after dismissal and drives the keeper's tone.
func NewService(repos *repository.Repository, mech delivery.Mechanism, signingKey string, log *logger.Logger) *Service {
	keeper := NewLivenessKeeper(NewLogAudioSession(log), log)
	scheduler := NewSchedulerService(repos.Schedule, repos.Events, mech, log)
	schedule := NewScheduleService(repos.Schedule, repos.Events, scheduler, log)
	gate := NewDismissalGate(mech, keeper, scheduler, repos.Settings, repos.Events, log)

	return &Service{
		Schedule:      schedule,
		Scheduler:     scheduler,
		Gate:          gate,
		Keeper:        keeper,
		EventLog:      NewEventLogService(repos.Events),
		Authorization: NewAuthService(repos.Auth, signingKey),
	}
}
