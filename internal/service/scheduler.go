package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alarmmate"
	"alarmmate/internal/delivery"
	"alarmmate/internal/logger"
	"alarmmate/internal/repository"
)

// RegistrationID is the single delivery identifier the engine ever uses.
// Registering under it replaces whatever was live before.
const RegistrationID = "alarm.next"

// SchedulerService computes the next absolute fire instant from the weekly
// set and keeps exactly one registration live with the delivery mechanism.
type SchedulerService struct {
	scheduleRepo repository.ScheduleRepo
	eventRepo    repository.EventRepo
	mech         delivery.Mechanism
	log          *logger.Logger
	now          func() time.Time

	mu      sync.Mutex
	pending *alarmmate.PendingAlarm
}

func NewSchedulerService(scheduleRepo repository.ScheduleRepo, eventRepo repository.EventRepo, mech delivery.Mechanism, log *logger.Logger) *SchedulerService {
	return &SchedulerService{
		scheduleRepo: scheduleRepo,
		eventRepo:    eventRepo,
		mech:         mech,
		log:          log,
		now:          time.Now,
	}
}

var _ Scheduler = (*SchedulerService)(nil)

// Recompute derives the next fire instant from the persisted weekly set and
// registers it, replacing any prior registration. With no armed day it
// cancels the registration. A registration failure is returned as a warning;
// the computed pending alarm is retained and registration retried on the
// next trigger.
func (s *SchedulerService) Recompute(ctx context.Context) (*alarmmate.PendingAlarm, error) {
	return s.recomputeAt(ctx, s.now())
}

// Rearm recomputes with now = the dismissal resolution instant, producing
// the following occurrence for the fired weekday, never the same instant.
func (s *SchedulerService) Rearm(ctx context.Context, resolvedAt time.Time) (*alarmmate.PendingAlarm, error) {
	return s.recomputeAt(ctx, resolvedAt)
}

func (s *SchedulerService) recomputeAt(ctx context.Context, now time.Time) (*alarmmate.PendingAlarm, error) {
	set, err := s.scheduleRepo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weekly set: %w", err)
	}

	next := NextFire(set, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if next == nil {
		s.mech.Cancel(ctx, RegistrationID)
		s.pending = nil
		return nil, nil
	}

	changed := s.pending == nil || !s.pending.FireAt.Equal(next.FireAt) || s.pending.SourceDay != next.SourceDay
	s.pending = next

	if err := s.mech.Register(ctx, delivery.Request{
		ID:     next.ID,
		FireAt: next.FireAt,
		Day:    next.SourceDay,
	}); err != nil {
		// Non-fatal: the pending value is kept and registration retried on
		// the next recomputation trigger.
		if s.log != nil {
			s.log.Warnw("alarm_register_failed", "err", err, "fire_at", next.FireAt)
		}
		_ = s.eventRepo.Append(ctx, alarmmate.AlarmEvent{
			Type:        EventError,
			Description: "Alarm registration failed",
			Metadata:    map[string]any{"fire_at": next.FireAt, "err": err.Error()},
		})
		pa := *next
		return &pa, fmt.Errorf("register alarm: %w", err)
	}

	if changed {
		_ = s.eventRepo.Append(ctx, alarmmate.AlarmEvent{
			Type:        EventArmed,
			Description: fmt.Sprintf("Alarm armed for %s %s", next.SourceDay, next.FireAt.Format("2006-01-02 15:04")),
			Metadata:    map[string]any{"fire_at": next.FireAt, "day": next.SourceDay.String()},
		})
	}

	pa := *next
	return &pa, nil
}

// Cancel removes the live registration; no error if none exists.
func (s *SchedulerService) Cancel(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mech.Cancel(ctx, RegistrationID)
	s.pending = nil
}

// Pending returns a copy of the current pending alarm, nil when none.
func (s *SchedulerService) Pending() *alarmmate.PendingAlarm {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	pa := *s.pending
	return &pa
}

// ScheduleTest arms a one-shot fire the given duration from now without
// touching the weekly set. The next regular recomputation supersedes it.
func (s *SchedulerService) ScheduleTest(ctx context.Context, in time.Duration) (*alarmmate.PendingAlarm, error) {
	fireAt := s.now().Add(in).UTC()
	day, ok := alarmmate.WeekdayOf(fireAt)
	if !ok {
		day = alarmmate.Monday // weekend test fire; the day label is informational
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := &alarmmate.PendingAlarm{ID: RegistrationID, FireAt: fireAt, SourceDay: day}
	if err := s.mech.Register(ctx, delivery.Request{ID: next.ID, FireAt: next.FireAt, Day: next.SourceDay}); err != nil {
		return nil, fmt.Errorf("register test alarm: %w", err)
	}
	s.pending = next

	_ = s.eventRepo.Append(ctx, alarmmate.AlarmEvent{
		Type:        EventArmed,
		Description: fmt.Sprintf("Test alarm armed for %s", fireAt.Format("15:04:05")),
	})

	pa := *next
	return &pa, nil
}

// NextFire picks the earliest upcoming occurrence among armed weekdays.
// An occurrence exactly equal to now rolls to the following week. Returns
// nil when no day is armed.
func NextFire(set alarmmate.WeeklyAlarmSet, now time.Time) *alarmmate.PendingAlarm {
	var best *alarmmate.PendingAlarm

	// Mon..Fri order makes the (structurally impossible) tie deterministic.
	for _, day := range alarmmate.Weekdays {
		ds, ok := set[day]
		if !ok || !ds.Armed() {
			continue
		}

		candidate := nextOccurrence(day, ds.FinalAlarm, now)
		if best == nil || candidate.Before(best.FireAt) {
			best = &alarmmate.PendingAlarm{ID: RegistrationID, FireAt: candidate, SourceDay: day}
		}
	}

	return best
}

// nextOccurrence returns the next instant strictly after now whose weekday
// and wall-clock time match.
func nextOccurrence(day alarmmate.Weekday, t alarmmate.TimeOfDay, now time.Time) time.Time {
	daysAhead := (int(day.TimeGo()) - int(now.Weekday()) + 7) % 7
	candidate := t.On(now.AddDate(0, 0, daysAhead))
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
