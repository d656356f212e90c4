package service

import (
	"context"
	"fmt"
	"time"

	"alarmmate"
	"alarmmate/internal/logger"
	"alarmmate/internal/repository"
)

// rearmer is the scheduler hook every successful schedule write triggers.
type rearmer interface {
	Recompute(ctx context.Context) (*alarmmate.PendingAlarm, error)
}

// ScheduleService is the only writer of the weekly alarm set. UI surfaces
// never mutate day records directly; they go through SetAlarmForDay or
// ApplyDetectionResult, both of which re-arm the scheduler.
type ScheduleService struct {
	scheduleRepo repository.ScheduleRepo
	eventRepo    repository.EventRepo
	scheduler    rearmer
	log          *logger.Logger
	now          func() time.Time
}

func NewScheduleService(scheduleRepo repository.ScheduleRepo, eventRepo repository.EventRepo, scheduler rearmer, log *logger.Logger) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		eventRepo:    eventRepo,
		scheduler:    scheduler,
		log:          log,
		now:          time.Now,
	}
}

// GetWeekly returns the full five-day set; unsaved days appear as defaults.
func (s *ScheduleService) GetWeekly(ctx context.Context) (alarmmate.WeeklyAlarmSet, error) {
	return s.scheduleRepo.LoadAll(ctx)
}

// Get always succeeds for a school weekday: a never-initialized day reports
// the 08:00 default.
func (s *ScheduleService) Get(ctx context.Context, day alarmmate.Weekday) (alarmmate.DaySchedule, error) {
	ds, ok, err := s.scheduleRepo.Load(ctx, day)
	if err != nil {
		return alarmmate.DaySchedule{}, err
	}
	if !ok {
		return alarmmate.DefaultDaySchedule(day), nil
	}
	return ds, nil
}

// SetAlarmForDay stores a manual alarm time and flags the day overridden.
// The flag survives later upsertDerived calls until the next full analysis.
func (s *ScheduleService) SetAlarmForDay(ctx context.Context, day alarmmate.Weekday, t alarmmate.TimeOfDay) error {
	ds, err := s.Get(ctx, day)
	if err != nil {
		return err
	}

	ds.FinalAlarm = t
	ds.UserOverridden = true
	ds.UpdatedAt = s.now().UTC()

	if err := s.scheduleRepo.Save(ctx, ds); err != nil {
		return fmt.Errorf("save alarm for %s: %w", day, err)
	}

	_ = s.eventRepo.Append(ctx, alarmmate.AlarmEvent{
		OccurredAt:  ds.UpdatedAt,
		Type:        EventOverride,
		Description: fmt.Sprintf("Alarm for %s set to %s by user", day, t),
	})

	s.rearm(ctx)
	return nil
}

// upsertDerived writes a derived first-class hour for one day. The final
// alarm is recomputed from the offset unless the day is user-overridden.
func (s *ScheduleService) upsertDerived(ctx context.Context, day alarmmate.Weekday, firstClassHour int, clearOverride bool) error {
	ds, err := s.Get(ctx, day)
	if err != nil {
		return err
	}

	h := firstClassHour
	ds.FirstClassHour = &h
	if clearOverride {
		ds.UserOverridden = false
	}
	if !ds.UserOverridden {
		ds.FinalAlarm = alarmmate.TimeOfDay{Hour: defaultAlarmHour(firstClassHour, ds.AlarmOffsetHours)}
	}
	ds.UpdatedAt = s.now().UTC()

	if err := s.scheduleRepo.Save(ctx, ds); err != nil {
		return fmt.Errorf("save derived schedule for %s: %w", day, err)
	}
	return nil
}

// ApplyDetectionResult derives the per-weekday first class hours, persists
// them, and re-arms once. Days with a detected class drop their manual
// override: a fresh analysis run wins, matching the source app. Days
// without a qualifying detection keep their last persisted record.
func (s *ScheduleService) ApplyDetectionResult(ctx context.Context, dets []alarmmate.DetectedSlot, frameW, frameH float64) (map[alarmmate.Weekday]*int, error) {
	derived := DeriveSchedule(dets, frameW, frameH)

	for _, day := range alarmmate.Weekdays {
		hour := derived[day]
		if hour == nil {
			continue
		}
		if err := s.upsertDerived(ctx, day, *hour, true); err != nil {
			return nil, err
		}
	}

	_ = s.eventRepo.Append(ctx, alarmmate.AlarmEvent{
		OccurredAt:  s.now().UTC(),
		Type:        EventAnalysis,
		Description: "Timetable analysis applied",
		Metadata:    analysisMetadata(derived),
	})

	s.rearm(ctx)
	return derived, nil
}

// TodayFireTime reports today's final alarm time. ok is false on weekends.
func (s *ScheduleService) TodayFireTime(ctx context.Context, now time.Time) (alarmmate.TimeOfDay, bool, error) {
	day, ok := alarmmate.WeekdayOf(now)
	if !ok {
		return alarmmate.TimeOfDay{}, false, nil
	}
	ds, err := s.Get(ctx, day)
	if err != nil {
		return alarmmate.TimeOfDay{}, false, err
	}
	return ds.FinalAlarm, true, nil
}

// rearm triggers the scheduler; a failure is a warning, not a fault. The
// scheduler retains its computed pending alarm and retries on the next
// recomputation trigger.
func (s *ScheduleService) rearm(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	if _, err := s.scheduler.Recompute(ctx); err != nil && s.log != nil {
		s.log.Warnw("scheduler_recompute_failed", "err", err)
	}
}

func analysisMetadata(derived map[alarmmate.Weekday]*int) map[string]any {
	meta := make(map[string]any, len(derived))
	for day, hour := range derived {
		if hour == nil {
			meta[day.String()] = nil
		} else {
			meta[day.String()] = *hour
		}
	}
	return meta
}
