package service

import (
	"context"
	"testing"
	"time"

	"alarmmate"
)

type fakeRecomputer struct {
	calls int
	err   error
}

func (f *fakeRecomputer) Recompute(ctx context.Context) (*alarmmate.PendingAlarm, error) {
	f.calls++
	return nil, f.err
}

func newTestScheduleService(repo *fakeScheduleRepo, erepo *fakeEventRepo, rearm *fakeRecomputer, now time.Time) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: repo,
		eventRepo:    erepo,
		scheduler:    rearm,
		now:          func() time.Time { return now },
	}
}

func TestScheduleService_Get_DefaultsUnsavedDay(t *testing.T) {
	s := newTestScheduleService(newFakeScheduleRepo(), &fakeEventRepo{}, &fakeRecomputer{}, mondayNoon())

	ds, err := s.Get(context.Background(), alarmmate.Wednesday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.FinalAlarm.Hour != alarmmate.DefaultAlarmHour || ds.FinalAlarm.Minute != 0 {
		t.Fatalf("expected 08:00 default, got %s", ds.FinalAlarm)
	}
	if ds.Armed() {
		t.Fatalf("expected a bare default day to be unarmed")
	}
}

func TestScheduleService_SetAlarmForDay_OverridesAndRearms(t *testing.T) {
	repo := newFakeScheduleRepo()
	erepo := &fakeEventRepo{}
	rearm := &fakeRecomputer{}
	s := newTestScheduleService(repo, erepo, rearm, mondayNoon())

	if err := s.SetAlarmForDay(context.Background(), alarmmate.Tuesday, alarmmate.TimeOfDay{Hour: 7, Minute: 15}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ds := repo.set[alarmmate.Tuesday]
	if !ds.UserOverridden {
		t.Fatalf("expected the day flagged overridden")
	}
	if ds.FinalAlarm != (alarmmate.TimeOfDay{Hour: 7, Minute: 15}) {
		t.Fatalf("expected 07:15, got %s", ds.FinalAlarm)
	}
	if !ds.Armed() {
		t.Fatalf("expected an overridden day to be armed")
	}
	if rearm.calls != 1 {
		t.Fatalf("expected 1 rearm, got %d", rearm.calls)
	}
	if erepo.countType(EventOverride) != 1 {
		t.Fatalf("expected OVERRIDE event")
	}
}

func TestScheduleService_ApplyDetectionResult_DerivesAndRearmsOnce(t *testing.T) {
	repo := newFakeScheduleRepo()
	erepo := &fakeEventRepo{}
	rearm := &fakeRecomputer{}
	s := newTestScheduleService(repo, erepo, rearm, mondayNoon())

	dets := []alarmmate.DetectedSlot{
		classAt(1, 9),
		classAt(1, 12),
		classAt(3, 10),
	}
	derived, err := s.ApplyDetectionResult(context.Background(), dets, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if derived[alarmmate.Tuesday] == nil || *derived[alarmmate.Tuesday] != 9 {
		t.Fatalf("expected Tue=9, got %v", derived[alarmmate.Tuesday])
	}

	tue := repo.set[alarmmate.Tuesday]
	if tue.FirstClassHour == nil || *tue.FirstClassHour != 9 {
		t.Fatalf("expected Tue first class 9, got %v", tue.FirstClassHour)
	}
	if tue.FinalAlarm != (alarmmate.TimeOfDay{Hour: 8}) {
		t.Fatalf("expected Tue alarm 08:00, got %s", tue.FinalAlarm)
	}
	thu := repo.set[alarmmate.Thursday]
	if thu.FinalAlarm != (alarmmate.TimeOfDay{Hour: 9}) {
		t.Fatalf("expected Thu alarm 09:00, got %s", thu.FinalAlarm)
	}
	if _, ok := repo.set[alarmmate.Monday]; ok {
		t.Fatalf("expected Monday untouched with no detection")
	}

	// The whole batch re-arms exactly once.
	if rearm.calls != 1 {
		t.Fatalf("expected 1 rearm for the batch, got %d", rearm.calls)
	}
	if erepo.countType(EventAnalysis) != 1 {
		t.Fatalf("expected ANALYSIS event")
	}
}

func TestScheduleService_ApplyDetectionResult_DetectedDayDropsOverride(t *testing.T) {
	repo := newFakeScheduleRepo()
	rearm := &fakeRecomputer{}
	s := newTestScheduleService(repo, &fakeEventRepo{}, rearm, mondayNoon())
	ctx := context.Background()

	if err := s.SetAlarmForDay(ctx, alarmmate.Tuesday, alarmmate.TimeOfDay{Hour: 6, Minute: 30}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetAlarmForDay(ctx, alarmmate.Monday, alarmmate.TimeOfDay{Hour: 6, Minute: 45}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A fresh analysis detects a Tuesday class only: Tuesday's override is
	// dropped in favor of the derived alarm, Monday's survives untouched.
	if _, err := s.ApplyDetectionResult(ctx, []alarmmate.DetectedSlot{classAt(1, 10)}, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tue := repo.set[alarmmate.Tuesday]
	if tue.UserOverridden {
		t.Fatalf("expected Tuesday override cleared by analysis")
	}
	if tue.FinalAlarm != (alarmmate.TimeOfDay{Hour: 9}) {
		t.Fatalf("expected Tue alarm 09:00, got %s", tue.FinalAlarm)
	}
	mon := repo.set[alarmmate.Monday]
	if !mon.UserOverridden || mon.FinalAlarm != (alarmmate.TimeOfDay{Hour: 6, Minute: 45}) {
		t.Fatalf("expected Monday override preserved, got %+v", mon)
	}
}

func TestScheduleService_TodayFireTime(t *testing.T) {
	repo := newFakeScheduleRepo()
	repo.set[alarmmate.Monday] = armedDay(alarmmate.Monday, 9, alarmmate.TimeOfDay{Hour: 8})
	s := newTestScheduleService(repo, &fakeEventRepo{}, &fakeRecomputer{}, mondayNoon())
	ctx := context.Background()

	got, ok, err := s.TodayFireTime(ctx, mondayNoon())
	if err != nil || !ok {
		t.Fatalf("expected a weekday fire time, got ok=%v err=%v", ok, err)
	}
	if got != (alarmmate.TimeOfDay{Hour: 8}) {
		t.Fatalf("expected 08:00, got %s", got)
	}

	// Saturday carries no alarm.
	saturday := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	_, ok, err = s.TodayFireTime(ctx, saturday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no alarm on Saturday")
	}
}

// End to end over the service pair: a timetable whose only class is Tuesday
// at 09:00 arms exactly one alarm, the upcoming Tuesday 08:00.
func TestScheduleAndScheduler_EndToEnd(t *testing.T) {
	repo := newFakeScheduleRepo()
	erepo := &fakeEventRepo{}
	mech := newFakeMech()
	now := mondayNoon()

	scheduler := newTestScheduler(repo, erepo, mech, now)
	schedule := newTestScheduleService(repo, erepo, nil, now)
	schedule.scheduler = scheduler

	if _, err := schedule.ApplyDetectionResult(context.Background(), []alarmmate.DetectedSlot{classAt(1, 9)}, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending := scheduler.Pending()
	if pending == nil {
		t.Fatalf("expected an armed alarm")
	}
	want := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	if !pending.FireAt.Equal(want) || pending.SourceDay != alarmmate.Tuesday {
		t.Fatalf("expected Tue %v, got %+v", want, pending)
	}
	if len(mech.registered) != 1 {
		t.Fatalf("expected exactly one registration, got %d", len(mech.registered))
	}
}
