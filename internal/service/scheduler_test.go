package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"alarmmate"
	"alarmmate/internal/delivery"
)

// ---- Shared fakes for the service tests ----

type fakeScheduleRepo struct {
	set     alarmmate.WeeklyAlarmSet
	saveErr error
	loadErr error
	saved   []alarmmate.DaySchedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{set: make(alarmmate.WeeklyAlarmSet)}
}

func (f *fakeScheduleRepo) Save(ctx context.Context, s alarmmate.DaySchedule) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.set[s.Day] = s
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeScheduleRepo) Load(ctx context.Context, day alarmmate.Weekday) (alarmmate.DaySchedule, bool, error) {
	if f.loadErr != nil {
		return alarmmate.DaySchedule{}, false, f.loadErr
	}
	ds, ok := f.set[day]
	return ds, ok, nil
}

func (f *fakeScheduleRepo) LoadAll(ctx context.Context) (alarmmate.WeeklyAlarmSet, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := alarmmate.DefaultWeeklyAlarmSet()
	for day, ds := range f.set {
		out[day] = ds
	}
	return out, nil
}

type fakeEventRepo struct {
	appendErr error
	events    []alarmmate.AlarmEvent
}

func (f *fakeEventRepo) Append(ctx context.Context, e alarmmate.AlarmEvent) error {
	f.events = append(f.events, e)
	return f.appendErr
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]alarmmate.AlarmEvent, error) {
	var out []alarmmate.AlarmEvent
	for _, e := range f.events {
		if !e.OccurredAt.Before(from) && !e.OccurredAt.After(to) {
			if typ == "" || e.Type == typ {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (f *fakeEventRepo) countType(typ string) int {
	n := 0
	for _, e := range f.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fakeMech struct {
	registerErr error
	registered  []delivery.Request
	canceled    []string
	acked       []string
	outstanding *delivery.Fired
	ch          chan delivery.Fired
}

func newFakeMech() *fakeMech {
	return &fakeMech{ch: make(chan delivery.Fired, 1)}
}

func (f *fakeMech) Register(ctx context.Context, req delivery.Request) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, req)
	return nil
}
func (f *fakeMech) Cancel(ctx context.Context, id string)      { f.canceled = append(f.canceled, id) }
func (f *fakeMech) Acknowledge(ctx context.Context, id string) { f.acked = append(f.acked, id) }
func (f *fakeMech) Outstanding(ctx context.Context) (delivery.Fired, bool) {
	if f.outstanding == nil {
		return delivery.Fired{}, false
	}
	return *f.outstanding, true
}
func (f *fakeMech) Fired() <-chan delivery.Fired { return f.ch }

func armedDay(day alarmmate.Weekday, firstClass int, alarm alarmmate.TimeOfDay) alarmmate.DaySchedule {
	h := firstClass
	return alarmmate.DaySchedule{
		Day:              day,
		FirstClassHour:   &h,
		AlarmOffsetHours: alarmmate.DefaultAlarmOffsetHours,
		FinalAlarm:       alarm,
	}
}

// 2026-08-24 is a Monday.
func mondayNoon() time.Time {
	return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
}

func newTestScheduler(repo *fakeScheduleRepo, erepo *fakeEventRepo, mech *fakeMech, now time.Time) *SchedulerService {
	return &SchedulerService{
		scheduleRepo: repo,
		eventRepo:    erepo,
		mech:         mech,
		now:          func() time.Time { return now },
	}
}

// ---- NextFire ----

func TestNextFire_NoArmedDay(t *testing.T) {
	if got := NextFire(alarmmate.DefaultWeeklyAlarmSet(), mondayNoon()); got != nil {
		t.Fatalf("expected nil with no armed day, got %+v", got)
	}
}

func TestNextFire_ArmedTuesdayFromMonday(t *testing.T) {
	set := alarmmate.DefaultWeeklyAlarmSet()
	set[alarmmate.Tuesday] = armedDay(alarmmate.Tuesday, 9, alarmmate.TimeOfDay{Hour: 8})

	got := NextFire(set, mondayNoon())
	if got == nil {
		t.Fatalf("expected a pending alarm")
	}
	want := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	if !got.FireAt.Equal(want) {
		t.Fatalf("expected fire at %v, got %v", want, got.FireAt)
	}
	if got.SourceDay != alarmmate.Tuesday {
		t.Fatalf("expected Tue, got %s", got.SourceDay)
	}
}

func TestNextFire_ExactNowRollsToNextWeek(t *testing.T) {
	set := alarmmate.DefaultWeeklyAlarmSet()
	set[alarmmate.Tuesday] = armedDay(alarmmate.Tuesday, 9, alarmmate.TimeOfDay{Hour: 8})

	now := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC) // Tue 08:00 sharp
	got := NextFire(set, now)
	if got == nil {
		t.Fatalf("expected a pending alarm")
	}
	want := now.AddDate(0, 0, 7)
	if !got.FireAt.Equal(want) {
		t.Fatalf("expected roll to %v, got %v", want, got.FireAt)
	}
}

func TestNextFire_PicksEarliestAcrossDays(t *testing.T) {
	set := alarmmate.DefaultWeeklyAlarmSet()
	set[alarmmate.Monday] = armedDay(alarmmate.Monday, 9, alarmmate.TimeOfDay{Hour: 8})
	set[alarmmate.Friday] = armedDay(alarmmate.Friday, 8, alarmmate.TimeOfDay{Hour: 7})

	// Sunday: the Monday occurrence comes first despite the later clock time.
	now := time.Date(2026, 8, 23, 20, 0, 0, 0, time.UTC)
	got := NextFire(set, now)
	if got == nil || got.SourceDay != alarmmate.Monday {
		t.Fatalf("expected Monday next, got %+v", got)
	}
	want := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	if !got.FireAt.Equal(want) {
		t.Fatalf("expected fire at %v, got %v", want, got.FireAt)
	}
}

// ---- SchedulerService ----

func TestSchedulerService_Recompute_RegistersOnce(t *testing.T) {
	repo := newFakeScheduleRepo()
	repo.set[alarmmate.Tuesday] = armedDay(alarmmate.Tuesday, 9, alarmmate.TimeOfDay{Hour: 8})
	erepo := &fakeEventRepo{}
	mech := newFakeMech()
	s := newTestScheduler(repo, erepo, mech, mondayNoon())

	first, err := s.Recompute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Recompute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first == nil || second == nil {
		t.Fatalf("expected pending alarms, got %+v / %+v", first, second)
	}
	if !first.FireAt.Equal(second.FireAt) || first.SourceDay != second.SourceDay {
		t.Fatalf("recompute is not idempotent: %+v vs %+v", first, second)
	}
	if first.ID != RegistrationID {
		t.Fatalf("expected registration id %q, got %q", RegistrationID, first.ID)
	}
	// Re-registration under the fixed id is harmless; the armed event is
	// logged only for the first, changed computation.
	if got := erepo.countType(EventArmed); got != 1 {
		t.Fatalf("expected 1 ARMED event, got %d", got)
	}
	if len(mech.registered) != 2 {
		t.Fatalf("expected 2 register calls, got %d", len(mech.registered))
	}
}

func TestSchedulerService_Recompute_NoArmedDayCancels(t *testing.T) {
	repo := newFakeScheduleRepo()
	erepo := &fakeEventRepo{}
	mech := newFakeMech()
	s := newTestScheduler(repo, erepo, mech, mondayNoon())

	got, err := s.Recompute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil pending, got %+v", got)
	}
	if len(mech.canceled) != 1 || mech.canceled[0] != RegistrationID {
		t.Fatalf("expected cancel of %q, got %v", RegistrationID, mech.canceled)
	}
	if s.Pending() != nil {
		t.Fatalf("expected no pending after cancel")
	}
}

func TestSchedulerService_Recompute_RegisterFailureKeepsPending(t *testing.T) {
	repo := newFakeScheduleRepo()
	repo.set[alarmmate.Tuesday] = armedDay(alarmmate.Tuesday, 9, alarmmate.TimeOfDay{Hour: 8})
	erepo := &fakeEventRepo{}
	mech := newFakeMech()
	mech.registerErr = errors.New("platform rejected")
	s := newTestScheduler(repo, erepo, mech, mondayNoon())

	got, err := s.Recompute(context.Background())
	if err == nil {
		t.Fatalf("expected a registration error")
	}
	if got == nil {
		t.Fatalf("expected the computed pending alarm to be returned despite the failure")
	}
	if s.Pending() == nil {
		t.Fatalf("expected pending retained for retry")
	}
	if got := erepo.countType(EventError); got != 1 {
		t.Fatalf("expected 1 ERROR event, got %d", got)
	}

	// Next trigger retries and succeeds.
	mech.registerErr = nil
	if _, err := s.Recompute(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(mech.registered) != 1 {
		t.Fatalf("expected 1 successful register call, got %d", len(mech.registered))
	}
}

func TestSchedulerService_Rearm_ProducesFollowingOccurrence(t *testing.T) {
	repo := newFakeScheduleRepo()
	repo.set[alarmmate.Tuesday] = armedDay(alarmmate.Tuesday, 9, alarmmate.TimeOfDay{Hour: 8})
	erepo := &fakeEventRepo{}
	mech := newFakeMech()
	s := newTestScheduler(repo, erepo, mech, mondayNoon())

	// Dismissal resolves a few minutes after the Tuesday fire.
	resolvedAt := time.Date(2026, 8, 25, 8, 3, 0, 0, time.UTC)
	got, err := s.Rearm(context.Background(), resolvedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	if got == nil || !got.FireAt.Equal(want) {
		t.Fatalf("expected next Tuesday %v, got %+v", want, got)
	}
}

func TestSchedulerService_ScheduleTest(t *testing.T) {
	repo := newFakeScheduleRepo()
	erepo := &fakeEventRepo{}
	mech := newFakeMech()
	now := mondayNoon()
	s := newTestScheduler(repo, erepo, mech, now)

	got, err := s.ScheduleTest(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || !got.FireAt.Equal(now.Add(5*time.Second)) {
		t.Fatalf("expected fire 5s from now, got %+v", got)
	}
	if len(mech.registered) != 1 {
		t.Fatalf("expected 1 register call, got %d", len(mech.registered))
	}
	if erepo.countType(EventArmed) != 1 {
		t.Fatalf("expected ARMED event for test alarm")
	}
}
