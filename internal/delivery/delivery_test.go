package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"alarmmate"
	"alarmmate/internal/repository"
)

// memPendingRepo keeps the single registration row in memory.
type memPendingRepo struct {
	reg     *repository.Registration
	saveErr error
	loadErr error
}

func (m *memPendingRepo) Save(ctx context.Context, r repository.Registration) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	reg := r
	m.reg = &reg
	return nil
}

func (m *memPendingRepo) Load(ctx context.Context) (repository.Registration, bool, error) {
	if m.loadErr != nil {
		return repository.Registration{}, false, m.loadErr
	}
	if m.reg == nil {
		return repository.Registration{}, false, nil
	}
	return *m.reg, true, nil
}

func (m *memPendingRepo) MarkAcked(ctx context.Context, id string) error {
	if m.reg != nil && m.reg.ID == id {
		m.reg.Acked = true
	}
	return nil
}

func (m *memPendingRepo) Clear(ctx context.Context) error {
	m.reg = nil
	return nil
}

func fixedTimer(store repository.PendingRepo, now time.Time) *Timer {
	t := NewTimer(store, nil)
	t.now = func() time.Time { return now }
	return t
}

func TestTimer_RegisterReplacesPrior(t *testing.T) {
	store := &memPendingRepo{}
	tm := NewTimer(store, nil)
	ctx := context.Background()

	first := Request{ID: "alarm.next", FireAt: time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC), Day: alarmmate.Tuesday}
	second := Request{ID: "alarm.next", FireAt: time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC), Day: alarmmate.Wednesday}

	if err := tm.Register(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tm.Register(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("expected a stored registration, got ok=%v err=%v", ok, err)
	}
	if !reg.FireAt.Equal(second.FireAt) || reg.Day != alarmmate.Wednesday {
		t.Fatalf("expected the second registration to win, got %+v", reg)
	}
}

func TestTimer_RegisterSurfacesStoreError(t *testing.T) {
	store := &memPendingRepo{saveErr: errors.New("disk full")}
	tm := NewTimer(store, nil)

	if err := tm.Register(context.Background(), Request{ID: "alarm.next"}); err == nil {
		t.Fatalf("expected a save error")
	}
}

func TestTimer_DeliverDueFiresOnceAndStaysOutstanding(t *testing.T) {
	fireAt := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	store := &memPendingRepo{}
	tm := fixedTimer(store, fireAt.Add(time.Second))
	ctx := context.Background()

	if err := tm.Register(ctx, Request{ID: "alarm.next", FireAt: fireAt, Day: alarmmate.Tuesday}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Before the instant: nothing fires.
	tm.deliverDue(ctx, fireAt.Add(-time.Minute))
	select {
	case f := <-tm.Fired():
		t.Fatalf("unexpected early fire %+v", f)
	default:
	}

	// At the instant: one fire, and repeated ticks do not duplicate it.
	tm.deliverDue(ctx, fireAt)
	tm.deliverDue(ctx, fireAt.Add(time.Second))

	select {
	case f := <-tm.Fired():
		if f.ID != "alarm.next" || f.Day != alarmmate.Tuesday {
			t.Fatalf("unexpected fire %+v", f)
		}
	default:
		t.Fatalf("expected a fire on the channel")
	}
	select {
	case f := <-tm.Fired():
		t.Fatalf("expected a single fire, got a second %+v", f)
	default:
	}

	// Until acknowledged the elapsed fire reports as outstanding.
	if _, ok := tm.Outstanding(ctx); !ok {
		t.Fatalf("expected the elapsed fire outstanding")
	}
	tm.Acknowledge(ctx, "alarm.next")
	if _, ok := tm.Outstanding(ctx); ok {
		t.Fatalf("expected nothing outstanding after acknowledge")
	}
}

func TestTimer_OutstandingSurvivesRestart(t *testing.T) {
	fireAt := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	store := &memPendingRepo{}
	ctx := context.Background()

	before := fixedTimer(store, fireAt.Add(-time.Hour))
	if err := before.Register(ctx, Request{ID: "alarm.next", FireAt: fireAt, Day: alarmmate.Tuesday}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := before.Outstanding(ctx); ok {
		t.Fatalf("expected nothing outstanding before the instant")
	}

	// A fresh Timer over the same store after the instant: the fire elapsed
	// while the process was down.
	after := fixedTimer(store, fireAt.Add(5*time.Minute))
	f, ok := after.Outstanding(ctx)
	if !ok {
		t.Fatalf("expected an outstanding fire after restart")
	}
	if f.ID != "alarm.next" || f.Day != alarmmate.Tuesday || !f.FiredAt.Equal(fireAt) {
		t.Fatalf("unexpected outstanding fire %+v", f)
	}
}

func TestTimer_CancelClearsRegistration(t *testing.T) {
	store := &memPendingRepo{}
	tm := NewTimer(store, nil)
	ctx := context.Background()

	if err := tm.Register(ctx, Request{ID: "alarm.next", FireAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tm.Cancel(ctx, "other-id") // wrong id is a no-op
	if _, ok, _ := store.Load(ctx); !ok {
		t.Fatalf("expected registration untouched by foreign cancel")
	}
	tm.Cancel(ctx, "alarm.next")
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatalf("expected registration cleared")
	}
}
