// Package delivery stands in for the platform alarm facility: it accepts at
// most one registration, fires it asynchronously, and remembers an elapsed
// unacknowledged fire across process restarts. It is the sole source of
// truth for "should currently be ringing".
package delivery

import (
	"context"
	"sync"
	"time"

	"alarmmate"
	"alarmmate/internal/logger"
	"alarmmate/internal/repository"
)

// Request asks for a single future fire. Registering replaces any prior
// request regardless of identifier.
type Request struct {
	ID     string
	FireAt time.Time
	Day    alarmmate.Weekday
}

// Fired is the asynchronous delivery of a registered request.
type Fired struct {
	ID      string
	FiredAt time.Time
	Day     alarmmate.Weekday
}

// Mechanism is the delivery contract the engine depends on.
type Mechanism interface {
	Register(ctx context.Context, req Request) error
	Cancel(ctx context.Context, id string)
	Acknowledge(ctx context.Context, id string)

	// Outstanding reports a fire that already elapsed but was never
	// acknowledged, including one that elapsed while the process was down.
	Outstanding(ctx context.Context) (Fired, bool)

	// Fired returns the channel delivering fire events.
	Fired() <-chan Fired
}

// Timer is the in-process Mechanism implementation: a ticker loop checks the
// persisted registration and emits on the fired channel once its instant
// passes.
type Timer struct {
	store repository.PendingRepo
	log   *logger.Logger
	now   func() time.Time

	mu       sync.Mutex
	notified map[string]bool // fire already pushed to the channel

	firedCh chan Fired
}

var _ Mechanism = (*Timer)(nil)

func NewTimer(store repository.PendingRepo, log *logger.Logger) *Timer {
	return &Timer{
		store:    store,
		log:      log,
		now:      time.Now,
		notified: make(map[string]bool),
		firedCh:  make(chan Fired, 1),
	}
}

// Register replaces any prior registration with req.
func (t *Timer) Register(ctx context.Context, req Request) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Save(ctx, repository.Registration{
		ID:     req.ID,
		FireAt: req.FireAt.UTC(),
		Day:    req.Day,
	}); err != nil {
		return err
	}
	delete(t.notified, req.ID)
	return nil
}

// Cancel removes the registration with the given id. No error if absent.
func (t *Timer) Cancel(ctx context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	reg, ok, err := t.store.Load(ctx)
	if err != nil || !ok || reg.ID != id {
		return
	}
	if err := t.store.Clear(ctx); err != nil && t.log != nil {
		t.log.Errorw("delivery_cancel_failed", "err", err, "id", id)
	}
	delete(t.notified, id)
}

// Acknowledge marks a fired registration as handled so it no longer reports
// as outstanding.
func (t *Timer) Acknowledge(ctx context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.MarkAcked(ctx, id); err != nil && t.log != nil {
		t.log.Errorw("delivery_ack_failed", "err", err, "id", id)
	}
	delete(t.notified, id)
}

// Outstanding reports an elapsed, unacknowledged fire.
func (t *Timer) Outstanding(ctx context.Context) (Fired, bool) {
	reg, ok, err := t.store.Load(ctx)
	if err != nil || !ok || reg.Acked {
		return Fired{}, false
	}
	if reg.FireAt.After(t.now()) {
		return Fired{}, false
	}
	return Fired{ID: reg.ID, FiredAt: reg.FireAt, Day: reg.Day}, true
}

func (t *Timer) Fired() <-chan Fired { return t.firedCh }

// Run ticks at the given interval until ctx is canceled, delivering the
// registration once its instant passes.
func (t *Timer) Run(ctx context.Context, tick time.Duration) {
	tk := time.NewTicker(tick)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tk.C:
			t.deliverDue(ctx, now)
		}
	}
}

func (t *Timer) deliverDue(ctx context.Context, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	reg, ok, err := t.store.Load(ctx)
	if err != nil {
		if t.log != nil {
			t.log.Errorw("delivery_load_failed", "err", err)
		}
		return
	}
	if !ok || reg.Acked || t.notified[reg.ID] || reg.FireAt.After(now) {
		return
	}

	fired := Fired{ID: reg.ID, FiredAt: now.UTC(), Day: reg.Day}
	select {
	case t.firedCh <- fired:
		t.notified[reg.ID] = true
		if t.log != nil {
			t.log.Infow("alarm_fired", "id", reg.ID, "day", reg.Day.String(), "scheduled_for", reg.FireAt)
		}
	default:
		// Channel full: the consumer has not drained the previous fire yet.
		// The registration stays outstanding and is retried next tick.
	}
}
