package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alarmmate"
	"alarmmate/internal/delivery"
	"alarmmate/internal/logger"
	"alarmmate/internal/repository"
)

// GateState is the dismissal state machine position. Dismissed is not a
// stored state: it collapses back to Idle on entry.
type GateState int

const (
	GateIdle GateState = iota
	GateRinging
	GateAwaitingProof
)

func (s GateState) String() string {
	switch s {
	case GateIdle:
		return "idle"
	case GateRinging:
		return "ringing"
	case GateAwaitingProof:
		return "awaiting_proof"
	}
	return fmt.Sprintf("GateState(%d)", int(s))
}

// Domain errors for gate transitions.
var (
	ErrNotRinging        = errors.New("no alarm is ringing")
	ErrNotAwaitingProof  = errors.New("no proof surface is open")
	ErrProofNotSucceeded = errors.New("the proof game has not been cleared")
)

// settingProofGame is the engine_settings key for the selected mini-game.
const settingProofGame = "proof_game"

// GateSnapshot is a read-only view of the gate for the UI.
type GateSnapshot struct {
	State    string     `json:"state"`
	Game     string     `json:"game,omitempty"`
	Prompt   string     `json:"prompt,omitempty"`
	Progress string     `json:"progress,omitempty"`
	FiredAt  *time.Time `json:"fired_at,omitempty"`
	Day      string     `json:"day,omitempty"`
}

// GateNotice is pushed to subscribers on ring and dismissal.
type GateNotice struct {
	Kind string    `json:"kind"` // ringing | dismissed
	At   time.Time `json:"at"`
	Day  string    `json:"day,omitempty"`
}

// dismissalSession exists only between fire and dismissal. Never persisted:
// a restart while ringing is recovered from the delivery mechanism instead.
type dismissalSession struct {
	startedAt time.Time
	firedID   string
	firedAt   time.Time
	day       alarmmate.Weekday
	strategy  ProofStrategy // nil until the proof surface opens
}

// rearmAfterDismiss is the scheduler hook invoked on dismissal.
type rearmAfterDismiss interface {
	Rearm(ctx context.Context, resolvedAt time.Time) (*alarmmate.PendingAlarm, error)
}

// DismissalGate blocks silence until a proof strategy reports success.
type DismissalGate struct {
	mech      delivery.Mechanism
	keeper    Keeper
	scheduler rearmAfterDismiss
	settings  repository.SettingsRepo
	events    repository.EventRepo
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	state   GateState
	session *dismissalSession

	subMu   sync.Mutex
	subs    map[int]chan GateNotice
	nextSub int
}

func NewDismissalGate(mech delivery.Mechanism, keeper Keeper, scheduler rearmAfterDismiss, settings repository.SettingsRepo, events repository.EventRepo, log *logger.Logger) *DismissalGate {
	return &DismissalGate{
		mech:      mech,
		keeper:    keeper,
		scheduler: scheduler,
		settings:  settings,
		events:    events,
		log:       log,
		now:       time.Now,
		subs:      make(map[int]chan GateNotice),
	}
}

var _ Gate = (*DismissalGate)(nil)

// Run consumes fire deliveries until ctx is canceled.
func (g *DismissalGate) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-g.mech.Fired():
			g.HandleFire(ctx, f)
		}
	}
}

// HandleFire enters Ringing. Safe with no prior in-memory state: everything
// the session needs is in the fire event itself. A fire while already
// ringing is absorbed.
func (g *DismissalGate) HandleFire(ctx context.Context, f delivery.Fired) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GateIdle {
		return
	}

	g.session = &dismissalSession{
		startedAt: g.now().UTC(),
		firedID:   f.ID,
		firedAt:   f.FiredAt,
		day:       f.Day,
	}
	g.state = GateRinging

	// The tone must be up before the user interacts so the process is not
	// suspended mid-ring.
	g.keeper.StartTone()

	_ = g.events.Append(ctx, alarmmate.AlarmEvent{
		OccurredAt:  g.session.startedAt,
		Type:        EventFired,
		Description: fmt.Sprintf("Alarm fired for %s", f.Day),
		Metadata:    map[string]any{"day": f.Day.String(), "fired_at": f.FiredAt},
	})
	if g.log != nil {
		g.log.Infow("gate_ringing", "day", f.Day.String(), "fired_at", f.FiredAt)
	}

	g.broadcast(GateNotice{Kind: "ringing", At: g.session.startedAt, Day: f.Day.String()})
}

// Recover re-enters Ringing for a fire that elapsed while the process was
// down. The delivery mechanism, not engine memory, decides whether an alarm
// should currently be ringing.
func (g *DismissalGate) Recover(ctx context.Context) error {
	f, ok := g.mech.Outstanding(ctx)
	if !ok {
		return nil
	}
	if g.log != nil {
		g.log.Infow("gate_recovering_outstanding_fire", "id", f.ID, "fired_at", f.FiredAt)
	}
	g.HandleFire(ctx, f)
	return nil
}

// OpenProof moves Ringing to AwaitingProof, instantiating the configured
// strategy. Reopening an already-open proof surface returns the running
// strategy unchanged.
func (g *DismissalGate) OpenProof(ctx context.Context) (GateSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case GateAwaitingProof:
		return g.snapshotLocked(), nil
	case GateIdle:
		return GateSnapshot{}, ErrNotRinging
	}

	tag := g.selectedGameLocked(ctx)
	g.session.strategy = NewProofStrategy(tag)
	g.state = GateAwaitingProof
	return g.snapshotLocked(), nil
}

// SubmitInput forwards one UI interaction to the running strategy. Progress
// resets inside the strategy never change the gate state; abandoning the
// surface simply stops submitting.
func (g *DismissalGate) SubmitInput(ctx context.Context, in ProofInput) (GateSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GateAwaitingProof {
		return GateSnapshot{}, ErrNotAwaitingProof
	}
	g.session.strategy.Submit(in)
	return g.snapshotLocked(), nil
}

// ReportSuccess consumes the strategy's terminal success signal and
// dismisses: tone stops, the fire is acknowledged, the scheduler re-arms
// for the following occurrence. Out-of-order calls (no proof open, or the
// game not actually cleared) are rejected.
func (g *DismissalGate) ReportSuccess(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GateAwaitingProof {
		return ErrNotAwaitingProof
	}
	if !g.session.strategy.Succeeded() {
		return ErrProofNotSucceeded
	}

	resolvedAt := g.now().UTC()
	session := g.session

	g.keeper.StopTone()
	g.mech.Acknowledge(ctx, session.firedID)
	g.state = GateIdle
	g.session = nil

	_ = g.events.Append(ctx, alarmmate.AlarmEvent{
		OccurredAt:  resolvedAt,
		Type:        EventDismissed,
		Description: fmt.Sprintf("Alarm dismissed via %s", session.strategy.Tag()),
		Metadata: map[string]any{
			"day":      session.day.String(),
			"game":     session.strategy.Tag(),
			"rang_for": resolvedAt.Sub(session.startedAt).String(),
		},
	})

	if _, err := g.scheduler.Rearm(ctx, resolvedAt); err != nil && g.log != nil {
		g.log.Warnw("rearm_after_dismiss_failed", "err", err)
	}

	g.broadcast(GateNotice{Kind: "dismissed", At: resolvedAt, Day: session.day.String()})
	return nil
}

// State returns the current snapshot.
func (g *DismissalGate) State() GateSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *DismissalGate) snapshotLocked() GateSnapshot {
	snap := GateSnapshot{State: g.state.String()}
	if g.session != nil {
		firedAt := g.session.firedAt
		snap.FiredAt = &firedAt
		snap.Day = g.session.day.String()
		if g.session.strategy != nil {
			snap.Game = g.session.strategy.Tag()
			snap.Prompt = g.session.strategy.Prompt()
			snap.Progress = g.session.strategy.Progress()
		}
	}
	return snap
}

// SelectedGame returns the configured proof game tag.
func (g *DismissalGate) SelectedGame(ctx context.Context) (string, error) {
	tag, ok, err := g.settings.Get(ctx, settingProofGame)
	if err != nil {
		return "", err
	}
	if !ok || !KnownGame(tag) {
		return DefaultGame, nil
	}
	return tag, nil
}

// SelectGame persists the proof game choice. Unknown tags are rejected.
func (g *DismissalGate) SelectGame(ctx context.Context, tag string) error {
	if !KnownGame(tag) {
		return fmt.Errorf("unknown game %q", tag)
	}
	return g.settings.Set(ctx, settingProofGame, tag)
}

func (g *DismissalGate) selectedGameLocked(ctx context.Context) string {
	tag, err := g.SelectedGame(ctx)
	if err != nil {
		if g.log != nil {
			g.log.Warnw("load_selected_game_failed", "err", err)
		}
		return DefaultGame
	}
	return tag
}

// Subscribe registers a notice channel. The returned func unsubscribes.
// A subscriber that cannot keep up has notices dropped, not the connection.
func (g *DismissalGate) Subscribe() (<-chan GateNotice, func()) {
	g.subMu.Lock()
	defer g.subMu.Unlock()

	id := g.nextSub
	g.nextSub++
	ch := make(chan GateNotice, 4)
	g.subs[id] = ch

	return ch, func() {
		g.subMu.Lock()
		defer g.subMu.Unlock()
		if _, ok := g.subs[id]; ok {
			delete(g.subs, id)
			close(ch)
		}
	}
}

func (g *DismissalGate) broadcast(n GateNotice) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for _, ch := range g.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
