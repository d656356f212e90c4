package service

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ProofInput is one UI interaction forwarded to the running proof strategy.
type ProofInput struct {
	Action string `json:"action"` // tap | dodge | collision | match | answer
	Value  int    `json:"value,omitempty"`
}

// ProofStrategy is a headless proof-of-wakefulness mini-game. Its sole
// external contract is the terminal success signal: Done is closed exactly
// once, and only explicit success ever closes it. Internal failure (missed
// deadline, collision, wrong answer) resets progress and nothing else.
type ProofStrategy interface {
	Tag() string
	Prompt() string
	Progress() string
	Submit(in ProofInput)
	Succeeded() bool
	Done() <-chan struct{}
}

// Strategy tags, matching the game identifiers the mobile app persists.
const (
	GameTap        = "TapGame"
	GameCarDodge   = "CarDodgeGame"
	GameColorMatch = "ColorMatch"
	GameMath       = "MathGame"

	// DefaultGame is used when nothing was selected or the tag is unknown.
	DefaultGame = GameTap
)

type strategyFactory func() ProofStrategy

var strategyFactories = map[string]strategyFactory{
	GameTap:        func() ProofStrategy { return newTapProof(time.Now) },
	GameCarDodge:   func() ProofStrategy { return newCarDodgeProof() },
	GameColorMatch: func() ProofStrategy { return newColorMatchProof() },
	GameMath:       func() ProofStrategy { return newMathProof(time.Now().UnixNano()) },
}

// KnownGame reports whether tag names a registered strategy.
func KnownGame(tag string) bool {
	_, ok := strategyFactories[tag]
	return ok
}

// NewProofStrategy instantiates the strategy for tag, falling back to the
// default for unknown tags.
func NewProofStrategy(tag string) ProofStrategy {
	if f, ok := strategyFactories[tag]; ok {
		return f()
	}
	return strategyFactories[DefaultGame]()
}

// proofSignal carries the one-shot success channel shared by all strategies.
type proofSignal struct {
	once sync.Once
	done chan struct{}
}

func newProofSignal() proofSignal {
	return proofSignal{done: make(chan struct{})}
}

func (p *proofSignal) succeed() {
	p.once.Do(func() { close(p.done) })
}

func (p *proofSignal) Done() <-chan struct{} { return p.done }

func (p *proofSignal) Succeeded() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ---- Tap: N taps before the round deadline; expiry restarts the round ----

const (
	tapGoal   = 15
	tapWindow = 5 * time.Second
)

type tapProof struct {
	proofSignal
	mu       sync.Mutex
	now      func() time.Time
	count    int
	deadline time.Time
}

func newTapProof(now func() time.Time) *tapProof {
	return &tapProof{proofSignal: newProofSignal(), now: now}
}

func (t *tapProof) Tag() string    { return GameTap }
func (t *tapProof) Prompt() string { return fmt.Sprintf("Tap %d times within %s", tapGoal, tapWindow) }

func (t *tapProof) Progress() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%d/%d", t.count, tapGoal)
}

func (t *tapProof) Submit(in ProofInput) {
	if in.Action != "tap" || t.Succeeded() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.count == 0 || now.After(t.deadline) {
		// First tap of a round, or the window expired: start over. A missed
		// deadline never dismisses, it only resets.
		t.count = 0
		t.deadline = now.Add(tapWindow)
	}
	t.count++
	if t.count >= tapGoal {
		t.succeed()
	}
}

// ---- Car dodge: dodge M obstacles; a collision resets the count ----

const dodgeGoal = 7

type carDodgeProof struct {
	proofSignal
	mu     sync.Mutex
	dodged int
}

func newCarDodgeProof() *carDodgeProof {
	return &carDodgeProof{proofSignal: newProofSignal()}
}

func (c *carDodgeProof) Tag() string    { return GameCarDodge }
func (c *carDodgeProof) Prompt() string { return fmt.Sprintf("Dodge %d obstacles", dodgeGoal) }

func (c *carDodgeProof) Progress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%d/%d", c.dodged, dodgeGoal)
}

func (c *carDodgeProof) Submit(in ProofInput) {
	if c.Succeeded() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch in.Action {
	case "dodge":
		c.dodged++
		if c.dodged >= dodgeGoal {
			c.succeed()
		}
	case "collision":
		c.dodged = 0
	}
}

// ---- Color match: streak of correct matches; a miss resets the streak ----

const matchGoal = 5

type colorMatchProof struct {
	proofSignal
	mu     sync.Mutex
	streak int
}

func newColorMatchProof() *colorMatchProof {
	return &colorMatchProof{proofSignal: newProofSignal()}
}

func (c *colorMatchProof) Tag() string    { return GameColorMatch }
func (c *colorMatchProof) Prompt() string { return fmt.Sprintf("Match %d colors in a row", matchGoal) }

func (c *colorMatchProof) Progress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%d/%d", c.streak, matchGoal)
}

func (c *colorMatchProof) Submit(in ProofInput) {
	if in.Action != "match" || c.Succeeded() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if in.Value == 1 {
		c.streak++
		if c.streak >= matchGoal {
			c.succeed()
		}
	} else {
		c.streak = 0
	}
}

// ---- Arithmetic: answer a streak of problems; a wrong answer resets ----

const mathGoal = 3

type mathProof struct {
	proofSignal
	mu     sync.Mutex
	rng    *rand.Rand
	a, b   int
	streak int
}

func newMathProof(seed int64) *mathProof {
	m := &mathProof{proofSignal: newProofSignal(), rng: rand.New(rand.NewSource(seed))}
	m.nextProblem()
	return m
}

func (m *mathProof) Tag() string { return GameMath }

func (m *mathProof) Prompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("%d + %d = ?", m.a, m.b)
}

func (m *mathProof) Progress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("%d/%d", m.streak, mathGoal)
}

func (m *mathProof) Submit(in ProofInput) {
	if in.Action != "answer" || m.Succeeded() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if in.Value == m.a+m.b {
		m.streak++
		if m.streak >= mathGoal {
			m.succeed()
			return
		}
	} else {
		m.streak = 0
	}
	m.nextProblem()
}

func (m *mathProof) nextProblem() {
	m.a = 10 + m.rng.Intn(40)
	m.b = 10 + m.rng.Intn(40)
}
