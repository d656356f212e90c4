package service

import (
	"context"
	"sync"
	"time"

	"alarmmate/internal/logger"
)

// AudioSession is the platform audio channel the keeper pulses. Playback
// failure degrades delivery reliability, not correctness, so every call is
// best-effort.
type AudioSession interface {
	Play(tone string) error
	Stop()
}

// Tones the keeper plays.
const (
	ToneSilent = "silent"
	ToneAlarm  = "alarm"
)

// LogAudioSession is the in-process stand-in for the device audio channel.
type LogAudioSession struct {
	log *logger.Logger
}

func NewLogAudioSession(log *logger.Logger) *LogAudioSession {
	return &LogAudioSession{log: log}
}

func (s *LogAudioSession) Play(tone string) error {
	if s.log != nil {
		s.log.Debugw("audio_play", "tone", tone)
	}
	return nil
}

func (s *LogAudioSession) Stop() {
	if s.log != nil {
		s.log.Debugw("audio_stop")
	}
}

// LivenessKeeper keeps a continuous low-priority audio session alive so the
// process stays eligible to receive the fire event while backgrounded. It
// is independent of any single alarm: the silent pulse runs from engine
// start, and only the ringing tone starts and stops with a session.
type LivenessKeeper struct {
	session AudioSession
	log     *logger.Logger

	mu      sync.Mutex
	ringing bool
}

func NewLivenessKeeper(session AudioSession, log *logger.Logger) *LivenessKeeper {
	return &LivenessKeeper{session: session, log: log}
}

var _ Keeper = (*LivenessKeeper)(nil)

// Run pulses the audio session at the given interval until ctx is canceled.
// A failed pulse is logged and retried next tick, never fatal.
func (k *LivenessKeeper) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer func() {
		t.Stop()
		k.session.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			k.pulse()
		}
	}
}

func (k *LivenessKeeper) pulse() {
	if err := k.session.Play(k.tone()); err != nil && k.log != nil {
		k.log.Warnw("keeper_pulse_failed", "err", err, "tone", k.tone())
	}
}

func (k *LivenessKeeper) tone() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ringing {
		return ToneAlarm
	}
	return ToneSilent
}

// StartTone switches the session to the ringing tone immediately, without
// waiting for the next pulse.
func (k *LivenessKeeper) StartTone() {
	k.mu.Lock()
	k.ringing = true
	k.mu.Unlock()
	k.pulse()
}

// StopTone returns to the silent keep-alive pulse. Called only when a
// ringing session resolves; the keep-alive itself never stops here.
func (k *LivenessKeeper) StopTone() {
	k.mu.Lock()
	k.ringing = false
	k.mu.Unlock()
	k.session.Stop()
	k.pulse()
}
