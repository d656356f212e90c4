package service

import (
	"testing"
)

type fakeAudioSession struct {
	played  []string
	playErr error
	stops   int
}

func (f *fakeAudioSession) Play(tone string) error {
	f.played = append(f.played, tone)
	return f.playErr
}

func (f *fakeAudioSession) Stop() { f.stops++ }

func TestLivenessKeeper_TonesFollowRingingState(t *testing.T) {
	session := &fakeAudioSession{}
	k := NewLivenessKeeper(session, nil)

	// Background pulse is silent.
	k.pulse()
	if len(session.played) != 1 || session.played[0] != ToneSilent {
		t.Fatalf("expected a silent pulse, got %v", session.played)
	}

	// A ringing session switches to the alarm tone immediately.
	k.StartTone()
	if got := session.played[len(session.played)-1]; got != ToneAlarm {
		t.Fatalf("expected alarm tone on start, got %q", got)
	}
	k.pulse()
	if got := session.played[len(session.played)-1]; got != ToneAlarm {
		t.Fatalf("expected alarm tone while ringing, got %q", got)
	}

	// Dismissal returns to the silent keep-alive, the session itself stays up.
	k.StopTone()
	if session.stops != 1 {
		t.Fatalf("expected the alarm playback stopped once, got %d", session.stops)
	}
	if got := session.played[len(session.played)-1]; got != ToneSilent {
		t.Fatalf("expected silent pulse after dismissal, got %q", got)
	}
}
