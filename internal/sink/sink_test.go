package sink

import (
	"testing"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Stopped: "Stopped",
		Playing: "Playing",
		Paused:  "Paused",
		Error:   "Error",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestPauseFromStoppedIsInvalidState(t *testing.T) {
	s := &Sink{state: Stopped, ring: newRingBuffer(1, 1)}
	err := s.Pause()
	if perr.KindOf(err) != perr.InvalidState {
		t.Fatalf("Pause() from Stopped = %v, want InvalidState", err)
	}
}

func TestResumeFromPlayingIsInvalidState(t *testing.T) {
	s := &Sink{state: Playing, ring: newRingBuffer(1, 1)}
	err := s.Resume()
	if perr.KindOf(err) != perr.InvalidState {
		t.Fatalf("Resume() from Playing = %v, want InvalidState", err)
	}
}

func TestPauseThenResumeReturnsToPlaying(t *testing.T) {
	s := &Sink{state: Playing, ring: newRingBuffer(1, 1)}
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause() = %v, want nil", err)
	}
	if s.State() != Paused {
		t.Fatalf("state = %v, want Paused", s.State())
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume() = %v, want nil", err)
	}
	if s.State() != Playing {
		t.Fatalf("state = %v, want Playing", s.State())
	}
}

func TestWriteWhileStoppedIsInvalidState(t *testing.T) {
	s := &Sink{state: Stopped, ring: newRingBuffer(1, 1), opts: Options{Channels: 1}}
	err := s.Write([]float32{0.1})
	if perr.KindOf(err) != perr.InvalidState {
		t.Fatalf("Write() while Stopped = %v, want InvalidState", err)
	}
}

func TestCallbackEmitsSilenceWhenNotPlaying(t *testing.T) {
	s := &Sink{state: Paused, ring: newRingBuffer(4, 1), opts: Options{Channels: 1}}
	out := []float32{1, 1, 1, 1}
	s.callback(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0 while Paused", i, v)
		}
	}
}
