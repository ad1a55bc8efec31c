package dsp

import (
	"math"
	"testing"
)

func TestFadeInRampsFromZeroToOne(t *testing.T) {
	c := New(Options{SampleRate: 1000, Channels: 1, FadeInMs: 10, Volume: 1})
	samples := make([]float32, 10)
	for i := range samples {
		samples[i] = 1.0
	}
	out := c.Process(samples)
	if out[0] != 0 {
		t.Errorf("out[0] = %v, want 0 (fade-in starts silent)", out[0])
	}
	if out[9] <= out[0] {
		t.Errorf("fade-in did not ramp up: out[0]=%v out[9]=%v", out[0], out[9])
	}
}

func TestVolumeScalesSamples(t *testing.T) {
	c := New(Options{SampleRate: 1000, Channels: 1, Volume: 0.5})
	out := c.Process([]float32{0.4})
	if math.Abs(float64(out[0])-0.2) > 1e-4 {
		t.Errorf("out = %v, want ~0.2", out[0])
	}
}

func TestSoftClipStaysWithinUnitRange(t *testing.T) {
	c := New(Options{SampleRate: 1000, Channels: 1, Volume: 2})
	out := c.Process([]float32{1.0})
	if out[0] > 1.0 || out[0] < -1.0 {
		t.Errorf("softClip escaped [-1,1]: %v", out[0])
	}
}

func TestEQStatePersistsAcrossChunks(t *testing.T) {
	c := New(Options{SampleRate: 44100, Channels: 1, Volume: 1, BassDB: 10})
	chunk1 := make([]float32, 64)
	chunk1[0] = 1.0
	c.Process(chunk1)
	// Filter state (x1,x2,y1,y2) from chunk1's impulse should still be
	// influencing chunk2's first sample (a fresh all-zero chunk).
	chunk2 := make([]float32, 64)
	out2 := c.Process(chunk2)
	nonZero := false
	for _, v := range out2 {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("expected filter state to persist into the next chunk, got all zeros")
	}
}

func TestPresetGainsAreFixed(t *testing.T) {
	bass, mid, treble := PresetRock.Gains()
	if bass == 0 && mid == 0 && treble == 0 {
		t.Error("PresetRock should not be flat")
	}
	fbass, fmid, ftreble := PresetFlat.Gains()
	if fbass != 0 || fmid != 0 || ftreble != 0 {
		t.Errorf("PresetFlat = (%v,%v,%v), want (0,0,0)", fbass, fmid, ftreble)
	}
}

func TestClampGainLimitsToTwentyDB(t *testing.T) {
	if clampGain(100) != 20 {
		t.Errorf("clampGain(100) = %v, want 20", clampGain(100))
	}
	if clampGain(-100) != -20 {
		t.Errorf("clampGain(-100) = %v, want -20", clampGain(-100))
	}
}
