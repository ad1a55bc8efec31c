// Package dsp implements the in-place DSP chain applied to an interleaved
// float32 stream: fade-in, then volume, then a 3-band equaliser. No pack
// repo implements a biquad filter chain, so this is hand-written scalar Go
// following the standard RBJ cookbook forms; the per-channel state machine
// shape (persistent state threaded across chunk calls, applied in a fixed
// operator order) mirrors the way audio/player.go threads its own playback
// position across successive callback invocations.
package dsp

import (
	"math"
	"strings"
)

// Preset is a fixed (bass, mid, treble) dB gain triple.
type Preset int

const (
	PresetFlat Preset = iota
	PresetRock
	PresetPop
	PresetClassical
	PresetJazz
	PresetElectronic
)

// presetGains maps each Preset to its baked-in {bass, mid, treble} dB gains.
var presetGains = map[Preset][3]float64{
	PresetFlat:       {0, 0, 0},
	PresetRock:       {5, -2, 4},
	PresetPop:        {2, 3, 2},
	PresetClassical:  {3, 0, 3},
	PresetJazz:       {4, 1, 2},
	PresetElectronic: {6, -1, 5},
}

// Gains returns the baked-in bass/mid/treble dB gains for a preset.
func (p Preset) Gains() (bass, mid, treble float64) {
	g, ok := presetGains[p]
	if !ok {
		g = presetGains[PresetFlat]
	}
	return g[0], g[1], g[2]
}

// presetNames maps each preset's CLI spelling to its value.
var presetNames = map[string]Preset{
	"flat":       PresetFlat,
	"rock":       PresetRock,
	"pop":        PresetPop,
	"classical":  PresetClassical,
	"jazz":       PresetJazz,
	"electronic": PresetElectronic,
}

// ParsePreset looks up a preset by its CLI name, case-insensitively,
// defaulting to PresetFlat for an unrecognized name.
func ParsePreset(name string) Preset {
	if p, ok := presetNames[strings.ToLower(name)]; ok {
		return p
	}
	return PresetFlat
}

// Chain applies fade-in, volume, and the 3-band equaliser, in that fixed
// order, to successive chunks of an interleaved float32 stream. It is not
// safe for concurrent use by multiple goroutines on the same channel set.
type Chain struct {
	sampleRate int
	channels   int

	fadeInSamples int64 // total samples-per-channel the fade-in ramps over
	fadeInElapsed int64

	volume float64 // caller-facing scalar in [0,2]

	eq []*threeBandEQ // one per channel
}

// Options configures a new Chain.
type Options struct {
	SampleRate  int
	Channels    int
	FadeInMs    int
	Volume      float64 // [0, 2]
	BassDB      float64
	MidDB       float64
	TrebleDB    float64
}

// New builds a Chain with persistent per-channel EQ state.
func New(opts Options) *Chain {
	c := &Chain{
		sampleRate:    opts.SampleRate,
		channels:      opts.Channels,
		fadeInSamples: int64(opts.FadeInMs) * int64(opts.SampleRate) / 1000,
		volume:        clamp(opts.Volume, 0, 2),
		eq:            make([]*threeBandEQ, opts.Channels),
	}
	for i := range c.eq {
		c.eq[i] = newThreeBandEQ(opts.SampleRate, opts.BassDB, opts.MidDB, opts.TrebleDB)
	}
	return c
}

// SetVolume updates the volume scalar applied to subsequent chunks.
func (c *Chain) SetVolume(v float64) { c.volume = clamp(v, 0, 2) }

// SetEQ replaces the equaliser's target gains; existing filter state (x1,
// x2, y1, y2) is preserved so the coefficient change doesn't click.
func (c *Chain) SetEQ(bassDB, midDB, trebleDB float64) {
	for _, eq := range c.eq {
		eq.setGains(c.sampleRate, bassDB, midDB, trebleDB)
	}
}

// Process applies fade-in, volume, and EQ to samples in place, returning
// the same slice for convenience.
func (c *Chain) Process(samples []float32) []float32 {
	frames := len(samples) / c.channels
	for f := 0; f < frames; f++ {
		fadeGain := float32(1)
		if c.fadeInElapsed < c.fadeInSamples && c.fadeInSamples > 0 {
			fadeGain = float32(c.fadeInElapsed) / float32(c.fadeInSamples)
			c.fadeInElapsed++
		}
		for ch := 0; ch < c.channels; ch++ {
			i := f*c.channels + ch
			v := samples[i] * fadeGain * float32(c.volume)
			// fadeGain is always <= 1, so the only way v can leave a valid
			// input's [-1,1] range is volume boosting past unity; skip the
			// knee entirely otherwise so unity volume stays the identity.
			if c.volume > 1 {
				v = softClip(v)
			}
			samples[i] = c.eq[ch].process(v)
		}
	}
	return samples
}

// softClip limits a sample to [-1,1] with a soft (tanh-like) knee rather
// than a hard clamp, so volumes above unity compress instead of clipping
// abruptly.
func softClip(v float32) float32 {
	const threshold = 0.9
	a := float32(math.Abs(float64(v)))
	if a <= threshold {
		return v
	}
	sign := float32(1)
	if v < 0 {
		sign = -1
	}
	over := a - threshold
	compressed := threshold + over/(1+over)
	if compressed > 1 {
		compressed = 1
	}
	return sign * compressed
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
