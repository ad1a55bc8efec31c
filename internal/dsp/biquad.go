package dsp

import "math"

// biquad is a direct form I second-order IIR section with persistent state
// {x1, x2, y1, y2} carried across calls, per the standard RBJ cookbook
// difference equation.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) process(in float32) float32 {
	x0 := float64(in)
	y0 := f.b0*x0 + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x0
	f.y2, f.y1 = f.y1, y0
	return float32(y0)
}

// setLowShelf configures f as an RBJ low-shelf at freq Hz with the given
// dB gain and shelf slope S=1.
func (f *biquad) setLowShelf(sampleRate int, freq, gainDB float64) {
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / 2 * math.Sqrt(2.0) // S=1
	sqrtA := math.Sqrt(A)

	b0 := A * ((A + 1) - (A-1)*cosW0 + 2*sqrtA*alpha)
	b1 := 2 * A * ((A - 1) - (A+1)*cosW0)
	b2 := A * ((A + 1) - (A-1)*cosW0 - 2*sqrtA*alpha)
	a0 := (A + 1) + (A-1)*cosW0 + 2*sqrtA*alpha
	a1 := -2 * ((A - 1) + (A+1)*cosW0)
	a2 := (A + 1) + (A-1)*cosW0 - 2*sqrtA*alpha

	f.normalize(b0, b1, b2, a0, a1, a2)
}

// setHighShelf configures f as an RBJ high-shelf at freq Hz, S=1.
func (f *biquad) setHighShelf(sampleRate int, freq, gainDB float64) {
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / 2 * math.Sqrt(2.0)
	sqrtA := math.Sqrt(A)

	b0 := A * ((A + 1) + (A-1)*cosW0 + 2*sqrtA*alpha)
	b1 := -2 * A * ((A - 1) + (A+1)*cosW0)
	b2 := A * ((A + 1) + (A-1)*cosW0 - 2*sqrtA*alpha)
	a0 := (A + 1) - (A-1)*cosW0 + 2*sqrtA*alpha
	a1 := 2 * ((A - 1) - (A+1)*cosW0)
	a2 := (A + 1) - (A-1)*cosW0 - 2*sqrtA*alpha

	f.normalize(b0, b1, b2, a0, a1, a2)
}

// setPeaking configures f as an RBJ peaking EQ at freq Hz with quality Q.
func (f *biquad) setPeaking(sampleRate int, freq, q, gainDB float64) {
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := 1 + alpha*A
	b1 := -2 * cosW0
	b2 := 1 - alpha*A
	a0 := 1 + alpha/A
	a1 := -2 * cosW0
	a2 := 1 - alpha/A

	f.normalize(b0, b1, b2, a0, a1, a2)
}

func (f *biquad) normalize(b0, b1, b2, a0, a1, a2 float64) {
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0
}

// threeBandEQ chains a low-shelf (bass), peaking (mid), and high-shelf
// (treble) biquad, in that order, with each section's state persisting
// across Process calls.
type threeBandEQ struct {
	bass, mid, treble biquad
}

const (
	bassFreqHz   = 200
	midFreqHz    = 1000
	midQ         = 1.0
	trebleFreqHz = 3000
	maxEQGainDB  = 20
)

func newThreeBandEQ(sampleRate int, bassDB, midDB, trebleDB float64) *threeBandEQ {
	eq := &threeBandEQ{}
	eq.setGains(sampleRate, bassDB, midDB, trebleDB)
	return eq
}

func (eq *threeBandEQ) setGains(sampleRate int, bassDB, midDB, trebleDB float64) {
	eq.bass.setLowShelf(sampleRate, bassFreqHz, clampGain(bassDB))
	eq.mid.setPeaking(sampleRate, midFreqHz, midQ, clampGain(midDB))
	eq.treble.setHighShelf(sampleRate, trebleFreqHz, clampGain(trebleDB))
}

func (eq *threeBandEQ) process(in float32) float32 {
	return eq.treble.process(eq.mid.process(eq.bass.process(in)))
}

func clampGain(db float64) float64 {
	if db < -maxEQGainDB {
		return -maxEQGainDB
	}
	if db > maxEQGainDB {
		return maxEQGainDB
	}
	return db
}
