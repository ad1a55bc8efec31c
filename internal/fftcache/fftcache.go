// Package fftcache computes and persists spectral analysis artifacts for a
// PCM buffer, keyed by content hash so repeated requests for the same
// signal skip recomputation. The windowing and fft.FFTReal usage mirror
// inputs/mic.go's FFT path; downmixStereoToMono mirrors audio/util.go.
package fftcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	fft "github.com/mjibson/go-dsp/fft"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

const windowName = "hann"
const cacheVersion = 1

// floorDB is the magnitude floor applied to a zero-magnitude bin, standing
// in for -inf.
const floorDB = -100

// Config records the parameters an Entry was computed with, so a cache hit
// can be validated without re-deriving the key.
type Config struct {
	FFTSize    int    `json:"fft_size"`
	Window     string `json:"window"`
	Version    int    `json:"version"`
	Samples    int    `json:"samples"` // frames actually present before zero-padding
	SampleRate int    `json:"sample_rate"`
	Bins       int    `json:"bins"`
}

// Entry holds the spectral artifacts for one analyzed buffer.
type Entry struct {
	Config     Config
	MagnitudeDB []float64 // length Bins, 20*log10(|X|)
	PhaseRad    []float64 // length Bins, atan2(imag, real)
	FrequencyHz []float64 // length Bins, bin center frequency
}

// Cache stores Entry artifacts under root/fft/<hex-key>/ and tracks hit/miss
// counts.
type Cache struct {
	root        string
	mu          sync.Mutex
	hits, misses uint64
}

// New returns a Cache rooted at dir (created if absent).
func New(dir string) (*Cache, error) {
	root := filepath.Join(dir, "fft")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, perr.Wrap("fftcache", perr.FileWriteError, "failed creating cache root", err)
	}
	return &Cache{root: root}, nil
}

// Stats returns the cumulative hit/miss counts and hit_rate = hits /
// (hits + misses) (0 when no lookups have been made yet).
func (c *Cache) Stats() (hits, misses uint64, hitRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hits, misses = c.hits, c.misses
	if hits+misses == 0 {
		return hits, misses, 0
	}
	return hits, misses, float64(hits) / float64(hits+misses)
}

// Key returns the content-addressed cache key for an interleaved-stereo pcm
// buffer: the buffer is downmixed to mono (see toMono), then the mono
// samples, sampleRate and fftSize are hashed.
func Key(pcm []float32, sampleRate, fftSize int) string {
	mono := toMono(pcm)
	h := sha256.New()
	buf := make([]byte, 4)
	for _, s := range mono {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(s))
		h.Write(buf)
	}
	var intBuf [8]byte
	binary.LittleEndian.PutUint64(intBuf[:], uint64(sampleRate))
	h.Write(intBuf[:])
	binary.LittleEndian.PutUint64(intBuf[:], uint64(fftSize))
	h.Write(intBuf[:])
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get loads a previously-written Entry for key, or (nil, nil) on a cache
// miss. A partially-written entry (any of the three files missing) is
// treated as a miss, matching the atomic-rename publishing contract in Put.
func (c *Cache) Get(key string) (*Entry, error) {
	dir := filepath.Join(c.root, key)
	cfgBytes, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if os.IsNotExist(err) {
		c.recordMiss()
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrap("fftcache", perr.FileReadError, "failed reading cache config", err)
	}
	var cfg Config
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, perr.Wrap("fftcache", perr.InvalidMessageFormat, "corrupt cache config", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "magnitude.bin")); os.IsNotExist(err) {
		c.recordMiss()
		return nil, nil
	}
	if _, err := os.Stat(filepath.Join(dir, "phase.bin")); os.IsNotExist(err) {
		c.recordMiss()
		return nil, nil
	}
	mag, err := readFloat64s(filepath.Join(dir, "magnitude.bin"), cfg.Bins)
	if err != nil {
		return nil, err
	}
	phase, err := readFloat64s(filepath.Join(dir, "phase.bin"), cfg.Bins)
	if err != nil {
		return nil, err
	}
	c.recordHit()
	return &Entry{Config: cfg, MagnitudeDB: mag, PhaseRad: phase, FrequencyHz: binFrequencies(cfg.SampleRate, cfg.FFTSize)}, nil
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Compute runs a windowed FFT over pcm (downmixed to mono first) and returns
// the resulting Entry without touching the cache. If fewer than fftSize
// frames are available, the input is zero-padded; otherwise only the first
// fftSize frames are used.
func Compute(pcm []float32, sampleRate, fftSize int) (*Entry, error) {
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, perr.New("fftcache", perr.InvalidArgument, "fft_size must be a positive power of two")
	}
	mono := toMono(pcm)
	samples := len(mono)
	if samples > fftSize {
		samples = fftSize
	}

	window := hannWindow(fftSize)
	windowed := make([]float64, fftSize)
	for i := 0; i < samples; i++ {
		windowed[i] = float64(mono[i]) * window[i]
	}
	// Frames beyond samples stay zero, i.e. the buffer is zero-padded.

	spectrum := fft.FFTReal(windowed)
	bins := fftSize/2 + 1
	mag := make([]float64, bins)
	phase := make([]float64, bins)
	for i := 0; i < bins; i++ {
		re, im := real(spectrum[i]), imag(spectrum[i])
		m := math.Sqrt(re*re + im*im)
		if m <= 0 {
			mag[i] = floorDB
		} else {
			mag[i] = 20 * math.Log10(m)
			if mag[i] < floorDB {
				mag[i] = floorDB
			}
		}
		phase[i] = math.Atan2(im, re)
	}

	return &Entry{
		Config: Config{
			FFTSize:    fftSize,
			Window:     windowName,
			Version:    cacheVersion,
			Samples:    samples,
			SampleRate: sampleRate,
			Bins:       bins,
		},
		MagnitudeDB: mag,
		PhaseRad:    phase,
		FrequencyHz: binFrequencies(sampleRate, fftSize),
	}, nil
}

// Put durably persists entry for key under root/fft/<key>/, writing via a temp-file-then-rename so a
// concurrent reader never observes a partial write.
func (c *Cache) Put(key string, entry *Entry) error {
	dir := filepath.Join(c.root, key)
	tmp := dir + ".tmp"
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return perr.Wrap("fftcache", perr.FileWriteError, "failed creating temp cache dir", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeFloat64s(filepath.Join(tmp, "magnitude.bin"), entry.MagnitudeDB); err != nil {
		return err
	}
	if err := writeFloat64s(filepath.Join(tmp, "phase.bin"), entry.PhaseRad); err != nil {
		return err
	}
	cfgBytes, err := json.Marshal(entry.Config)
	if err != nil {
		return perr.Wrap("fftcache", perr.InvalidMessageFormat, "failed marshaling cache config", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "config.json"), cfgBytes, 0o644); err != nil {
		return perr.Wrap("fftcache", perr.FileWriteError, "failed writing cache config", err)
	}

	os.RemoveAll(dir)
	if err := os.Rename(tmp, dir); err != nil {
		return perr.Wrap("fftcache", perr.FileWriteError, "failed publishing cache entry", err)
	}
	return nil
}

func binFrequencies(sampleRate, fftSize int) []float64 {
	bins := fftSize/2 + 1
	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}
	return freqs
}

// hannWindow mirrors inputs/mic.go's hanningWindow, generalized to any size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

func toMono(pcm []float32) []float32 {
	// A buffer shorter than two samples passes through unchanged; any
	// longer buffer is treated as interleaved stereo and downmixed (a
	// trailing odd sample is dropped). Mono input is not detected.
	if len(pcm) < 2 {
		return pcm
	}
	return downmixStereoToMono(pcm)
}

// downmixStereoToMono converts an interleaved stereo float32 buffer to mono
// by averaging the left and right channels.
func downmixStereoToMono(stereo []float32) []float32 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}
	mono := make([]float32, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) * 0.5
	}
	return mono
}

func writeFloat64s(path string, vals []float64) error {
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return perr.Wrap("fftcache", perr.FileWriteError, "failed writing cache artifact", err)
	}
	return nil
}

func readFloat64s(path string, count int) ([]float64, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap("fftcache", perr.FileReadError, "failed reading cache artifact", err)
	}
	if len(buf) != count*8 {
		return nil, perr.New("fftcache", perr.CorruptedFile, "cache artifact size mismatch")
	}
	vals := make([]float64, count)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vals, nil
}
