package sink

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/richinsley/audiostagepipe/internal/convert"
	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/perr"
)

// State is one of the sink's playback states.
type State int

const (
	Stopped State = iota
	Playing
	Paused
	Error
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Options configures a Sink.
type Options struct {
	Device           Device
	SampleRate       int
	Channels         int
	BitDepth         int // requested output bit depth; 0 means 32. Samples always reach the device as float32
	Exclusive        bool
	BufferFrames     int // ring buffer capacity, in frames
	AutoResample     bool
	UnderrunIsError  bool
	ResampleQuality  decode.Quality // used only when a fallback resampler is needed
}

// defaultBufferFrames is "several seconds" at a typical 48kHz stream.
const defaultBufferFrames = 48000 * 2

// Sink owns one portaudio output stream for its lifetime and drains a ring
// buffer into it via a callback-driven write path, the way audio/microphone.go
// owns an input stream for its lifetime but for the opposite direction.
type Sink struct {
	mu    sync.Mutex
	state State

	opts       Options
	stream     *portaudio.Stream
	deviceInfo *portaudio.DeviceInfo
	ring       *ringBuffer
	deviceRate int
	bitDepth   int // opts.BitDepth, or 32 when unset; not negotiated with the device

	resampler *convert.Resampler

	positionSamples int64
	underruns        uint64
	startedAt        time.Time
}

// New initialises portaudio, negotiates a format against opts.Device per the
// exclusive/shared initialisation policy, and returns a Sink ready for
// Start. The Sink owns the portaudio session until Stop or Fail.
func New(opts Options) (*Sink, error) {
	if opts.BufferFrames <= 0 {
		opts.BufferFrames = defaultBufferFrames
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, perr.Wrap("sink", perr.AudioBackendError, "failed to initialize portaudio", err)
	}

	s := &Sink{opts: opts, state: Stopped}

	infos, err := portaudio.Devices()
	if err != nil || opts.Device.ID < 0 || opts.Device.ID >= len(infos) {
		portaudio.Terminate()
		return nil, perr.New("sink", perr.DeviceUnavailable, "selected device is no longer present")
	}
	s.deviceInfo = infos[opts.Device.ID]

	deviceRate := opts.SampleRate
	mismatch := false
	// Exclusive mode is used only on a device reporting SupportsExclusive;
	// that is always false (see Device doc), so an exclusive request always
	// falls back to the shared path below. The fallback is not logged.
	if !opts.Exclusive || !opts.Device.SupportsExclusive {
		// Shared mode initialises at the device's own mix format; if that
		// differs from what was requested, New sets up a fallback resampler
		// below (or fails when AutoResample is off).
		deviceRate = int(s.deviceInfo.DefaultSampleRate)
		if deviceRate != opts.SampleRate {
			mismatch = true
		}
	}

	s.deviceRate = deviceRate
	s.bitDepth = opts.BitDepth
	if s.bitDepth == 0 {
		s.bitDepth = 32
	}
	s.ring = newRingBuffer(opts.BufferFrames, opts.Channels)

	if mismatch {
		if !opts.AutoResample {
			portaudio.Terminate()
			return nil, perr.New("sink", perr.AudioFormatMismatch, "device rate differs from requested rate and auto-resample is disabled")
		}
		quality := opts.ResampleQuality
		if quality == 0 {
			quality = decode.QualityMedium
		}
		r, err := convert.NewResampler("ffmpeg", opts.SampleRate, deviceRate, opts.Channels, quality)
		if err != nil {
			portaudio.Terminate()
			return nil, perr.Wrap("sink", perr.AudioBackendError, "failed to start fallback resampler", err)
		}
		s.resampler = r
	}

	return s, nil
}

// Start opens the portaudio stream and transitions Stopped -> Playing.
func (s *Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Stopped {
		return perr.New("sink", perr.InvalidState, "Start requires Stopped state")
	}

	params := portaudio.HighLatencyParameters(nil, s.deviceInfo)
	params.Output.Channels = s.opts.Channels
	params.SampleRate = float64(s.deviceRate)
	params.FramesPerBuffer = portaudio.FramesPerBufferUnspecified

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		s.state = Error
		return perr.Wrap("sink", perr.DeviceOpenFailed, "failed to open output stream", err)
	}
	if err := stream.Start(); err != nil {
		s.state = Error
		return perr.Wrap("sink", perr.DeviceOpenFailed, "failed to start output stream", err)
	}
	s.stream = stream
	s.state = Playing
	s.startedAt = time.Now()
	return nil
}

// callback is invoked by portaudio on its own real-time thread; it must
// never block, matching the non-blocking ringBuffer.Read contract.
func (s *Sink) callback(out []float32) {
	s.mu.Lock()
	playing := s.state == Playing
	s.mu.Unlock()

	if !playing {
		for i := range out {
			out[i] = 0
		}
		return
	}

	short := s.ring.Read(out)
	frames := len(out) / s.opts.Channels
	atomic.AddInt64(&s.positionSamples, int64(frames-short))
	if short > 0 {
		atomic.AddUint64(&s.underruns, 1)
	}
}

// Write enqueues a chunk of interleaved float32 samples for playback,
// resampling first if a fallback resampler was configured in New.
func (s *Sink) Write(samples []float32) error {
	s.mu.Lock()
	if s.state != Playing && s.state != Paused {
		s.mu.Unlock()
		return perr.New("sink", perr.InvalidState, "Write requires Playing or Paused state")
	}
	s.mu.Unlock()

	if s.resampler != nil {
		if err := s.resampler.Write(samples); err != nil {
			return perr.Wrap("sink", perr.AudioBackendError, "resample failed", err)
		}
		samples = s.resampler.Read()
	}
	s.ring.Write(samples)
	return nil
}

// Pause transitions Playing -> Paused. The device keeps running but the
// callback emits silence, so the device event loop keeps servicing timers.
func (s *Sink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Playing {
		return perr.New("sink", perr.InvalidState, "Pause requires Playing state")
	}
	s.state = Paused
	return nil
}

// Resume transitions Paused -> Playing.
func (s *Sink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		return perr.New("sink", perr.InvalidState, "Resume requires Paused state")
	}
	s.state = Playing
	return nil
}

// Stop drains the ring buffer (bounded by a 30s timeout, exiting early once
// its fill level falls below 5%), then closes the device and transitions to
// Stopped.
func (s *Sink) Stop() error {
	s.mu.Lock()
	if s.state != Playing && s.state != Paused {
		s.mu.Unlock()
		return perr.New("sink", perr.InvalidState, "Stop requires Playing or Paused state")
	}
	s.mu.Unlock()

	s.drain(30 * time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		_ = s.stream.Stop()
		_ = s.stream.Close()
		s.stream = nil
	}
	s.ring.Close()
	portaudio.Terminate()
	s.state = Stopped
	return nil
}

// drain polls the ring buffer's fill level until it falls below 5%, or
// timeout expires, whichever comes first.
func (s *Sink) drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.ring.FillPercent() < 5 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Fail transitions any state to the terminal Error state.
func (s *Sink) Fail(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Error
	if s.stream != nil {
		_ = s.stream.Abort()
		_ = s.stream.Close()
		s.stream = nil
	}
	portaudio.Terminate()
}

// State returns the current playback state.
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PositionSamples returns the number of frames actually handed to the
// device so far (excludes underrun silence).
func (s *Sink) PositionSamples() int64 {
	return atomic.LoadInt64(&s.positionSamples)
}

// Underruns returns the cumulative underrun count.
func (s *Sink) Underruns() uint64 {
	return atomic.LoadUint64(&s.underruns)
}

// BufferFillPercent returns the ring buffer's current fill level, 0..100.
func (s *Sink) BufferFillPercent() float64 {
	return s.ring.FillPercent()
}

// LatencyMs estimates current output latency from the ring buffer's fill
// level at the negotiated device rate.
func (s *Sink) LatencyMs() float64 {
	frames := s.ring.FillPercent() / 100 * float64(s.opts.BufferFrames)
	return frames / float64(s.deviceRate) * 1000
}
