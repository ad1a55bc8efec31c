// Package convert implements the format converter stage: bit-depth
// conversion and an optional streaming sample-rate conversion, bridging an
// upstream PCM stream to a downstream stage that wants a different rate or
// bit depth.
package convert

import (
	"encoding/binary"
	"io"
	"math"
	"os/exec"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/perr"
)

// Resampler wraps a persistent ffmpeg process running the aresample filter,
// the same exec.Cmd + io.Pipe plumbing audio/ffmpegbase.go uses for a
// one-shot decode, kept alive here so its filter state spans every chunk
// written to it rather than resetting at chunk boundaries.
type Resampler struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	channels int
	ratio    float64
	lastWriteFrames int
	outCh    chan []float32
	errCh    chan error
	done     chan struct{}
}

// NewResampler starts an ffmpeg process converting interleaved float32 PCM
// from sourceRate to targetRate, both at the given channel count.
func NewResampler(ffmpegPath string, sourceRate, targetRate, channels int, quality decode.Quality) (*Resampler, error) {
	pr, pw := io.Pipe()     // ffmpeg's stdin
	outR, outW := io.Pipe() // ffmpeg's stdout

	inArgs := ffmpeg.KwArgs{
		"f":  "f32le",
		"ar": strconv.Itoa(sourceRate),
		"ac": strconv.Itoa(channels),
	}
	outArgs := ffmpeg.KwArgs{
		"f":   "f32le",
		"c:a": "pcm_f32le",
		"ar":  strconv.Itoa(targetRate),
		"ac":  strconv.Itoa(channels),
	}
	if resampler := quality.SwrArg(); resampler != "auto" {
		outArgs["af"] = "aresample=resampler=" + resampler
	}

	node := ffmpeg.Input("pipe:0", inArgs).
		Output("pipe:1", outArgs).
		WithInput(pr).WithOutput(outW).ErrorToStdOut()
	if ffmpegPath != "" {
		node.SetFfmpegPath(ffmpegPath)
	}
	cmd := node.Compile()

	r := &Resampler{
		cmd:      cmd,
		stdin:    pw,
		channels: channels,
		ratio:    float64(targetRate) / float64(sourceRate),
		outCh:    make(chan []float32, 64),
		errCh:    make(chan error, 1),
		done:     make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, perr.Wrap("convert", perr.AudioBackendError, "failed starting ffmpeg resampler", err)
	}

	go func() {
		err := cmd.Wait()
		outW.Close()
		if err != nil {
			select {
			case r.errCh <- perr.Wrap("convert", perr.AudioBackendError, "ffmpeg resampler exited with an error", err):
			default:
			}
		}
		close(r.done)
	}()

	go r.readLoop(outR)

	return r, nil
}

func (r *Resampler) readLoop(out io.Reader) {
	defer close(r.outCh)
	bytesPerFrame := 4 * r.channels
	buf := make([]byte, 4096*bytesPerFrame)
	for {
		n, err := out.Read(buf)
		if n > 0 {
			usable := n - (n % 4)
			samples := bytesToFloats(buf[:usable])
			r.outCh <- samples
		}
		if err != nil {
			return
		}
	}
}

// Write feeds pcm to the resampler's input. It does not block on output
// becoming available; call Read to drain whatever has been produced so far.
func (r *Resampler) Write(pcm []float32) error {
	r.lastWriteFrames = len(pcm) / r.channels
	if _, err := r.stdin.Write(floatsToBytes(pcm)); err != nil {
		return perr.Wrap("convert", perr.AudioBackendError, "failed writing to resampler", err)
	}
	return nil
}

// Read drains whatever resampled output is currently buffered, without
// blocking for more to arrive. The returned slice's capacity is
// pre-reserved to ceil(lastWriteFrames * ratio) + margin so repeated reads
// after a chunk rarely need to reallocate.
func (r *Resampler) Read() []float32 {
	out := make([]float32, 0, reserveOutputCapacity(r.lastWriteFrames, r.ratio)*r.channels)
	for {
		select {
		case chunk, ok := <-r.outCh:
			if !ok {
				return out
			}
			out = append(out, chunk...)
		default:
			return out
		}
	}
}

// reserveOutputCapacity returns the pre-reserved output buffer size, in
// frames, for a resample of inputFrames frames at the given ratio, with
// margin so a stateful filter's occasional extra output frame never forces
// a reallocation.
func reserveOutputCapacity(inputFrames int, ratio float64) int {
	n := int(float64(inputFrames)*ratio + 0.999999)
	return n + n/16 + 8
}

// Drain closes the resampler's input and blocks until ffmpeg has flushed
// every remaining buffered output sample, matching the "keep calling the
// resampler until it reports no output" contract of a stateful streaming
// filter.
func (r *Resampler) Drain() ([]float32, error) {
	r.stdin.Close()
	var out []float32
	for chunk := range r.outCh {
		out = append(out, chunk...)
	}
	<-r.done
	select {
	case err := <-r.errCh:
		return out, err
	default:
	}
	return out, nil
}

func floatsToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func bytesToFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
