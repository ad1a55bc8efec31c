package convert

import (
	"io"

	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/wire"
)

// defaultChunkFrames is the converter's default chunk size in frames,
// configurable 1..65536.
const defaultChunkFrames = 4096

// Options configures a Converter run.
type Options struct {
	TargetSampleRate int // 0 = keep the upstream rate
	TargetBitDepth   int // 0 = keep upstream bit_depth informational value
	ChunkFrames      int // 0 = defaultChunkFrames
	Quality          decode.Quality
	FFmpegPath       string

	// AnalysisSink, if non-nil, receives a copy of every emitted chunk's
	// samples for spectral analysis (fftcache), fanned out the way
	// audio/tee.go broadcasts one input channel to several outputs.
	AnalysisSink chan<- []float32
}

// Run reads a wire session from r, converts it per opts, and writes the
// result to w. It returns after r reaches EOF and all buffered output has
// been flushed downstream. Steady-state memory is O(chunk) + O(filter
// state): the pending buffer below never grows past one chunk's worth of
// frames plus whatever a single upstream read added to it.
func Run(r io.Reader, w io.Writer, opts Options) error {
	reader, err := wire.NewReader(r)
	if err != nil {
		return err
	}

	chunkFrames := opts.ChunkFrames
	if chunkFrames <= 0 {
		chunkFrames = defaultChunkFrames
	}
	channels := reader.Header.Channels

	outHeader := reader.Header
	targetRate := opts.TargetSampleRate
	if targetRate == 0 {
		targetRate = outHeader.SampleRate
	}
	outHeader.OriginalSampleRate = reader.Header.SampleRate
	outHeader.SampleRate = targetRate
	if opts.TargetBitDepth != 0 {
		outHeader.OriginalBitDepth = reader.Header.BitDepth
		outHeader.BitDepth = opts.TargetBitDepth
	}

	writer, err := wire.NewWriter(w, outHeader)
	if err != nil {
		return err
	}

	var resampler *Resampler
	if targetRate != reader.Header.SampleRate {
		resampler, err = NewResampler(opts.FFmpegPath, reader.Header.SampleRate, targetRate, channels, opts.Quality)
		if err != nil {
			return err
		}
	}

	emit := func(samples []float32) error {
		if len(samples) == 0 {
			return nil
		}
		if opts.TargetBitDepth != 0 {
			samples = QuantizeBitDepth(samples, opts.TargetBitDepth)
		}
		if opts.AnalysisSink != nil {
			cp := make([]float32, len(samples))
			copy(cp, samples)
			opts.AnalysisSink <- cp
		}
		return writer.WriteChunk(wire.FloatsToBytes(samples))
	}

	process := func(samples []float32) error {
		if resampler == nil {
			return emit(samples)
		}
		if err := resampler.Write(samples); err != nil {
			return err
		}
		return emit(resampler.Read())
	}

	chunkSamples := chunkFrames * channels
	var pending []float32
	for {
		data, err := reader.NextChunk()
		if err != nil && err != io.EOF {
			return err
		}
		if err == nil {
			pending = append(pending, wire.BytesToFloats(data)...)
		}

		for len(pending) >= chunkSamples {
			if procErr := process(pending[:chunkSamples]); procErr != nil {
				return procErr
			}
			pending = pending[chunkSamples:]
		}

		if err == io.EOF {
			break
		}
	}
	if len(pending) > 0 {
		if err := process(pending); err != nil {
			return err
		}
	}

	if resampler != nil {
		out, err := resampler.Drain()
		if err != nil {
			return err
		}
		if err := emit(out); err != nil {
			return err
		}
	}

	if opts.AnalysisSink != nil {
		close(opts.AnalysisSink)
	}
	return nil
}
