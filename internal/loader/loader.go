// Package loader implements the pipeline's entry stage: container
// sniffing, dispatch to the DSD decimation decoder or the general ffmpeg
// decoder, and emission of the wire session.
package loader

import (
	"io"
	"os"

	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/dsd"
	"github.com/richinsley/audiostagepipe/internal/perr"
	"github.com/richinsley/audiostagepipe/internal/wire"
)

// DSDDecoderKind selects how a DSD source is handled.
type DSDDecoderKind string

const (
	DSDDecoderDefault    DSDDecoderKind = "default"
	DSDDecoderNativeSACD DSDDecoderKind = "native_sacd"
)

// defaultDSDFactor is the decimation ratio used when the caller doesn't
// otherwise compute one from a requested output rate.
const defaultDSDFactor = 64

// Options configures one loader invocation.
type Options struct {
	Path             string
	TargetSampleRate int // 0 = keep original
	DSDDecoder       DSDDecoderKind
	MetadataOnly     bool // -m: emit header only, no chunks
	DataOnly         bool // -d: emit only sample_rate/channels/bit_depth, no tags
	Quality          decode.Quality
	FFmpegPath       string
	FFprobePath      string
}

// Run detects the container at opts.Path and streams its decoded wire
// session to w.
func Run(w io.Writer, opts Options) error {
	isDSD, err := isDSDContainer(opts.Path)
	if err != nil {
		return err
	}
	if isDSD {
		return runDSD(w, opts)
	}
	return runGeneral(w, opts)
}

func isDSDContainer(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, perr.Wrap("loader", perr.FileNotFound, "failed to open input", err)
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false, nil
	}
	switch string(magic[:]) {
	case "DSD ", "FRM8":
		return true, nil
	default:
		return false, nil
	}
}

func runDSD(w io.Writer, opts Options) error {
	if opts.DSDDecoder == DSDDecoderNativeSACD {
		return perr.New("loader", perr.NotImplemented, "native_sacd decoder is not implemented")
	}

	d, err := dsd.Prepare(opts.Path)
	if err != nil {
		return err
	}
	meta := d.Metadata()

	factor := defaultDSDFactor
	if opts.TargetSampleRate > 0 {
		for _, f := range []int{16, 32, 64} {
			if int(meta.SampleRate)/f == opts.TargetSampleRate {
				factor = f
				break
			}
		}
	}
	if err := dsd.ValidateFactor(factor); err != nil {
		return err
	}

	header := wire.Header{
		SampleRate: int(d.OutputSampleRate(factor)),
		Channels:   meta.Channels,
		BitDepth:   32,
		Format:     meta.Container,
		FilePath:   opts.Path,
		IsLossless: true,
		IsHighRes:  d.OutputSampleRate(factor) >= 96000,
	}
	if opts.DataOnly {
		header = wire.Header{SampleRate: header.SampleRate, Channels: header.Channels, BitDepth: header.BitDepth}
	}

	writer, err := wire.NewWriter(w, header)
	if err != nil {
		return err
	}
	if opts.MetadataOnly {
		return nil
	}

	return d.Stream(factor, func(samples []float32) bool {
		if err := writer.WriteChunk(wire.FloatsToBytes(samples)); err != nil {
			return false
		}
		return true
	})
}

func runGeneral(w io.Writer, opts Options) error {
	d, err := decode.Open(decode.Options{
		Path:             opts.Path,
		TargetSampleRate: opts.TargetSampleRate,
		Quality:          opts.Quality,
		FFmpegPath:       opts.FFmpegPath,
		FFprobePath:      opts.FFprobePath,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	header := d.Header()
	if opts.DataOnly {
		header = wire.Header{SampleRate: header.SampleRate, Channels: header.Channels, BitDepth: header.BitDepth}
	}

	writer, err := wire.NewWriter(w, header)
	if err != nil {
		return err
	}
	if opts.MetadataOnly {
		return nil
	}

	const frameSamples = 4096
	return d.Stream(frameSamples, func(samples []float32) bool {
		if err := writer.WriteChunk(wire.FloatsToBytes(samples)); err != nil {
			return false
		}
		return true
	})
}
