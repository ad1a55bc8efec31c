package dsp

import (
	"io"

	"github.com/richinsley/audiostagepipe/internal/wire"
)

// RunOptions configures a pipe-through DSP stage invocation.
type RunOptions struct {
	FadeInMs int
	Volume   float64 // [0, 2]
	Preset   Preset
	BassDB   float64
	MidDB    float64
	TrebleDB float64
	HasEQOverride bool // if true, Bass/Mid/TrebleDB override Preset
}

// Run reads a wire session from r, applies the DSP chain to every chunk,
// and writes the (header-unchanged) result to w.
func Run(r io.Reader, w io.Writer, opts RunOptions) error {
	reader, err := wire.NewReader(r)
	if err != nil {
		return err
	}
	writer, err := wire.NewWriter(w, reader.Header)
	if err != nil {
		return err
	}

	bassDB, midDB, trebleDB := opts.Preset.Gains()
	if opts.HasEQOverride {
		bassDB, midDB, trebleDB = opts.BassDB, opts.MidDB, opts.TrebleDB
	}

	chain := New(Options{
		SampleRate: reader.Header.SampleRate,
		Channels:   reader.Header.Channels,
		FadeInMs:   opts.FadeInMs,
		Volume:     opts.Volume,
		BassDB:     bassDB,
		MidDB:      midDB,
		TrebleDB:   trebleDB,
	})

	for {
		data, err := reader.NextChunk()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		samples := chain.Process(wire.BytesToFloats(data))
		if err := writer.WriteChunk(wire.FloatsToBytes(samples)); err != nil {
			return err
		}
	}
}
