package sink

import (
	"io"

	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/perr"
	"github.com/richinsley/audiostagepipe/internal/wire"
)

// RunOptions configures a terminal-consumer sink invocation.
type RunOptions struct {
	DeviceSelector  string
	BufferFrames    int
	Exclusive       bool
	AutoResample    bool
	ResampleQuality decode.Quality
	Verbose         bool
	StatusWriter    io.Writer
}

// Run reads a wire session from r and plays it to completion on the
// selected output device.
func Run(r io.Reader, opts RunOptions) error {
	reader, err := wire.NewReader(r)
	if err != nil {
		return err
	}

	devices, err := ListDevices()
	if err != nil {
		return err
	}
	dev, err := FindDevice(devices, opts.DeviceSelector)
	if err != nil {
		return err
	}

	s, err := New(Options{
		Device:          dev,
		SampleRate:      reader.Header.SampleRate,
		Channels:        reader.Header.Channels,
		BitDepth:        reader.Header.BitDepth,
		Exclusive:       opts.Exclusive,
		BufferFrames:    opts.BufferFrames,
		AutoResample:    opts.AutoResample,
		ResampleQuality: opts.ResampleQuality,
	})
	if err != nil {
		return err
	}

	if err := s.Start(); err != nil {
		return err
	}

	stop := make(chan struct{})
	if opts.StatusWriter != nil {
		go s.RunStatusLoop(opts.StatusWriter, opts.Verbose, stop)
	}

	for {
		data, err := reader.NextChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Fail(err)
			close(stop)
			return err
		}
		if err := s.Write(wire.BytesToFloats(data)); err != nil {
			if perr.KindOf(err) == perr.InvalidState {
				break
			}
			s.Fail(err)
			close(stop)
			return err
		}
	}

	err = s.Stop()
	close(stop)
	return err
}
