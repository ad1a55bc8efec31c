// Command sink is the terminal stage: it plays a wire session on a
// platform audio output device.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/perr"
	"github.com/richinsley/audiostagepipe/internal/sink"
)

func parseQuality(s string) decode.Quality {
	switch s {
	case "Best":
		return decode.QualityBest
	case "Fast":
		return decode.QualityFastest
	case "Linear":
		return decode.QualityLinear
	case "Zero":
		return decode.QualityZeroOrderHold
	default:
		return decode.QualityMedium
	}
}

func main() {
	device := flag.String("d", "", "output device id or name (empty = system default)")
	bufferFrames := flag.Int("b", 0, "ring buffer size in frames (0 = default, several seconds)")
	listDevices := flag.Bool("l", false, "list output devices and exit")
	latencyTest := flag.Bool("t", false, "report estimated latency and exit (unused: requires a live device session, not implemented standalone)")
	autoResample := flag.Bool("a", true, "auto-resample when the device's format differs from the requested one")
	quality := flag.String("q", "Medium", "resample quality: Best|Medium|Fast|Linear|Zero (forwarded to the fallback resampler)")
	exclusive := flag.Bool("e", false, "request exclusive device access")
	verbose := flag.Bool("verbose", false, "emit 10Hz JSON status lines to stderr")
	help := flag.Bool("help", false, "show this help message")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "sink [flags], reads the wire protocol on stdin and plays it")
		flag.PrintDefaults()
		return
	}
	if *version {
		fmt.Println("sink 1.0.0")
		return
	}

	if *listDevices {
		devices, err := sink.ListDevices()
		if err != nil {
			log.Fatalf("sink: %v", err)
		}
		for _, d := range devices {
			fmt.Printf("%d\t%s\t%s\tdefault=%v\n", d.ID, d.HumanName, d.APITag, d.IsDefault)
		}
		return
	}
	if *latencyTest {
		log.Printf("sink: -t is not implemented as a standalone check")
		return
	}

	err := sink.Run(os.Stdin, sink.RunOptions{
		DeviceSelector:  *device,
		BufferFrames:    *bufferFrames,
		Exclusive:       *exclusive,
		AutoResample:    *autoResample,
		ResampleQuality: parseQuality(*quality),
		Verbose:         *verbose,
		StatusWriter:    os.Stderr,
	})
	if err != nil {
		log.Printf("sink: %v", err)
		os.Exit(perr.KindOf(err).HTTPStatus())
	}
}
