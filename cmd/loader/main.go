// Command loader decodes an input file (DSD/DSF/DSDIFF or any
// ffmpeg-supported container) and writes a wire session to stdout.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/loader"
	"github.com/richinsley/audiostagepipe/internal/perr"
)

func main() {
	sampleRate := flag.Int("r", 0, "output sample rate in Hz (0 = keep original)")
	flag.IntVar(sampleRate, "sample-rate", 0, "output sample rate in Hz (0 = keep original)")
	dsdDecoder := flag.String("dsd-decoder", "default", "DSD decoder: default|native_sacd")
	metadataOnly := flag.Bool("m", false, "emit header only, no audio chunks")
	dataOnly := flag.Bool("d", false, "emit only sample_rate/channels/bit_depth, no tags")
	verbose := flag.Bool("verbose", false, "log progress to stderr")
	help := flag.Bool("help", false, "show this help message")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "loader <input_file> [flags]")
		flag.PrintDefaults()
		return
	}
	if *version {
		fmt.Println("loader 1.0.0")
		return
	}
	if flag.NArg() < 1 {
		log.Fatalf("loader: missing <input_file>")
	}
	path := flag.Arg(0)

	if *verbose {
		log.Printf("loader: decoding %s", path)
	}

	err := loader.Run(os.Stdout, loader.Options{
		Path:             path,
		TargetSampleRate: *sampleRate,
		DSDDecoder:       loader.DSDDecoderKind(*dsdDecoder),
		MetadataOnly:     *metadataOnly,
		DataOnly:         *dataOnly,
		Quality:          decode.QualityMedium,
	})
	if err != nil {
		log.Printf("loader: %v", err)
		os.Exit(perr.KindOf(err).HTTPStatus())
	}
}
