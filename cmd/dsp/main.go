// Command dsp pipes a wire session through the fade/volume/EQ chain.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/richinsley/audiostagepipe/internal/dsp"
	"github.com/richinsley/audiostagepipe/internal/perr"
)

func main() {
	volume := flag.Float64("volume", 100, "volume percent, 0..200")
	fadeIn := flag.Int("fade-in", 0, "fade-in duration in ms")
	fadeOut := flag.Int("fade-out", 0, "fade-out duration in ms (unused: fade-out requires stream length lookahead, not implemented)")
	eqPreset := flag.String("eq", "flat", "EQ preset: flat|rock|pop|classical|jazz|electronic")
	eqLow := flag.Float64("eq-low", 0, "bass gain override in dB")
	eqMid := flag.Float64("eq-mid", 0, "mid gain override in dB")
	eqHigh := flag.Float64("eq-high", 0, "treble gain override in dB")
	help := flag.Bool("help", false, "show this help message")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "dsp [flags], reads/writes the wire protocol on stdin/stdout")
		flag.PrintDefaults()
		return
	}
	if *version {
		fmt.Println("dsp 1.0.0")
		return
	}
	if *fadeOut != 0 {
		log.Printf("dsp: --fade-out is not implemented and will be ignored")
	}

	hasOverride := *eqLow != 0 || *eqMid != 0 || *eqHigh != 0
	err := dsp.Run(os.Stdin, os.Stdout, dsp.RunOptions{
		FadeInMs:      *fadeIn,
		Volume:        *volume / 100, // 0..200 percent maps directly to the chain's [0,2] scalar
		Preset:        dsp.ParsePreset(*eqPreset),
		BassDB:        *eqLow,
		MidDB:         *eqMid,
		TrebleDB:      *eqHigh,
		HasEQOverride: hasOverride,
	})
	if err != nil {
		log.Printf("dsp: %v", err)
		os.Exit(perr.KindOf(err).HTTPStatus())
	}
}
