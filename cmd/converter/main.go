// Command converter pipes a wire session through bit-depth/sample-rate
// conversion, optionally feeding every chunk to the content-addressed FFT
// cache for later spectral analysis.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/richinsley/audiostagepipe/internal/convert"
	"github.com/richinsley/audiostagepipe/internal/decode"
	"github.com/richinsley/audiostagepipe/internal/fftcache"
	"github.com/richinsley/audiostagepipe/internal/perr"
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
	inputFile := flag.String("i", "", "input file (else stdin)")
	outputFile := flag.String("o", "", "output file (else stdout)")
	sampleRate := flag.Int("r", 0, "target sample rate in Hz (0 = keep upstream)")
	bitDepth := flag.Int("b", 0, "target bit depth: 16, 24, or 32 (0 = keep upstream)")
	channels := flag.Int("c", 0, "target channel count (0 = keep upstream; remapping is not implemented)")
	quality := flag.String("q", "Medium", "resample quality: Best|Medium|Fast|Linear|Zero")
	chunkSize := flag.Int("chunk-size", 0, "chunk size in frames (0 = default 4096)")
	fftSize := flag.Int("fft-size", 0, "if > 0, feed every chunk to the FFT cache at this size")
	cacheDir := flag.String("cache-dir", "", "FFT cache root directory (required with --fft-size)")
	verbose := flag.Bool("verbose", false, "log progress to stderr")
	help := flag.Bool("help", false, "show this help message")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "converter [flags], reads/writes the wire protocol on stdin/stdout by default")
		flag.PrintDefaults()
		return
	}
	if *version {
		fmt.Println("converter 1.0.0")
		return
	}
	if *channels != 0 {
		log.Printf("converter: -c is not implemented, channel count is passed through unchanged")
	}

	in, closeIn := openInput(*inputFile)
	defer closeIn()
	out, closeOut := createOutput(*outputFile)
	defer closeOut()

	opts := convert.Options{
		TargetSampleRate: *sampleRate,
		TargetBitDepth:   *bitDepth,
		ChunkFrames:      *chunkSize,
		Quality:          parseQuality(*quality),
	}

	var wg sync.WaitGroup
	if *fftSize > 0 {
		if *cacheDir == "" {
			log.Fatalf("converter: --cache-dir is required with --fft-size")
		}
		cache, err := fftcache.New(*cacheDir)
		if err != nil {
			log.Fatalf("converter: failed to open FFT cache: %v", err)
		}
		analysisCh := make(chan []float32, 8)
		opts.AnalysisSink = analysisCh

		wg.Add(1)
		go func() {
			defer wg.Done()
			runAnalysis(cache, analysisCh, *fftSize, *sampleRate, *verbose)
		}()
	}

	err := convert.Run(in, out, opts)
	wg.Wait()
	if err != nil {
		log.Printf("converter: %v", err)
		os.Exit(perr.KindOf(err).HTTPStatus())
	}
}

// runAnalysis accumulates analysisCh's chunks into fftSize-frame windows and
// stores one cache entry per window, the way a streaming STFT slides across
// a signal one analysis frame at a time.
func runAnalysis(cache *fftcache.Cache, ch <-chan []float32, fftSize, sampleRate int, verbose bool) {
	var pending []float32
	for samples := range ch {
		pending = append(pending, samples...)
		for len(pending) >= fftSize {
			window := pending[:fftSize]
			key := fftcache.Key(window, sampleRate, fftSize)
			if hit, _ := cache.Get(key); hit == nil {
				if entry, computeErr := fftcache.Compute(window, sampleRate, fftSize); computeErr == nil {
					_ = cache.Put(key, entry)
				}
				if verbose {
					log.Printf("converter: computed fft cache entry %s", key)
				}
			}
			pending = pending[fftSize:]
		}
	}
	if verbose {
		hits, misses, rate := cache.Stats()
		log.Printf("converter: fft cache hits=%d misses=%d rate=%.2f", hits, misses, rate)
	}
}

func openInput(path string) (io.Reader, func()) {
	if path == "" {
		return os.Stdin, func() {}
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("converter: failed to open input file %s: %v", path, err)
	}
	return f, func() { f.Close() }
}

func createOutput(path string) (io.Writer, func()) {
	if path == "" {
		return os.Stdout, func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("converter: failed to create output file %s: %v", path, err)
	}
	return f, func() { f.Close() }
}
