package dsd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// maxPayloadBytes is the ceiling on the DSD payload a Decoder will load
// into memory; anything larger is rejected rather than risk exhausting the
// process's address space on a malformed or absurdly long file.
const maxPayloadBytes = 1 << 30

// gain compensates for DSD's RMS being much lower than an equivalent PCM
// signal's. The value is carried over from reference decimator
// implementations and has not been independently re-derived here.
const gain = 64.0

// emitChunkSamples targets ~64 KiB of produced float32 samples per emit
// callback, keeping downstream consumers fed without holding the whole
// decoded signal in memory at once.
const emitChunkSamples = 64 * 1024 / 4

// Decoder parses a DSF or DSDIFF file and decimates its DSD payload to
// float32 PCM via a two-phase prepare/stream interface.
type Decoder struct {
	path string
	meta Metadata
}

// Prepare opens path, identifies its container, and validates chunk headers
// without decoding any DSD payload.
func Prepare(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrap("dsd", perr.FileNotFound, "failed to open DSD source", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, perr.Wrap("dsd", perr.CorruptedFile, "failed reading container magic", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, perr.Wrap("dsd", perr.FileReadError, "failed rewinding file", err)
	}

	var meta *Metadata
	switch {
	case string(magic[:]) == "DSD ":
		meta, err = prepareDSF(f)
	case string(magic[:]) == "FRM8":
		meta, err = prepareDSDIFF(f)
	default:
		return nil, perr.New("dsd", perr.UnsupportedFormat, "not a DSF or DSDIFF container: "+filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	if meta.DataSize > maxPayloadBytes {
		return nil, perr.New("dsd", perr.OutOfMemory, "DSD payload exceeds 1 GiB")
	}
	return &Decoder{path: path, meta: *meta}, nil
}

// Metadata returns the parsed container metadata.
func (d *Decoder) Metadata() Metadata { return d.meta }

// OutputSampleRate returns dsd_rate / factor, the PCM rate decimation
// produces. Call ValidateFactor first.
func (d *Decoder) OutputSampleRate(factor int) uint32 {
	return d.meta.SampleRate / uint32(factor)
}

// ValidateFactor rejects any decimation factor other than 16, 32, or 64,
// the only ratios that divide the standard DSD rates down to a sane PCM
// output rate.
func ValidateFactor(factor int) error {
	switch factor {
	case 16, 32, 64:
		return nil
	default:
		return perr.New("dsd", perr.InvalidArgument, "decimation factor must be 16, 32 or 64")
	}
}

// Stream reads the DSD payload, decimating by factor, and invokes emit with
// successive ~64 KiB interleaved float32 chunks. emit may return false to
// stop the stream early.
func (d *Decoder) Stream(factor int, emit func([]float32) bool) error {
	if err := ValidateFactor(factor); err != nil {
		return err
	}
	if d.meta.SampleRate/uint32(factor) == 0 {
		return perr.New("dsd", perr.InvalidArgument, "sampling_freq / D must be > 0")
	}

	f, err := os.Open(d.path)
	if err != nil {
		return perr.Wrap("dsd", perr.FileNotFound, "failed to reopen DSD source", err)
	}
	defer f.Close()
	if _, err := f.Seek(d.meta.DataOffset, io.SeekStart); err != nil {
		return perr.Wrap("dsd", perr.FileReadError, "failed seeking to DSD payload", err)
	}

	payload := make([]byte, d.meta.DataSize)
	if _, err := io.ReadFull(f, payload); err != nil {
		return perr.Wrap("dsd", perr.CorruptedFile, "failed reading DSD payload", err)
	}

	return decimate(payload, d.meta, factor, emit)
}

// bitIndexer maps (channel, bit-within-channel) to the absolute bit index
// within payload, per container layout.
type bitIndexer func(meta Metadata, channels int, ch int, bitInChannel uint64) uint64

func dsfBitIndex(meta Metadata, channels int, ch int, bitInChannel uint64) uint64 {
	blockBits := uint64(meta.BlockSize) * 8
	block := bitInChannel / blockBits
	within := bitInChannel % blockBits
	return block*blockBits*uint64(channels) + uint64(ch)*blockBits + within
}

func interleavedBitIndex(_ Metadata, channels int, ch int, bitInChannel uint64) uint64 {
	byteInChannel := bitInChannel / 8
	bitInByte := bitInChannel % 8
	return (byteInChannel*uint64(channels)+uint64(ch))*8 + bitInByte
}

// decimate performs the core DSD->PCM conversion: for each output frame, for
// each channel, sum the next `factor` DSD bits mapped {0->-1,1->+1}, scale,
// apply gain, and clamp.
func decimate(payload []byte, meta Metadata, factor int, emit func([]float32) bool) error {
	channels := meta.Channels
	totalBits := uint64(len(payload)) * 8
	channelDataBits := totalBits / uint64(channels)

	var indexer bitIndexer
	switch meta.layout {
	case layoutDSFBlockSeparated:
		indexer = dsfBitIndex
	default:
		indexer = interleavedBitIndex
	}

	out := make([]float32, 0, emitChunkSamples)
	D := uint64(factor)

	for bitPos := uint64(0); bitPos+D <= channelDataBits; bitPos += D {
		for ch := 0; ch < channels; ch++ {
			sum := 0
			for b := uint64(0); b < D; b++ {
				absBit := indexer(meta, channels, ch, bitPos+b)
				if absBit >= totalBits {
					return perr.New("dsd", perr.BufferOverrun, "channel bit index exceeds payload bounds")
				}
				byteIdx := absBit / 8
				bitInByte := 7 - (absBit % 8) // MSB-first within each byte
				bit := (payload[byteIdx] >> bitInByte) & 1
				if bit == 1 {
					sum++
				} else {
					sum--
				}
			}
			sample := float32(sum) / float32(D) * gain
			if sample > 1 {
				sample = 1
			} else if sample < -1 {
				sample = -1
			}
			out = append(out, sample)
		}

		if len(out) >= emitChunkSamples {
			if !emit(out) {
				return nil
			}
			out = make([]float32, 0, emitChunkSamples)
		}
	}

	if len(out) > 0 {
		emit(out)
	}
	return nil
}
