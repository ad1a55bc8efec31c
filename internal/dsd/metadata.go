package dsd

// layoutKind distinguishes how channels are arranged within the raw DSD
// payload: DSF groups a whole block per channel, while DSDIFF interleaves
// channels byte by byte.
type layoutKind int

const (
	layoutDSFBlockSeparated layoutKind = iota // all of ch0's block, then ch1's block, ...
	layoutInterleavedBytes                    // byte 0 = ch0, byte 1 = ch1, byte 2 = ch0, ...
)

// Metadata describes a prepared (but not yet decoded) DSD source.
type Metadata struct {
	Container     string // "DSF" or "DSDIFF"
	SampleRate    uint32 // DSD bit rate, e.g. 2822400 for DSD64
	Channels      int
	BitsPerSample uint32

	// SampleCount is the number of 1-bit samples per channel.
	SampleCount uint64

	// BlockSize is DSF's per-channel block size in bytes; 0 for DSDIFF,
	// which has no block structure.
	BlockSize uint32

	// DataOffset/DataSize locate the raw DSD payload within the source
	// file.
	DataOffset int64
	DataSize   int64

	layout layoutKind
}
