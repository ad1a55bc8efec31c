package dsd

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// dsfDSDChunk mirrors the 28-byte "DSD " header chunk. All fields
// little-endian, field layout per the DSF File Format Specification v1.01.
type dsfDSDChunk struct {
	Header          [4]byte
	Size            uint64
	TotalFileSize   uint64
	MetadataPointer uint64
}

// dsfFmtChunk mirrors the 52-byte "fmt " chunk.
type dsfFmtChunk struct {
	Header            [4]byte
	Size              uint64
	Version           uint32
	FormatID          uint32
	ChannelType       uint32
	ChannelNum        uint32
	SamplingFrequency uint32
	BitsPerSample     uint32
	SampleCount       uint64
	BlockSizePerChan  uint32
	Reserved          uint32
}

const (
	dsfDSDChunkSize = 28
	dsfFmtChunkSize = 52
)

// prepareDSF reads and validates the "DSD "/"fmt "/"data" chunk headers in
// order, recording the data chunk's offset and length without decoding any
// DSD payload.
func prepareDSF(f *os.File) (*Metadata, error) {
	var dsd dsfDSDChunk
	if err := readStruct(f, &dsd); err != nil {
		return nil, err
	}
	if string(dsd.Header[:]) != "DSD " {
		return nil, perr.New("dsd", perr.CorruptedFile, "DSF: missing 'DSD ' chunk header")
	}
	if dsd.Size != dsfDSDChunkSize {
		return nil, perr.New("dsd", perr.CorruptedFile, "DSF: bad DSD chunk size")
	}

	var fc dsfFmtChunk
	if err := readStruct(f, &fc); err != nil {
		return nil, err
	}
	if string(fc.Header[:]) != "fmt " {
		return nil, perr.New("dsd", perr.CorruptedFile, "DSF: expected 'fmt ' chunk")
	}
	if fc.Size != dsfFmtChunkSize {
		return nil, perr.New("dsd", perr.CorruptedFile, "DSF: bad fmt chunk size")
	}
	if fc.FormatID != 0 {
		return nil, perr.New("dsd", perr.UnsupportedFormat, "DSF: only DSD raw format id 0 is supported")
	}
	if fc.BitsPerSample != 1 {
		return nil, perr.New("dsd", perr.UnsupportedFormat, "DSF: only 1 bit per sample is supported")
	}
	if fc.ChannelNum < 1 || fc.ChannelNum > 8 {
		return nil, perr.New("dsd", perr.ChannelConfigurationError, "DSF: channel_num out of range")
	}

	var dataHeader [4]byte
	var dataSize uint64
	if _, err := io.ReadFull(f, dataHeader[:]); err != nil {
		return nil, perr.Wrap("dsd", perr.CorruptedFile, "DSF: failed reading data chunk header", err)
	}
	if string(dataHeader[:]) != "data" {
		return nil, perr.New("dsd", perr.CorruptedFile, "DSF: expected 'data' chunk")
	}
	if err := binary.Read(f, binary.LittleEndian, &dataSize); err != nil {
		return nil, perr.Wrap("dsd", perr.CorruptedFile, "DSF: failed reading data chunk size", err)
	}

	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, perr.Wrap("dsd", perr.FileReadError, "DSF: failed to locate data offset", err)
	}
	payloadSize := int64(dataSize) - 12 // dataSize includes the 12-byte chunk header+size field

	return &Metadata{
		Container:     "DSF",
		SampleRate:    fc.SamplingFrequency,
		Channels:      int(fc.ChannelNum),
		BitsPerSample: fc.BitsPerSample,
		SampleCount:   fc.SampleCount,
		BlockSize:     fc.BlockSizePerChan,
		DataOffset:    offset,
		DataSize:      payloadSize,
		layout:        layoutDSFBlockSeparated,
	}, nil
}

// readStruct decodes a fixed-layout little-endian struct whose only
// variable-width fields are the ones explicitly typed [N]byte.
func readStruct(r io.Reader, v interface{}) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return perr.Wrap("dsd", perr.CorruptedFile, "failed reading chunk", err)
	}
	return nil
}
