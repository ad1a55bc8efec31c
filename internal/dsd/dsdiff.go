package dsd

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// prepareDSDIFF reads the big-endian FRM8/prop/DSD chunk structure of a
// DSDIFF 1.5 file, recording the DSD payload's offset and length.
//
// The prop chunk must precede the DSD chunk, since it carries the sample
// rate and channel count needed to interpret the DSD chunk's payload; a DSD
// chunk seen first is treated as a corrupted file. Channel layout here is
// byte-interleaved across channels, unlike DSF's block-separated layout.
func prepareDSDIFF(f *os.File) (*Metadata, error) {
	var frmID [4]byte
	if _, err := io.ReadFull(f, frmID[:]); err != nil {
		return nil, perr.Wrap("dsd", perr.CorruptedFile, "DSDIFF: failed reading FRM8 id", err)
	}
	if string(frmID[:]) != "FRM8" {
		return nil, perr.New("dsd", perr.CorruptedFile, "DSDIFF: missing FRM8 container")
	}
	if _, err := readBE64(f); err != nil { // FRM8 size, unused: we trust nested sizes
		return nil, err
	}
	var formType [4]byte
	if _, err := io.ReadFull(f, formType[:]); err != nil {
		return nil, perr.Wrap("dsd", perr.CorruptedFile, "DSDIFF: failed reading form type", err)
	}
	if string(formType[:]) != "DSD " {
		return nil, perr.New("dsd", perr.UnsupportedFormat, "DSDIFF: form type is not 'DSD '")
	}

	var meta Metadata
	meta.Container = "DSDIFF"
	meta.BitsPerSample = 1
	meta.layout = layoutInterleavedBytes

	sawProp := false
	for {
		var id [4]byte
		if _, err := io.ReadFull(f, id[:]); err != nil {
			if err == io.EOF {
				return nil, perr.New("dsd", perr.CorruptedFile, "DSDIFF: reached EOF before DSD chunk")
			}
			return nil, perr.Wrap("dsd", perr.CorruptedFile, "DSDIFF: failed reading local chunk id", err)
		}
		size, err := readBE64(f)
		if err != nil {
			return nil, err
		}

		switch string(id[:]) {
		case "PROP":
			if err := parseDSDIFFProp(f, size, &meta); err != nil {
				return nil, err
			}
			sawProp = true
			if size%2 == 1 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return nil, perr.Wrap("dsd", perr.FileReadError, "DSDIFF: failed skipping PROP pad byte", err)
				}
			}
		case "DSD ":
			if !sawProp {
				return nil, perr.New("dsd", perr.CorruptedFile, "DSDIFF: DSD chunk encountered before prop chunk")
			}
			offset, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, perr.Wrap("dsd", perr.FileReadError, "DSDIFF: failed to locate DSD data offset", err)
			}
			meta.DataOffset = offset
			meta.DataSize = int64(size)
			if meta.Channels > 0 {
				bytesPerChannel := meta.DataSize / int64(meta.Channels)
				meta.SampleCount = uint64(bytesPerChannel) * 8
			}
			return &meta, nil
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return nil, perr.Wrap("dsd", perr.FileReadError, "DSDIFF: failed skipping unknown chunk", err)
			}
			if size%2 == 1 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return nil, perr.Wrap("dsd", perr.FileReadError, "DSDIFF: failed skipping pad byte", err)
				}
			}
		}
	}
}

// parseDSDIFFProp reads a "PROP" local chunk's "SND " sub-chunks, pulling
// out sample rate ("FS  ") and channel count ("CHNL").
func parseDSDIFFProp(f *os.File, size uint64, meta *Metadata) error {
	payload := make([]byte, size)
	if _, err := io.ReadFull(f, payload); err != nil {
		return perr.Wrap("dsd", perr.CorruptedFile, "DSDIFF: failed reading PROP payload", err)
	}
	if len(payload) < 4 || string(payload[:4]) != "SND " {
		return perr.New("dsd", perr.UnsupportedFormat, "DSDIFF: PROP type is not 'SND '")
	}

	pos := 4
	for pos+12 <= len(payload) {
		subID := string(payload[pos : pos+4])
		subSize := binary.BigEndian.Uint64(payload[pos+4 : pos+12])
		dataStart := pos + 12
		dataEnd := dataStart + int(subSize)
		if dataEnd > len(payload) {
			break
		}
		switch subID {
		case "FS  ":
			if subSize >= 4 {
				meta.SampleRate = binary.BigEndian.Uint32(payload[dataStart : dataStart+4])
			}
		case "CHNL":
			if subSize >= 2 {
				meta.Channels = int(binary.BigEndian.Uint16(payload[dataStart : dataStart+2]))
			}
		}
		pos = dataEnd
		if subSize%2 == 1 {
			pos++
		}
	}

	if meta.SampleRate == 0 {
		return perr.New("dsd", perr.CorruptedFile, "DSDIFF: missing FS sample rate sub-chunk")
	}
	if meta.Channels < 1 || meta.Channels > 8 {
		return perr.New("dsd", perr.ChannelConfigurationError, "DSDIFF: channel count out of range")
	}
	return nil
}

func readBE64(f *os.File) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(f, b[:]); err != nil {
		return 0, perr.Wrap("dsd", perr.CorruptedFile, "DSDIFF: failed reading big-endian size", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
