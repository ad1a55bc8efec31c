package wire

import (
	"encoding/binary"
	"math"
)

// FloatsToBytes interleaves samples into a little-endian float32 byte chunk
// suitable for WriteChunk.
func FloatsToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

// BytesToFloats decodes a little-endian float32 chunk into samples. The
// caller is responsible for having validated len(data) is a multiple of 4.
func BytesToFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
