package convert

import "testing"

func TestQuantizeBitDepthPassthroughAt32(t *testing.T) {
	in := []float32{0.5, -0.25, 1.0}
	out := QuantizeBitDepth(in, 32)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestQuantizeBitDepthClampsToRange(t *testing.T) {
	out := QuantizeBitDepth([]float32{2.0, -2.0}, 16)
	if out[0] != 1.0 {
		t.Errorf("positive overscale = %v, want 1.0", out[0])
	}
	if out[1] < -1.0001 || out[1] > -0.999 {
		t.Errorf("negative overscale = %v, want ~-1.0", out[1])
	}
}

func TestQuantizeBitDepthIntroducesStepping(t *testing.T) {
	// At 16 bits, two very close values should collapse to the same
	// quantized level.
	a := float32(0.123456789)
	b := float32(0.123456790)
	out16 := QuantizeBitDepth([]float32{a, b}, 16)
	if out16[0] != out16[1] {
		t.Errorf("16-bit quantization did not collapse near-identical samples: %v vs %v", out16[0], out16[1])
	}
}

func TestEncodePCM16ByteLength(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	b := EncodePCM(samples, 16)
	if len(b) != len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(b), len(samples)*2)
	}
}
