package sink

import "testing"

func TestRingBufferWriteReadRoundTrip(t *testing.T) {
	rb := newRingBuffer(16, 2)
	in := make([]float32, 8*2)
	for i := range in {
		in[i] = float32(i + 1)
	}
	rb.Write(in)

	out := make([]float32, 8*2)
	short := rb.Read(out)
	if short != 0 {
		t.Fatalf("short = %d, want 0", short)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestRingBufferUnderrunPadsWithSilence(t *testing.T) {
	rb := newRingBuffer(16, 1)
	rb.Write([]float32{1, 2, 3})

	out := make([]float32, 8)
	short := rb.Read(out)
	if short != 5 {
		t.Fatalf("short = %d, want 5", short)
	}
	want := []float32{1, 2, 3, 0, 0, 0, 0, 0}
	for i, v := range want {
		if out[i] != v {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestRingBufferFillPercent(t *testing.T) {
	rb := newRingBuffer(10, 1)
	if rb.FillPercent() != 0 {
		t.Fatalf("empty FillPercent = %v, want 0", rb.FillPercent())
	}
	rb.Write(make([]float32, 5))
	if rb.FillPercent() != 50 {
		t.Fatalf("FillPercent = %v, want 50", rb.FillPercent())
	}
}

func TestRingBufferWrapsAroundCapacity(t *testing.T) {
	rb := newRingBuffer(4, 1)
	rb.Write([]float32{1, 2, 3})
	out := make([]float32, 2)
	rb.Read(out) // consume 2, leaving 1 buffered, readPos=2

	rb.Write([]float32{4, 5, 6}) // wraps past the end of the backing array
	remaining := make([]float32, 4)
	short := rb.Read(remaining)
	if short != 0 {
		t.Fatalf("short = %d, want 0", short)
	}
	want := []float32{3, 4, 5, 6}
	for i, v := range want {
		if remaining[i] != v {
			t.Fatalf("remaining[%d] = %v, want %v", i, remaining[i], v)
		}
	}
}

func TestRingBufferCloseUnblocksWrite(t *testing.T) {
	rb := newRingBuffer(2, 1)
	rb.Write([]float32{1, 2}) // fills capacity

	done := make(chan struct{})
	go func() {
		rb.Write([]float32{3}) // would block forever without Close
		close(done)
	}()
	rb.Close()
	<-done
}
