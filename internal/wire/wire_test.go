package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Header{SampleRate: 48000, Channels: 2, BitDepth: 32})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	chunks := [][]float32{
		{0.1, -0.1, 0.2, -0.2},
		{0.3, -0.3},
	}
	for _, c := range chunks {
		if err := w.WriteChunk(FloatsToBytes(c)); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header.SampleRate != 48000 || r.Header.Channels != 2 {
		t.Fatalf("header mismatch: %+v", r.Header)
	}

	var got [][]float32
	for {
		data, err := r.NextChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextChunk: %v", err)
		}
		got = append(got, BytesToFloats(data))
	}
	if len(got) != len(chunks) {
		t.Fatalf("got %d chunks, want %d", len(got), len(chunks))
	}
	for i := range chunks {
		for j := range chunks[i] {
			if got[i][j] != chunks[i][j] {
				t.Errorf("chunk %d sample %d = %v, want %v", i, j, got[i][j], chunks[i][j])
			}
		}
	}
}

func TestReaderRejectsBadFirstByte(t *testing.T) {
	r := bytes.NewReader([]byte("not-json\n"))
	if _, err := NewReader(r); perr.KindOf(err) != perr.InvalidMessageFormat {
		t.Fatalf("want InvalidMessageFormat, got %v", err)
	}
}

func TestReaderRejectsOversizeHeader(t *testing.T) {
	big := bytes.Repeat([]byte("a"), maxHeaderBytes+10)
	line := append([]byte(`{"sample_rate":48000,"channels":2,"x":"`), big...)
	line = append(line, '"', '}', '\n')
	if _, err := NewReader(bytes.NewReader(line)); perr.KindOf(err) != perr.InvalidMessageFormat {
		t.Fatalf("want InvalidMessageFormat, got %v", err)
	}
}

func TestNextChunkRejectsNonMultipleSize(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Header{SampleRate: 44100, Channels: 2, BitDepth: 32})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	_ = w
	// Hand-craft a chunk whose size is not a multiple of 4*channels=8.
	buf.Write([]byte{5, 0, 0, 0, 0, 0, 0, 0})
	buf.Write(make([]byte, 5))

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.NextChunk(); perr.KindOf(err) != perr.InvalidMessageFormat {
		t.Fatalf("want InvalidMessageFormat, got %v", err)
	}
}

func TestNextChunkCleanEOFOnPartialSizeHeader(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, Header{SampleRate: 44100, Channels: 2, BitDepth: 32}); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	buf.Write([]byte{1, 2, 3}) // partial size header, then EOF

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.NextChunk(); err != io.EOF {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestHeaderValidate(t *testing.T) {
	cases := []struct {
		h       Header
		wantErr bool
	}{
		{Header{SampleRate: 48000, Channels: 2}, false},
		{Header{SampleRate: 0, Channels: 2}, true},
		{Header{SampleRate: 48000, Channels: 0}, true},
		{Header{SampleRate: 48000, Channels: 9}, true},
	}
	for _, c := range cases {
		err := c.h.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", c.h, err, c.wantErr)
		}
	}
}
