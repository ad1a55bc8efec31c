package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/richinsley/audiostagepipe/internal/wire"
)

// writeDSF builds a minimal valid DSF file, mirroring the fixture used to
// exercise internal/dsd directly.
func writeDSF(t *testing.T, payload []byte, channels uint32, rate uint32, blockSize uint32) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.dsf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	le64 := func(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }
	le32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

	totalSize := uint64(28 + 52 + 12 + len(payload))
	f.WriteString("DSD ")
	f.Write(le64(28))
	f.Write(le64(totalSize))
	f.Write(le64(0))

	f.WriteString("fmt ")
	f.Write(le64(52))
	f.Write(le32(1))
	f.Write(le32(0))
	f.Write(le32(2))
	f.Write(le32(channels))
	f.Write(le32(rate))
	f.Write(le32(1))
	sampleCount := uint64(len(payload)/int(channels)) * 8
	f.Write(le64(sampleCount))
	f.Write(le32(blockSize))
	f.Write(le32(0))

	f.WriteString("data")
	f.Write(le64(uint64(12 + len(payload))))
	f.Write(payload)

	return path
}

func TestRunDSDEmitsValidWireSession(t *testing.T) {
	blockSize := uint32(8)
	payload := make([]byte, blockSize*2) // 2 channels, 1 block each
	for i := range payload {
		payload[i] = 0xAA
	}
	path := writeDSF(t, payload, 2, 2822400, blockSize)

	var buf bytes.Buffer
	err := Run(&buf, Options{Path: path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	br := bufio.NewReader(&buf)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("reading header line: %v", err)
	}
	var h wire.Header
	if err := json.Unmarshal([]byte(line[:len(line)-1]), &h); err != nil {
		t.Fatalf("header not valid JSON: %v", err)
	}
	if h.SampleRate != 2822400/64 {
		t.Fatalf("SampleRate = %d, want %d", h.SampleRate, 2822400/64)
	}
	if h.Channels != 2 {
		t.Fatalf("Channels = %d, want 2", h.Channels)
	}
}

func TestRunMetadataOnlyEmitsNoChunks(t *testing.T) {
	blockSize := uint32(8)
	payload := make([]byte, blockSize*2)
	path := writeDSF(t, payload, 2, 2822400, blockSize)

	var buf bytes.Buffer
	if err := Run(&buf, Options{Path: path, MetadataOnly: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	br := bufio.NewReader(&buf)
	if _, err := br.ReadString('\n'); err != nil {
		t.Fatalf("reading header line: %v", err)
	}
	if br.Buffered() != 0 {
		t.Fatal("expected no chunk bytes after the header in metadata-only mode")
	}
}

func TestRunDataOnlyStripsInformationalTags(t *testing.T) {
	blockSize := uint32(8)
	payload := make([]byte, blockSize*2)
	path := writeDSF(t, payload, 2, 2822400, blockSize)

	var buf bytes.Buffer
	if err := Run(&buf, Options{Path: path, DataOnly: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	br := bufio.NewReader(&buf)
	line, _ := br.ReadString('\n')
	var h wire.Header
	json.Unmarshal([]byte(line[:len(line)-1]), &h)
	if h.Format != "" {
		t.Fatalf("Format = %q, want empty in data-only mode", h.Format)
	}
}

func TestRunNativeSACDIsNotImplemented(t *testing.T) {
	blockSize := uint32(8)
	payload := make([]byte, blockSize*2)
	path := writeDSF(t, payload, 2, 2822400, blockSize)

	var buf bytes.Buffer
	err := Run(&buf, Options{Path: path, DSDDecoder: DSDDecoderNativeSACD})
	if err == nil {
		t.Fatal("expected an error for native_sacd")
	}
}

func TestIsDSDContainerDetectsNonDSDFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(path, []byte("not a dsd file"), 0644); err != nil {
		t.Fatal(err)
	}
	isDSD, err := isDSDContainer(path)
	if err != nil {
		t.Fatalf("isDSDContainer: %v", err)
	}
	if isDSD {
		t.Fatal("expected a plain text file to not be detected as DSD")
	}
}
