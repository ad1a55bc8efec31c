// Package decode implements the general (non-DSD) decoder and output-side
// resampler by shelling out to ffmpeg/ffprobe, the same way
// audio/ffmpegbase.go drives an external ffmpeg process via ffmpeg-go and
// reads its raw PCM stdout through an io.Pipe.
package decode

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/richinsley/audiostagepipe/internal/perr"
	"github.com/richinsley/audiostagepipe/internal/wire"
)

// Quality is the resampling quality policy requested by the caller.
type Quality int

const (
	QualityMedium Quality = iota // default
	QualityBest
	QualityFastest
	QualityLinear
	QualityZeroOrderHold
)

// SwrArg returns the ffmpeg aresample resampler name for q, or "auto" to
// leave ffmpeg's default in place.
func (q Quality) SwrArg() string {
	switch q {
	case QualityBest:
		return "soxr"
	case QualityFastest:
		return "fast_bilinear"
	case QualityLinear:
		return "linear"
	case QualityZeroOrderHold:
		return "zero_order_hold"
	default:
		return "auto"
	}
}

// Options configures a decode.
type Options struct {
	Path             string
	TargetSampleRate int // 0 = keep the source rate
	Quality          Quality
	FFmpegPath       string
	FFprobePath      string
}

// Decoder drives an external ffmpeg process that decodes Path to stereo
// interleaved float32 PCM at the requested rate.
type Decoder struct {
	opts   Options
	cmd    *exec.Cmd
	stdout io.ReadCloser
	header wire.Header
}

// probeResult is the subset of `ffprobe -print_format json -show_format
// -show_streams` output we need.
type probeResult struct {
	Format struct {
		Tags       map[string]string `json:"tags"`
		BitRate    string            `json:"bit_rate"`
		Duration   string            `json:"duration"`
		FormatName string            `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecName     string `json:"codec_name"`
		CodecType     string `json:"codec_type"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
		BitsPerSample int    `json:"bits_per_raw_sample"`
		SampleFmt     string `json:"sample_fmt"`
	} `json:"streams"`
}

// Open probes the source with ffprobe, then starts the ffmpeg decode
// process, returning once the output header is known.
func Open(opts Options) (*Decoder, error) {
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}

	probe, err := runProbe(opts)
	if err != nil {
		return nil, err
	}

	origRate := 0
	origBits := 0
	isLossless := false
	var audioStream *struct {
		CodecName     string `json:"codec_name"`
		CodecType     string `json:"codec_type"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
		BitsPerSample int    `json:"bits_per_raw_sample"`
		SampleFmt     string `json:"sample_fmt"`
	}
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "audio" {
			audioStream = &probe.Streams[i]
			break
		}
	}
	if audioStream == nil {
		return nil, perr.New("decode", perr.UnsupportedFormat, "no audio stream found")
	}
	if r, err := strconv.Atoi(audioStream.SampleRate); err == nil {
		origRate = r
	}
	origBits = audioStream.BitsPerSample
	isLossless = isLosslessCodec(audioStream.CodecName)

	targetRate := opts.TargetSampleRate
	if targetRate == 0 {
		targetRate = origRate
	}
	if targetRate <= 0 {
		return nil, perr.New("decode", perr.InvalidArgument, "could not determine an output sample rate")
	}

	d := &Decoder{opts: opts}
	d.header = wire.Header{
		SampleRate:         targetRate,
		Channels:           2,
		BitDepth:           32,
		OriginalSampleRate: origRate,
		OriginalBitDepth:   origBits,
		IsLossless:         isLossless,
		IsHighRes:          targetRate >= 96000,
		Format:             audioStream.CodecName,
		FilePath:           opts.Path,
	}
	if v, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		d.header.DurationSeconds = v
	}
	if v, err := strconv.Atoi(probe.Format.BitRate); err == nil {
		d.header.BitrateKbps = v / 1000
	}
	applyTags(&d.header, probe.Format.Tags)

	if err := d.start(targetRate); err != nil {
		return nil, err
	}
	return d, nil
}

// Header returns the metadata that will be written as this decode's wire
// header.
func (d *Decoder) Header() wire.Header { return d.header }

func (d *Decoder) start(targetRate int) error {
	pr, pw := io.Pipe()
	d.stdout = pr

	outputArgs := ffmpeg.KwArgs{
		"f":   "f32le",
		"c:a": "pcm_f32le",
		"ar":  strconv.Itoa(targetRate),
		"ac":  "2", // force stereo, letting ffmpeg's downmix/upmix handle layout
	}
	if q := d.opts.Quality.SwrArg(); q != "auto" {
		outputArgs["af"] = "aresample=resampler=" + q
	}

	node := ffmpeg.Input(d.opts.Path, ffmpeg.KwArgs{}).
		Output("pipe:", outputArgs).
		WithOutput(pw).ErrorToStdOut()
	if d.opts.FFmpegPath != "" {
		node.SetFfmpegPath(d.opts.FFmpegPath)
	}
	d.cmd = node.Compile()

	go func() {
		err := d.cmd.Run()
		if err != nil && !strings.Contains(err.Error(), "signal: killed") {
			_ = err // discarded: the caller only sees the PCM stream end early
		}
		pw.Close()
	}()
	return nil
}

// Stream reads decoded PCM in frameSamples-sized (interleaved stereo float32)
// chunks and invokes emit for each. emit may return false to stop early.
func (d *Decoder) Stream(frameSamples int, emit func([]float32) bool) error {
	const bytesPerFrame = 2 * 4 // stereo float32
	buf := make([]byte, frameSamples*bytesPerFrame)
	for {
		n, err := io.ReadFull(d.stdout, buf)
		if n > 0 {
			samples := make([]float32, n/4)
			if err := binary.Read(bytes.NewReader(buf[:n]), binary.LittleEndian, &samples); err != nil {
				return perr.Wrap("decode", perr.AudioDecodeError, "failed decoding PCM chunk", err)
			}
			if !emit(samples) {
				return nil
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return perr.Wrap("decode", perr.AudioDecodeError, "failed reading ffmpeg output", err)
		}
	}
}

// Close terminates the decode process if still running.
func (d *Decoder) Close() error {
	if d.cmd != nil && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	return nil
}

func runProbe(opts Options) (*probeResult, error) {
	cmd := exec.Command(opts.FFprobePath, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", opts.Path)
	out, err := cmd.Output()
	if err != nil {
		return nil, perr.Wrap("decode", perr.AudioDecodeError, "ffprobe failed", err)
	}
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, perr.Wrap("decode", perr.AudioDecodeError, "failed parsing ffprobe output", err)
	}
	return &res, nil
}

func isLosslessCodec(codec string) bool {
	switch codec {
	case "flac", "alac", "wavpack", "pcm_s16le", "pcm_s24le", "pcm_s32le", "pcm_f32le", "ape", "tak":
		return true
	default:
		return false
	}
}

// applyTags copies container tags onto the header, preserving UTF-16 input
// by detecting a BOM or alternating-zero pattern and converting the ASCII
// range through; invalid UTF-8 bytes are dropped.
func applyTags(h *wire.Header, tags map[string]string) {
	get := func(keys ...string) string {
		for _, k := range keys {
			for tk, v := range tags {
				if strings.EqualFold(tk, k) {
					return sanitizeTag(v)
				}
			}
		}
		return ""
	}
	h.Title = get("title")
	h.Artist = get("artist", "artist_name")
	h.Album = get("album")
	h.Genre = get("genre")
	if y := get("date", "year"); y != "" {
		if n, err := strconv.Atoi(y[:min(4, len(y))]); err == nil {
			h.Year = n
		}
	}
	if tn := get("track"); tn != "" {
		if n, err := strconv.Atoi(strings.SplitN(tn, "/", 2)[0]); err == nil {
			h.TrackNumber = n
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// sanitizeTag detects a UTF-16 BOM or the alternating-zero-byte pattern
// ffprobe sometimes emits for WMA/ID3v2.2 tags, converts the ASCII range
// through, and drops bytes that don't form valid UTF-8 otherwise.
func sanitizeTag(s string) string {
	b := []byte(s)
	if len(b) >= 2 {
		switch {
		case b[0] == 0xFF && b[1] == 0xFE: // UTF-16 LE BOM
			return utf16LEToASCII(b[2:])
		case b[0] == 0xFE && b[1] == 0xFF: // UTF-16 BE BOM
			return utf16BEToASCII(b[2:])
		}
	}
	if looksAlternatingZero(b, true) {
		return utf16LEToASCII(b)
	}
	if looksAlternatingZero(b, false) {
		return utf16BEToASCII(b)
	}
	return dropInvalidUTF8(s)
}

func looksAlternatingZero(b []byte, le bool) bool {
	if len(b) < 4 || len(b)%2 != 0 {
		return false
	}
	zeroIdx := 1
	if !le {
		zeroIdx = 0
	}
	for i := zeroIdx; i < len(b); i += 2 {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

func utf16LEToASCII(b []byte) string {
	out := make([]byte, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		if b[i+1] == 0 && b[i] < 0x80 {
			out = append(out, b[i])
		}
	}
	return string(out)
}

func utf16BEToASCII(b []byte) string {
	out := make([]byte, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] < 0x80 {
			out = append(out, b[i+1])
		}
	}
	return string(out)
}

func dropInvalidUTF8(s string) string {
	if isValidUTF8(s) {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != utf8.RuneError || size > 1 {
			out = append(out, s[i:i+size]...)
		}
		i += size
	}
	return string(out)
}

func isValidUTF8(s string) bool {
	return utf8.ValidString(s)
}
