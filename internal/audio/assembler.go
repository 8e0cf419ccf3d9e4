package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/job"
	"github.com/vaanilabs/vaachak/internal/markdown"
)

const (
	bitDepth = 16
	channels = 1
)

// Assembler stitches per-chunk audio fragments into one continuous track,
// applying the document's prosody treatment (heading gain, pause silence)
// between segments, and writes the result as wav or mp3.
type Assembler struct {
	outputDir  string
	sampleRate int
	mp3Cmd     []string
	mp3Bitrate int
	logger     *slog.Logger
	now        func() time.Time
}

// ExportResult describes one written output file.
type ExportResult struct {
	Path            string  `json:"output_path"`
	Filename        string  `json:"filename"`
	SizeBytes       int64   `json:"file_size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	Format          string  `json:"format"`
}

func NewAssembler(cfg config.EncoderConfig, outputDir string, sampleRate int, log *slog.Logger) (*Assembler, error) {
	cmd, err := shellwords.Parse(cfg.MP3Command)
	if err != nil {
		return nil, fmt.Errorf("parse mp3 encoder command: %w", err)
	}
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Assembler{
		outputDir:  outputDir,
		sampleRate: sampleRate,
		mp3Cmd:     cmd,
		mp3Bitrate: cfg.MP3Bitrate,
		logger:     log.With(slog.String("component", "audio-assembler")),
		now:        time.Now,
	}, nil
}

// Export assembles the job's fragments in chunk-id order and writes a single
// file named {stem}_{timestamp}.{format} under the output directory. The
// returned duration reflects the assembled track including inserted pauses.
func (a *Assembler) Export(ctx context.Context, doc markdown.ParsedDocument, fragments []job.Fragment, outputName, format string) (ExportResult, error) {
	if len(fragments) == 0 {
		return ExportResult{}, job.ErrNoFragments
	}
	if format != "wav" && format != "mp3" {
		return ExportResult{}, fmt.Errorf("unsupported export format %q", format)
	}

	sorted := make([]job.Fragment, len(fragments))
	copy(sorted, fragments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkID < sorted[j].ChunkID })

	var samples []int
	for _, frag := range sorted {
		seg, err := a.decode(frag.Audio)
		if err != nil {
			return ExportResult{}, fmt.Errorf("decode fragment for chunk %d: %w", frag.ChunkID, err)
		}
		pauseMS := 0
		if chunk := doc.Chunk(frag.ChunkID); chunk != nil {
			if chunk.LoudnessBoost > 1.0 {
				applyGain(seg, gainDB(chunk.LoudnessBoost))
			}
			pauseMS = chunk.PauseAfterMS
		}
		samples = append(samples, seg...)
		samples = append(samples, make([]int, a.sampleRate*pauseMS/1000)...)
	}

	stem := strings.TrimSuffix(filepath.Base(outputName), filepath.Ext(outputName))
	if stem == "" || stem == "." {
		stem = strings.TrimSuffix(filepath.Base(doc.Filename), filepath.Ext(doc.Filename))
	}
	if stem == "" || stem == "." {
		stem = "speech"
	}
	filename := fmt.Sprintf("%s_%s.%s", stem, a.now().Format("20060102_150405"), format)
	path := filepath.Join(a.outputDir, filename)

	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("create output dir: %w", err)
	}

	var err error
	switch format {
	case "wav":
		err = a.writeWAV(path, samples)
	case "mp3":
		err = a.writeMP3(ctx, path, samples)
	}
	if err != nil {
		return ExportResult{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return ExportResult{}, fmt.Errorf("stat output: %w", err)
	}
	result := ExportResult{
		Path:            path,
		Filename:        filename,
		SizeBytes:       info.Size(),
		DurationSeconds: float64(len(samples)) / float64(a.sampleRate),
		Format:          format,
	}
	a.logger.Info("export written",
		slog.String("path", path),
		slog.Int64("bytes", result.SizeBytes),
		slog.Float64("duration_s", result.DurationSeconds))
	return result, nil
}

// decode accepts either a RIFF/WAV payload or raw 16-bit little-endian mono
// PCM; remote synthesizers return the former, exec and mock backends the
// latter.
func (a *Assembler) decode(data []byte) ([]int, error) {
	if len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")) {
		dec := wav.NewDecoder(bytes.NewReader(data))
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			return nil, fmt.Errorf("read wav: %w", err)
		}
		return buf.Data, nil
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return samples, nil
}

func (a *Assembler) writeWAV(path string, samples []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	enc := wav.NewEncoder(f, a.sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: a.sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

// writeMP3 encodes through the configured external encoder: the assembled
// track is written as a temporary wav next to the target and handed to the
// encoder command with the bitrate appended.
func (a *Assembler) writeMP3(ctx context.Context, path string, samples []int) error {
	if len(a.mp3Cmd) == 0 {
		return fmt.Errorf("mp3 encoder command not configured")
	}
	tmp, err := os.CreateTemp(a.outputDir, "assemble-*.wav")
	if err != nil {
		return fmt.Errorf("create temp wav: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := a.writeWAV(tmpPath, samples); err != nil {
		return err
	}

	args := append([]string{}, a.mp3Cmd[1:]...)
	if a.mp3Bitrate > 0 {
		args = append(args, "-b", strconv.Itoa(a.mp3Bitrate))
	}
	args = append(args, tmpPath, path)
	cmd := exec.CommandContext(ctx, a.mp3Cmd[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mp3 encoder failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// gainDB maps a loudness multiplier to decibels: 1.2 becomes +4 dB.
func gainDB(multiplier float64) float64 {
	return 20 * (multiplier - 1.0)
}

func applyGain(samples []int, db float64) {
	factor := math.Pow(10, db/20)
	for i, s := range samples {
		v := float64(s) * factor
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		samples[i] = int(v)
	}
}
