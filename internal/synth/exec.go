package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaanilabs/vaachak/internal/markdown"
)

// ExecSynth pipes chunk text to a local synthesizer command as JSON on stdin
// and reads a single JSON reply from stdout. Useful for offline models and
// deterministic test fixtures.
type ExecSynth struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Speaker    string  `json:"speaker"`
	Pace       float64 `json:"pace"`
	SampleRate int     `json:"sample_rate"`
	Model      string  `json:"model"`
}

type execReply struct {
	AudioBase64 string `json:"audio_base64"`
}

func NewExecSynth(command string) (*ExecSynth, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synth command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth command empty")
	}
	return &ExecSynth{cmd: args}, nil
}

func (e *ExecSynth) Synthesize(ctx context.Context, chunk markdown.ContentChunk, settings Settings) (Result, CallStat) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	chars := chunk.CharCount

	payload, err := json.Marshal(execRequest{
		Text:       chunk.Text,
		Language:   settings.TargetLanguageCode,
		Speaker:    settings.Speaker,
		Pace:       headingPace(chunk.Kind, settings.Pace),
		SampleRate: settings.SpeechSampleRate,
		Model:      settings.Model,
	})
	if err != nil {
		return failure(chunk.ID, err.Error()), stat(chunk.ID, chars, 0, 0, start, err.Error())
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("synth command failed: %v", err)
		return failure(chunk.ID, msg), stat(chunk.ID, chars, len(payload), stdout.Len(), start, msg)
	}

	var reply execReply
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &reply); err != nil {
		msg := fmt.Sprintf("malformed synth reply: %v", err)
		return failure(chunk.ID, msg), stat(chunk.ID, chars, len(payload), stdout.Len(), start, msg)
	}
	if reply.AudioBase64 == "" {
		const msg = "no audio in reply"
		return failure(chunk.ID, msg), stat(chunk.ID, chars, len(payload), stdout.Len(), start, msg)
	}

	audio, err := base64.StdEncoding.DecodeString(reply.AudioBase64)
	if err != nil {
		msg := fmt.Sprintf("decode audio: %v", err)
		return failure(chunk.ID, msg), stat(chunk.ID, chars, len(payload), stdout.Len(), start, msg)
	}

	return Result{
			ChunkID:    chunk.ID,
			Success:    true,
			Audio:      audio,
			DurationMS: estimateDurationMS(audio),
		}, CallStat{
			ChunkID:        chunk.ID,
			CharactersSent: chars,
			BytesSent:      len(payload),
			BytesReceived:  stdout.Len(),
			DurationMS:     int(time.Since(start).Milliseconds()),
			Success:        true,
		}
}
