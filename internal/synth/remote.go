package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/markdown"
)

const (
	credentialHeader = "api-subscription-key"
	errorBodyLimit   = 512
)

type remotePayload struct {
	Text                string  `json:"text"`
	TargetLanguageCode  string  `json:"target_language_code"`
	Speaker             string  `json:"speaker"`
	Pace                float64 `json:"pace"`
	SpeechSampleRate    int     `json:"speech_sample_rate"`
	EnablePreprocessing bool    `json:"enable_preprocessing"`
	Model               string  `json:"model"`
}

type remoteResponse struct {
	Audios []string `json:"audios"`
}

// RemoteSynth calls a hosted speech-synthesis API over HTTP. One request is
// issued per chunk; the response carries base64-encoded audio payloads of
// which only the first is used.
type RemoteSynth struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewRemoteSynth(cfg config.SynthConfig, log *slog.Logger) *RemoteSynth {
	return &RemoteSynth{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: time.Duration(cfg.CallTimeoutMS) * time.Millisecond,
		},
		logger: log.With(slog.String("component", "remote-synth")),
	}
}

// Configured reports whether a usable credential is present.
func (r *RemoteSynth) Configured() bool {
	return r.apiKey != "" && r.apiKey != "your-api-key-here"
}

func (r *RemoteSynth) Synthesize(ctx context.Context, chunk markdown.ContentChunk, settings Settings) (Result, CallStat) {
	start := time.Now()
	chars := chunk.CharCount

	if !r.Configured() {
		// Short-circuit before any network I/O.
		const msg = "synthesis API key not configured"
		return failure(chunk.ID, msg), CallStat{
			ChunkID:        chunk.ID,
			CharactersSent: chars,
			Success:        false,
			Error:          msg,
		}
	}

	payload := remotePayload{
		Text:                chunk.Text,
		TargetLanguageCode:  settings.TargetLanguageCode,
		Speaker:             settings.Speaker,
		Pace:                headingPace(chunk.Kind, settings.Pace),
		SpeechSampleRate:    settings.SpeechSampleRate,
		EnablePreprocessing: settings.EnablePreprocessing,
		Model:               settings.Model,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return failure(chunk.ID, err.Error()), CallStat{
			ChunkID:        chunk.ID,
			CharactersSent: chars,
			DurationMS:     int(time.Since(start).Milliseconds()),
			Success:        false,
			Error:          err.Error(),
		}
	}
	bytesSent := len(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return failure(chunk.ID, err.Error()), stat(chunk.ID, chars, bytesSent, 0, start, err.Error())
	}
	req.Header.Set(credentialHeader, r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		// Transport fault: nothing was received.
		return failure(chunk.ID, err.Error()), stat(chunk.ID, chars, bytesSent, 0, start, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(chunk.ID, err.Error()), stat(chunk.ID, chars, bytesSent, 0, start, err.Error())
	}
	bytesReceived := len(respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := respBody
		if len(excerpt) > errorBodyLimit {
			excerpt = excerpt[:errorBodyLimit]
		}
		msg := fmt.Sprintf("API error: %d - %s", resp.StatusCode, excerpt)
		return failure(chunk.ID, msg), stat(chunk.ID, chars, bytesSent, bytesReceived, start, msg)
	}

	var decoded remoteResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		msg := fmt.Sprintf("malformed response: %v", err)
		return failure(chunk.ID, msg), stat(chunk.ID, chars, bytesSent, bytesReceived, start, msg)
	}
	if len(decoded.Audios) == 0 || decoded.Audios[0] == "" {
		const msg = "no audio in response"
		return failure(chunk.ID, msg), stat(chunk.ID, chars, bytesSent, bytesReceived, start, msg)
	}

	audio, err := base64.StdEncoding.DecodeString(decoded.Audios[0])
	if err != nil {
		msg := fmt.Sprintf("decode audio: %v", err)
		return failure(chunk.ID, msg), stat(chunk.ID, chars, bytesSent, bytesReceived, start, msg)
	}

	r.logger.Debug("chunk synthesized",
		slog.Int("chunk_id", chunk.ID),
		slog.Int("characters", chars),
		slog.Int("audio_bytes", len(audio)))

	return Result{
			ChunkID:    chunk.ID,
			Success:    true,
			Audio:      audio,
			DurationMS: estimateDurationMS(audio),
		}, CallStat{
			ChunkID:        chunk.ID,
			CharactersSent: chars,
			BytesSent:      bytesSent,
			BytesReceived:  bytesReceived,
			DurationMS:     int(time.Since(start).Milliseconds()),
			Success:        true,
		}
}

func failure(chunkID int, msg string) Result {
	return Result{ChunkID: chunkID, Success: false, Err: msg}
}

func stat(chunkID, chars, sent, received int, start time.Time, errMsg string) CallStat {
	return CallStat{
		ChunkID:        chunkID,
		CharactersSent: chars,
		BytesSent:      sent,
		BytesReceived:  received,
		DurationMS:     int(time.Since(start).Milliseconds()),
		Success:        false,
		Error:          errMsg,
	}
}
