package synth

import (
	"context"
	"errors"

	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/markdown"
)

// Settings are the tunable voice parameters sent with every synthesis call.
// Supplied per generation request; never persisted.
type Settings struct {
	TargetLanguageCode  string  `json:"target_language_code"`
	Speaker             string  `json:"speaker"`
	Pace                float64 `json:"pace"`
	SpeechSampleRate    int     `json:"speech_sample_rate"`
	Model               string  `json:"model"`
	Temperature         float64 `json:"temperature"`
	EnablePreprocessing bool    `json:"enable_preprocessing"`

	HeadingLoudnessBoost float64 `json:"heading_loudness_boost"`
	PauseAfterHeadingMS  int     `json:"pause_after_heading_ms"`
	PauseAfterBulletMS   int     `json:"pause_after_bullet_ms"`
}

// SettingsFromConfig builds request defaults from the synth config section.
func SettingsFromConfig(cfg config.SynthConfig) Settings {
	return Settings{
		TargetLanguageCode:   cfg.DefaultLanguage,
		Speaker:              cfg.DefaultSpeaker,
		Pace:                 cfg.DefaultPace,
		SpeechSampleRate:     cfg.DefaultSampleRate,
		Model:                cfg.DefaultModel,
		Temperature:          cfg.DefaultTemperature,
		EnablePreprocessing:  true,
		HeadingLoudnessBoost: 1.2,
		PauseAfterHeadingMS:  500,
		PauseAfterBulletMS:   300,
	}
}

// Validate enforces the accepted ranges for voice settings. Requests carry
// arbitrary values; nothing out of range may reach a synthesis backend.
func (s Settings) Validate() error {
	if s.Pace < 0.5 || s.Pace > 2.0 {
		return errors.New("pace must be between 0.5 and 2.0")
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return errors.New("temperature must be between 0 and 1")
	}
	if s.HeadingLoudnessBoost < 1.0 || s.HeadingLoudnessBoost > 1.5 {
		return errors.New("heading_loudness_boost must be between 1.0 and 1.5")
	}
	if s.PauseAfterHeadingMS < 0 || s.PauseAfterHeadingMS > 2000 {
		return errors.New("pause_after_heading_ms must be between 0 and 2000")
	}
	if s.PauseAfterBulletMS < 0 || s.PauseAfterBulletMS > 1000 {
		return errors.New("pause_after_bullet_ms must be between 0 and 1000")
	}
	return nil
}

// Result is the outcome of synthesizing one chunk. Audio holds decoded
// bytes on success and is cached separately from job snapshots.
type Result struct {
	ChunkID    int
	Success    bool
	Audio      []byte
	DurationMS int
	Err        string
}

// CallStat is the audit record for one synthesis call, parallel to Result.
type CallStat struct {
	ChunkID        int    `json:"chunk_id"`
	CharactersSent int    `json:"characters_sent"`
	BytesSent      int    `json:"bytes_sent"`
	BytesReceived  int    `json:"bytes_received"`
	DurationMS     int    `json:"duration_ms"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// Synthesizer converts one content chunk into audio. Implementations never
// return an error past this boundary; failures are captured in the Result
// and CallStat instead.
type Synthesizer interface {
	Synthesize(ctx context.Context, chunk markdown.ContentChunk, settings Settings) (Result, CallStat)
}

// headingPace slows delivery slightly for headings; a deliberate prosody
// rule, floored at 0.9.
func headingPace(kind markdown.ChunkKind, pace float64) float64 {
	if kind.IsHeading() {
		if p := pace - 0.1; p > 0.9 {
			return p
		}
		return 0.9
	}
	return pace
}

// pcmBytesPerMS is the assumed decode rate for the duration heuristic:
// 48kHz 16-bit mono PCM is roughly 96 bytes per millisecond.
const pcmBytesPerMS = 96

func estimateDurationMS(audio []byte) int {
	return len(audio) / pcmBytesPerMS
}
