package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind        string   `yaml:"bind"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// SynthConfig selects and configures the speech synthesis backend.
type SynthConfig struct {
	Mode          string `yaml:"mode"` // remote, exec, mock
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	Command       string `yaml:"command"`
	CallTimeoutMS int    `yaml:"call_timeout_ms"`
	PacingDelayMS int    `yaml:"pacing_delay_ms"`

	DefaultLanguage    string  `yaml:"default_language"`
	DefaultSpeaker     string  `yaml:"default_speaker"`
	DefaultPace        float64 `yaml:"default_pace"`
	DefaultSampleRate  int     `yaml:"default_sample_rate"`
	DefaultModel       string  `yaml:"default_model"`
	DefaultTemperature float64 `yaml:"default_temperature"`
}

type ChunkingConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars"`
}

// ProsodyConfig holds per-kind pause and loudness treatment applied at
// parse time. Only headings carry a loudness boost above 1.0.
type ProsodyConfig struct {
	H1LoudnessBoost float64 `yaml:"h1_loudness_boost"`
	H2LoudnessBoost float64 `yaml:"h2_loudness_boost"`
	H3LoudnessBoost float64 `yaml:"h3_loudness_boost"`

	PauseAfterH1MS        int `yaml:"pause_after_h1_ms"`
	PauseAfterH2MS        int `yaml:"pause_after_h2_ms"`
	PauseAfterH3MS        int `yaml:"pause_after_h3_ms"`
	PauseAfterParagraphMS int `yaml:"pause_after_paragraph_ms"`
	PauseAfterBulletMS    int `yaml:"pause_after_bullet_ms"`
}

type PathsConfig struct {
	DocumentsDir    string `yaml:"documents_dir"`
	SpeechOutputDir string `yaml:"speech_output_dir"`
}

type AuditConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxJobs       int    `yaml:"max_jobs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type EncoderConfig struct {
	MP3Command string `yaml:"mp3_command"`
	MP3Bitrate int    `yaml:"mp3_bitrate"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Synth       SynthConfig     `yaml:"synth"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	Prosody     ProsodyConfig   `yaml:"prosody"`
	Paths       PathsConfig     `yaml:"paths"`
	Audit       AuditConfig     `yaml:"audit"`
	Encoder     EncoderConfig   `yaml:"encoder"`
}

func Default() Config {
	return Config{
		RuntimeName: "vaachak-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Synth: SynthConfig{
			Mode:               "remote",
			BaseURL:            "https://api.sarvam.ai",
			CallTimeoutMS:      60000,
			PacingDelayMS:      200,
			DefaultLanguage:    "hi-IN",
			DefaultSpeaker:     "shubh",
			DefaultPace:        1.1,
			DefaultSampleRate:  48000,
			DefaultModel:       "bulbul:v3",
			DefaultTemperature: 0.6,
		},
		Chunking: ChunkingConfig{
			MaxChunkChars: 2000,
		},
		Prosody: ProsodyConfig{
			H1LoudnessBoost:       1.3,
			H2LoudnessBoost:       1.2,
			H3LoudnessBoost:       1.1,
			PauseAfterH1MS:        800,
			PauseAfterH2MS:        600,
			PauseAfterH3MS:        400,
			PauseAfterParagraphMS: 300,
			PauseAfterBulletMS:    200,
		},
		Paths: PathsConfig{
			DocumentsDir:    "./data/documents",
			SpeechOutputDir: "./data/speech",
		},
		Audit: AuditConfig{
			Path:          "./data/vaachak-audit.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxJobs:       10000,
		},
		Encoder: EncoderConfig{
			MP3Command: "lame --quiet",
			MP3Bitrate: 192,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VAACHAK_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VAACHAK_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VAACHAK_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VAACHAK_HTTP_PORT")
	overrideStringSlice(&cfg.HTTP.CORSOrigins, "VAACHAK_HTTP_CORS_ORIGINS")
	overrideString(&cfg.Telemetry.LogLevel, "VAACHAK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VAACHAK_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VAACHAK_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VAACHAK_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "VAACHAK_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VAACHAK_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VAACHAK_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VAACHAK_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VAACHAK_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VAACHAK_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VAACHAK_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VAACHAK_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VAACHAK_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Synth.Mode, "VAACHAK_SYNTH_MODE")
	overrideString(&cfg.Synth.BaseURL, "VAACHAK_SYNTH_BASE_URL")
	overrideString(&cfg.Synth.APIKey, "VAACHAK_SYNTH_API_KEY")
	overrideString(&cfg.Synth.Command, "VAACHAK_SYNTH_COMMAND")
	overrideInt(&cfg.Synth.CallTimeoutMS, "VAACHAK_SYNTH_CALL_TIMEOUT_MS")
	overrideInt(&cfg.Synth.PacingDelayMS, "VAACHAK_SYNTH_PACING_DELAY_MS")
	overrideString(&cfg.Synth.DefaultLanguage, "VAACHAK_SYNTH_DEFAULT_LANGUAGE")
	overrideString(&cfg.Synth.DefaultSpeaker, "VAACHAK_SYNTH_DEFAULT_SPEAKER")
	overrideFloat(&cfg.Synth.DefaultPace, "VAACHAK_SYNTH_DEFAULT_PACE")
	overrideInt(&cfg.Synth.DefaultSampleRate, "VAACHAK_SYNTH_DEFAULT_SAMPLE_RATE")
	overrideString(&cfg.Synth.DefaultModel, "VAACHAK_SYNTH_DEFAULT_MODEL")
	overrideFloat(&cfg.Synth.DefaultTemperature, "VAACHAK_SYNTH_DEFAULT_TEMPERATURE")
	overrideInt(&cfg.Chunking.MaxChunkChars, "VAACHAK_CHUNKING_MAX_CHUNK_CHARS")
	overrideString(&cfg.Paths.DocumentsDir, "VAACHAK_PATHS_DOCUMENTS_DIR")
	overrideString(&cfg.Paths.SpeechOutputDir, "VAACHAK_PATHS_SPEECH_OUTPUT_DIR")
	overrideString(&cfg.Audit.Path, "VAACHAK_AUDIT_PATH")
	overrideString(&cfg.Audit.RetentionMode, "VAACHAK_AUDIT_RETENTION_MODE")
	overrideInt(&cfg.Audit.RetentionDays, "VAACHAK_AUDIT_RETENTION_DAYS")
	overrideInt(&cfg.Audit.MaxJobs, "VAACHAK_AUDIT_MAX_JOBS")
	overrideBool(&cfg.Audit.VacuumOnStart, "VAACHAK_AUDIT_VACUUM_ON_START")
	overrideString(&cfg.Encoder.MP3Command, "VAACHAK_ENCODER_MP3_COMMAND")
	overrideInt(&cfg.Encoder.MP3Bitrate, "VAACHAK_ENCODER_MP3_BITRATE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Synth.Mode {
	case "remote", "exec", "mock":
	default:
		return errors.New("synth.mode must be one of remote|exec|mock")
	}
	if cfg.Synth.Mode == "remote" && cfg.Synth.BaseURL == "" {
		return errors.New("synth.base_url must be set when mode=remote")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if cfg.Synth.CallTimeoutMS <= 0 {
		return errors.New("synth.call_timeout_ms must be positive")
	}
	if cfg.Synth.PacingDelayMS < 0 {
		return errors.New("synth.pacing_delay_ms must be >= 0")
	}
	if cfg.Synth.DefaultPace < 0.5 || cfg.Synth.DefaultPace > 2.0 {
		return errors.New("synth.default_pace must be between 0.5 and 2.0")
	}
	if cfg.Synth.DefaultSampleRate <= 0 {
		return errors.New("synth.default_sample_rate must be positive")
	}
	if cfg.Synth.DefaultTemperature < 0 || cfg.Synth.DefaultTemperature > 1 {
		return errors.New("synth.default_temperature must be between 0 and 1")
	}
	if cfg.Chunking.MaxChunkChars <= 0 {
		return errors.New("chunking.max_chunk_chars must be positive")
	}
	if cfg.Prosody.H1LoudnessBoost < 1.0 || cfg.Prosody.H2LoudnessBoost < 1.0 || cfg.Prosody.H3LoudnessBoost < 1.0 {
		return errors.New("prosody loudness boosts must be >= 1.0")
	}
	if cfg.Prosody.PauseAfterH1MS < 0 || cfg.Prosody.PauseAfterH2MS < 0 || cfg.Prosody.PauseAfterH3MS < 0 ||
		cfg.Prosody.PauseAfterParagraphMS < 0 || cfg.Prosody.PauseAfterBulletMS < 0 {
		return errors.New("prosody pauses must be >= 0")
	}
	if cfg.Paths.DocumentsDir == "" {
		return errors.New("paths.documents_dir must not be empty")
	}
	if cfg.Paths.SpeechOutputDir == "" {
		return errors.New("paths.speech_output_dir must not be empty")
	}
	if cfg.Audit.Path == "" {
		return errors.New("audit.path must not be empty")
	}
	switch cfg.Audit.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("audit.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Audit.RetentionDays < 0 {
		return errors.New("audit.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Encoder.MP3Bitrate <= 0 {
		return errors.New("encoder.mp3_bitrate must be positive")
	}
	return nil
}
