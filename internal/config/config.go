package config

import (
	"fmt"
	"time"
)

const (
	GeneratorProviderGemini = "gemini"
	GeneratorProviderOpenAI = "openai"

	ObjectStoreS3    = "s3"
	ObjectStoreLocal = "local"

	TranscriptLogFile     = "file"
	TranscriptLogPostgres = "postgres"

	SummarizerModeProcess   = "process"
	SummarizerModeInProcess = "inprocess"
)

type Config struct {
	Env string

	DiscordToken          string
	DiscordGuildID        string
	DiscordVCID           string
	DiscordCountOtherBots bool

	TranscribeLanguage         string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	STTPrimingPrompt           string
	STTMinConfidence           float64

	VADMinSpeechMS         int
	VADMinSilenceMS        int
	VADNoSpeechThreshold   float64
	AudioSourceSampleRate  int
	AudioTargetSampleRate  int
	TrackPacketQueueLength int

	ClassifierURL   string
	ClassifierToken string

	Generator GeneratorConfig

	DecisionCooldownSec int
	DecisionWindowSize  int
	DecisionQueueSize   int

	Storage StorageConfig

	TranscriptLogBackend string
	TranscriptLogDir     string
	DatabaseURL          string

	SnapshotIntervalSec int
	SummarizeEnabled    bool
	SummarizerMode      string
	SummarizerCommand   string
	RecapPollAttempts   int
	RecapPollDelaySec   int
	SessionStatusURL    string
}

type GeneratorConfig struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	MaxAttempts   int
}

type StorageConfig struct {
	Backend        string
	BucketName     string
	Region         string
	EndpointURL    string
	LocalObjectDir string
}

// SummarizerConfig is the subset used by the summarizer command.
type SummarizerConfig struct {
	Env       string
	Generator GeneratorConfig
	Storage   StorageConfig
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	for _, p := range c.positiveFieldChecks() {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.AudioTargetSampleRate > c.AudioSourceSampleRate {
		return fmt.Errorf("AUDIO_TARGET_RATE must not exceed AUDIO_SOURCE_RATE, got %d > %d", c.AudioTargetSampleRate, c.AudioSourceSampleRate)
	}
	switch c.TranscriptLogBackend {
	case TranscriptLogFile:
		if c.TranscriptLogDir == "" {
			return fmt.Errorf("TRANSCRIPT_LOG_DIR is required when TRANSCRIPT_LOG_BACKEND=file")
		}
	case TranscriptLogPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when TRANSCRIPT_LOG_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("TRANSCRIPT_LOG_BACKEND is invalid: %q", c.TranscriptLogBackend)
	}
	switch c.SummarizerMode {
	case SummarizerModeProcess:
		if c.SummarizeEnabled && c.SummarizerCommand == "" {
			return fmt.Errorf("SUMMARIZER_COMMAND is required when SUMMARIZER_MODE=process")
		}
	case SummarizerModeInProcess:
	default:
		return fmt.Errorf("SUMMARIZER_MODE is invalid: %q", c.SummarizerMode)
	}
	if c.STTMinConfidence < 0 || c.STTMinConfidence > 1 {
		return fmt.Errorf("STT_MIN_CONFIDENCE must be within [0, 1], got %v", c.STTMinConfidence)
	}
	if err := c.Generator.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) DecisionCooldown() time.Duration {
	return time.Duration(c.DecisionCooldownSec) * time.Second
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSec) * time.Second
}

func (c *Config) RecapPollDelay() time.Duration {
	return time.Duration(c.RecapPollDelaySec) * time.Second
}

func (c *Config) VADMinSpeech() time.Duration {
	return time.Duration(c.VADMinSpeechMS) * time.Millisecond
}

func (c *Config) VADMinSilence() time.Duration {
	return time.Duration(c.VADMinSilenceMS) * time.Millisecond
}

func (g *GeneratorConfig) Validate() error {
	switch g.Provider {
	case GeneratorProviderGemini:
		if g.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when GENERATOR_PROVIDER=gemini")
		}
		if g.GeminiModel == "" {
			return fmt.Errorf("GEMINI_MODEL is required")
		}
	case GeneratorProviderOpenAI:
		if g.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when GENERATOR_PROVIDER=openai")
		}
		if g.OpenAIModel == "" {
			return fmt.Errorf("OPENAI_MODEL is required")
		}
	default:
		return fmt.Errorf("GENERATOR_PROVIDER is invalid: %q", g.Provider)
	}
	if g.MaxAttempts <= 0 {
		return fmt.Errorf("GENERATOR_MAX_ATTEMPTS must be positive, got %d", g.MaxAttempts)
	}
	return nil
}

func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case ObjectStoreS3:
		if s.BucketName == "" {
			return fmt.Errorf("AWS_BUCKET_NAME is required when OBJECT_STORE=s3")
		}
		if s.Region == "" {
			return fmt.Errorf("AWS_REGION is required when OBJECT_STORE=s3")
		}
	case ObjectStoreLocal:
		if s.LocalObjectDir == "" {
			return fmt.Errorf("LOCAL_OBJECT_DIR is required when OBJECT_STORE=local")
		}
	default:
		return fmt.Errorf("OBJECT_STORE is invalid: %q", s.Backend)
	}
	return nil
}

func (c *SummarizerConfig) Validate() error {
	if err := c.Generator.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}

func (c *SummarizerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "DISCORD_VC_ID", value: c.DiscordVCID},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "CLASSIFIER_URL", value: c.ClassifierURL},
		{name: "SESSION_STATUS_URL", value: c.SessionStatusURL},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveFieldChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "VAD_MIN_SPEECH_MS", value: c.VADMinSpeechMS},
		{name: "VAD_MIN_SILENCE_MS", value: c.VADMinSilenceMS},
		{name: "AUDIO_SOURCE_RATE", value: c.AudioSourceSampleRate},
		{name: "AUDIO_TARGET_RATE", value: c.AudioTargetSampleRate},
		{name: "TRACK_PACKET_QUEUE_LENGTH", value: c.TrackPacketQueueLength},
		{name: "DECISION_COOLDOWN_SEC", value: c.DecisionCooldownSec},
		{name: "DECISION_WINDOW_SIZE", value: c.DecisionWindowSize},
		{name: "DECISION_QUEUE_SIZE", value: c.DecisionQueueSize},
		{name: "SNAPSHOT_INTERVAL_SEC", value: c.SnapshotIntervalSec},
		{name: "RECAP_POLL_ATTEMPTS", value: c.RecapPollAttempts},
		{name: "RECAP_POLL_DELAY_SEC", value: c.RecapPollDelaySec},
	}
}
