package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/gijiroku/internal/config"
	"github.com/joho/godotenv"
)

const defaultDotEnvFile = ".env"

type generatorEnv struct {
	Provider      string `env:"GENERATOR_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	MaxAttempts   int    `env:"GENERATOR_MAX_ATTEMPTS" envDefault:"3"`
}

type storageEnv struct {
	Backend        string `env:"OBJECT_STORE" envDefault:"s3"`
	BucketName     string `env:"AWS_BUCKET_NAME"`
	Region         string `env:"AWS_REGION" envDefault:"ap-northeast-2"`
	EndpointURL    string `env:"AWS_ENDPOINT_URL"`
	LocalObjectDir string `env:"LOCAL_OBJECT_DIR" envDefault:"./objects"`
}

type envConfig struct {
	Env string `env:"ENV" envDefault:"production"`

	DiscordToken          string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID        string `env:"DISCORD_GUILD_ID,required"`
	DiscordVCID           string `env:"DISCORD_VC_ID,required"`
	DiscordCountOtherBots bool   `env:"DISCORD_COUNT_OTHER_BOTS_AS_PARTICIPANTS" envDefault:"false"`

	TranscribeLanguage         string  `env:"TRANSCRIBE_LANGUAGE" envDefault:"ko-KR"`
	GoogleCloudProjectID       string  `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string  `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string  `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string  `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	STTPrimingPrompt           string  `env:"STT_PRIMING_PROMPT"`
	STTMinConfidence           float64 `env:"STT_MIN_CONFIDENCE" envDefault:"0"`

	VADMinSpeechMS         int     `env:"VAD_MIN_SPEECH_MS" envDefault:"100"`
	VADMinSilenceMS        int     `env:"VAD_MIN_SILENCE_MS" envDefault:"2000"`
	VADNoSpeechThreshold   float64 `env:"VAD_NO_SPEECH_THRESHOLD" envDefault:"0.02"`
	AudioSourceSampleRate  int     `env:"AUDIO_SOURCE_RATE" envDefault:"48000"`
	AudioTargetSampleRate  int     `env:"AUDIO_TARGET_RATE" envDefault:"16000"`
	TrackPacketQueueLength int     `env:"TRACK_PACKET_QUEUE_LENGTH" envDefault:"512"`

	ClassifierURL   string `env:"CLASSIFIER_URL" envDefault:"https://api-inference.huggingface.co/models/MoritzLaurer/mDeBERTa-v3-base-xnli-multilingual-nli-2mil7"`
	ClassifierToken string `env:"CLASSIFIER_TOKEN"`

	Generator generatorEnv

	DecisionCooldownSec int `env:"DECISION_COOLDOWN_SEC" envDefault:"30"`
	DecisionWindowSize  int `env:"DECISION_WINDOW_SIZE" envDefault:"25"`
	DecisionQueueSize   int `env:"DECISION_QUEUE_SIZE" envDefault:"256"`

	Storage storageEnv

	TranscriptLogBackend string `env:"TRANSCRIPT_LOG_BACKEND" envDefault:"file"`
	TranscriptLogDir     string `env:"TRANSCRIPT_LOG_DIR" envDefault:"./logs"`
	DatabaseURL          string `env:"DATABASE_URL"`

	SnapshotIntervalSec int    `env:"SNAPSHOT_INTERVAL_SEC" envDefault:"300"`
	SummarizeEnabled    bool   `env:"SUMMARIZE_ENABLED" envDefault:"true"`
	SummarizerMode      string `env:"SUMMARIZER_MODE" envDefault:"process"`
	SummarizerCommand   string `env:"SUMMARIZER_COMMAND" envDefault:"summarizer"`
	RecapPollAttempts   int    `env:"RECAP_POLL_ATTEMPTS" envDefault:"10"`
	RecapPollDelaySec   int    `env:"RECAP_POLL_DELAY_SEC" envDefault:"30"`
	SessionStatusURL    string `env:"SESSION_STATUS_URL" envDefault:"http://localhost:8080/api/sessions/status"`
}

type summarizerEnvConfig struct {
	Env       string `env:"ENV" envDefault:"production"`
	Generator generatorEnv
	Storage   storageEnv
}

// loadDotEnv loads a .env file into the process environment when one exists.
// Variables already set in the environment win.
func loadDotEnv() {
	file := os.Getenv("ENV_FILE")
	if file == "" {
		file = defaultDotEnvFile
	}
	if _, err := os.Stat(file); err != nil {
		return
	}
	if err := godotenv.Load(file); err != nil {
		slog.Warn("failed to load env file", "file", file, "error", err)
	}
}

func Load() (*internalconfig.Config, error) {
	loadDotEnv()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		DiscordToken:               raw.DiscordToken,
		DiscordGuildID:             raw.DiscordGuildID,
		DiscordVCID:                raw.DiscordVCID,
		DiscordCountOtherBots:      raw.DiscordCountOtherBots,
		TranscribeLanguage:         raw.TranscribeLanguage,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		STTPrimingPrompt:           raw.STTPrimingPrompt,
		STTMinConfidence:           raw.STTMinConfidence,
		VADMinSpeechMS:             raw.VADMinSpeechMS,
		VADMinSilenceMS:            raw.VADMinSilenceMS,
		VADNoSpeechThreshold:       raw.VADNoSpeechThreshold,
		AudioSourceSampleRate:      raw.AudioSourceSampleRate,
		AudioTargetSampleRate:      raw.AudioTargetSampleRate,
		TrackPacketQueueLength:     raw.TrackPacketQueueLength,
		ClassifierURL:              raw.ClassifierURL,
		ClassifierToken:            raw.ClassifierToken,
		Generator:                  raw.Generator.toConfig(),
		DecisionCooldownSec:        raw.DecisionCooldownSec,
		DecisionWindowSize:         raw.DecisionWindowSize,
		DecisionQueueSize:          raw.DecisionQueueSize,
		Storage:                    raw.Storage.toConfig(),
		TranscriptLogBackend:       raw.TranscriptLogBackend,
		TranscriptLogDir:           raw.TranscriptLogDir,
		DatabaseURL:                raw.DatabaseURL,
		SnapshotIntervalSec:        raw.SnapshotIntervalSec,
		SummarizeEnabled:           raw.SummarizeEnabled,
		SummarizerMode:             raw.SummarizerMode,
		SummarizerCommand:          raw.SummarizerCommand,
		RecapPollAttempts:          raw.RecapPollAttempts,
		RecapPollDelaySec:          raw.RecapPollDelaySec,
		SessionStatusURL:           raw.SessionStatusURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadSummarizer() (*internalconfig.SummarizerConfig, error) {
	loadDotEnv()

	var raw summarizerEnvConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	cfg := &internalconfig.SummarizerConfig{
		Env:       raw.Env,
		Generator: raw.Generator.toConfig(),
		Storage:   raw.Storage.toConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g generatorEnv) toConfig() internalconfig.GeneratorConfig {
	return internalconfig.GeneratorConfig{
		Provider:      g.Provider,
		GeminiAPIKey:  g.GeminiAPIKey,
		GeminiModel:   g.GeminiModel,
		OpenAIAPIKey:  g.OpenAIAPIKey,
		OpenAIBaseURL: g.OpenAIBaseURL,
		OpenAIModel:   g.OpenAIModel,
		MaxAttempts:   g.MaxAttempts,
	}
}

func (s storageEnv) toConfig() internalconfig.StorageConfig {
	return internalconfig.StorageConfig{
		Backend:        s.Backend,
		BucketName:     s.BucketName,
		Region:         s.Region,
		EndpointURL:    s.EndpointURL,
		LocalObjectDir: s.LocalObjectDir,
	}
}
