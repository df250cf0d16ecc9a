package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration fields for the application.
type Config struct {
	Port        string
	DatabaseURL string

	// Model backend defaults. Tenants may carry their own key; these are the
	// global fallbacks.
	OpenAIAPIKey string
	OpenAIModel  string

	// Text-to-speech provider.
	TTSBaseURL        string
	TTSDefaultVoiceID string

	// Channel provider (validity lookup + message dispatch).
	ChannelAPIBaseURL string
	ChannelAPIKey     string

	// Calendar collaborator.
	CalendarBaseURL string
	CalendarAPIKey  string

	// Optional RabbitMQ fan-out of processed conversations.
	RabbitMQURL   string
	RabbitMQQueue string

	DedupWindow  time.Duration
	ChunkDelay   time.Duration
	HistoryLimit int
}

// LoadConfig loads configuration from environment variables.
// A .env file is honored when present; real environment variables win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:              os.Getenv("PORT"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       os.Getenv("OPENAI_MODEL"),
		TTSBaseURL:        os.Getenv("TTS_BASE_URL"),
		TTSDefaultVoiceID: os.Getenv("TTS_DEFAULT_VOICE_ID"),
		ChannelAPIBaseURL: os.Getenv("CHANNEL_API_BASE_URL"),
		ChannelAPIKey:     os.Getenv("CHANNEL_API_KEY"),
		CalendarBaseURL:   os.Getenv("CALENDAR_BASE_URL"),
		CalendarAPIKey:    os.Getenv("CALENDAR_API_KEY"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		RabbitMQQueue:     os.Getenv("RABBITMQ_QUEUE"),
		DedupWindow:       envDuration("DEDUP_WINDOW_SECONDS", 15) * time.Second,
		ChunkDelay:        envDuration("CHUNK_DELAY_MS", 1200) * time.Millisecond,
		HistoryLimit:      envInt("HISTORY_LIMIT", 20),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.TTSBaseURL == "" {
		cfg.TTSBaseURL = "https://api.elevenlabs.io"
	}
	if cfg.RabbitMQQueue == "" {
		cfg.RabbitMQQueue = "agent_events"
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	log.Info().Str("port", cfg.Port).Msg("Configuration loaded")
	return cfg, nil
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return v
}

func envDuration(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback))
}
