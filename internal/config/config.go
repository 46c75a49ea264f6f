package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultPersonality is used when PERSONALITY_PROMPT is not configured.
const defaultPersonality = "You are a friendly and helpful voice assistant. Keep your answers short and conversational so they sound natural when spoken aloud."

// Config aggregates all service settings.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Speech  SpeechConfig
	Session SessionConfig
	Storage StorageConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech := loadSpeechConfig()

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Speech: speech, Session: session, Storage: storage}, nil
}

// ServerConfig describes the HTTP listener and static assets.
type ServerConfig struct {
	Addr      string
	PublicDir string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	return ServerConfig{
		Addr:      addr,
		PublicDir: getEnvOrDefault("PUBLIC_DIR", "public"),
	}, nil
}

// AIConfig describes the completion provider and the personality prompt.
type AIConfig struct {
	// Provider selects the completion backend: "openai" (default) or "ark".
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Personality string
	// GatewayTimeout bounds every upstream call.
	GatewayTimeout time.Duration
	Ark            ArkConfig
}

// ArkConfig carries the alternative Ark completion credentials.
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// OpenAIEnabled reports whether OpenAI credentials are present.
func (c AIConfig) OpenAIEnabled() bool {
	return c.APIKey != ""
}

// ArkEnabled reports whether the Ark provider is selected and configured.
func (c AIConfig) ArkEnabled() bool {
	if c.Provider != "ark" {
		return false
	}
	return c.Ark.Model != "" && (c.Ark.APIKey != "" || (c.Ark.AccessKey != "" && c.Ark.SecretKey != ""))
}

func loadAIConfig() (AIConfig, error) {
	maxTokens, err := parseIntEnv("CHAT_MAX_TOKENS", 500)
	if err != nil {
		return AIConfig{}, err
	}

	temperature, err := parseFloatEnv("CHAT_TEMPERATURE", 0.7)
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds, err := parseIntEnv("GATEWAY_TIMEOUT", 30)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:       getEnvOrDefault("AI_PROVIDER", "openai"),
		APIKey:         strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:        strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Model:          getEnvOrDefault("CHAT_MODEL", "gpt-3.5-turbo"),
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		Personality:    getEnvOrDefault("PERSONALITY_PROMPT", defaultPersonality),
		GatewayTimeout: time.Duration(timeoutSeconds) * time.Second,
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
	}, nil
}

// SpeechConfig describes transcription, synthesis and transcoding.
type SpeechConfig struct {
	ASRModel   string
	TTSModel   string
	TTSVoice   string
	FFmpegPath string
}

func loadSpeechConfig() SpeechConfig {
	return SpeechConfig{
		ASRModel:   getEnvOrDefault("ASR_MODEL", "whisper-1"),
		TTSModel:   getEnvOrDefault("TTS_MODEL", "tts-1"),
		TTSVoice:   getEnvOrDefault("TTS_VOICE", "alloy"),
		FFmpegPath: getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
	}
}

// SessionConfig bounds the conversation store.
type SessionConfig struct {
	Capacity int
	IdleTTL  time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	capacity, err := parseIntEnv("SESSION_CAPACITY", 1024)
	if err != nil {
		return SessionConfig{}, err
	}

	idleMinutes, err := parseIntEnv("SESSION_IDLE_TTL_MINUTES", 30)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		Capacity: capacity,
		IdleTTL:  time.Duration(idleMinutes) * time.Minute,
	}, nil
}

// StorageConfig describes where generated audio lives and for how long.
type StorageConfig struct {
	AudioDir string
	AudioTTL time.Duration
}

func loadStorageConfig() (StorageConfig, error) {
	ttlMinutes, err := parseIntEnv("AUDIO_TTL_MINUTES", 60)
	if err != nil {
		return StorageConfig{}, err
	}

	return StorageConfig{
		AudioDir: getEnvOrDefault("AUDIO_DIR", "data/audio"),
		AudioTTL: time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
