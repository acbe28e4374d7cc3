package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	AppEnv             string
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Provider selection — which adapter the registry resolves per media type.
	// Video: "runway", "veo", "placeholder". Audio: "elevenlabs", "openai", "placeholder".
	VideoProvider string
	AudioProvider string

	// Runway (poll-based video generation)
	RunwayAPIKey string

	// Veo (alternative video provider, same Gemini API key)
	GeminiKey string
	VeoModel  string

	// ElevenLabs (preferred audio provider)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// OpenAI (alternative audio provider, TTS endpoint)
	OpenAIKey string

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "story-media"),
		VideoProvider:         getEnv("VIDEO_PROVIDER", "runway"),
		AudioProvider:         getEnv("AUDIO_PROVIDER", "elevenlabs"),
		RunwayAPIKey:          getEnv("RUNWAY_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		VeoModel:              getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 2),
	}

	// Validate required fields. Provider credentials are not required:
	// the registry falls back to placeholder adapters when a key is absent.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
