package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Project layout
	ProjectsRoot string
	ProjectName  string

	// Video generation provider: "veo", "replicate", or "sora"
	VideoProvider string

	// Google Veo
	GoogleAPIKey string
	VeoModel     string

	// Replicate
	ReplicateToken string
	ReplicateModel string

	// OpenAI (Sora video generation + frame analysis)
	OpenAIKey string
	SoraModel string

	// ElevenLabs (preferred TTS provider)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Cartesia (legacy TTS provider — used when ElevenLabs key is not set)
	CartesiaKey     string
	CartesiaURL     string
	CartesiaVoiceID string

	// D-ID lip-sync
	DIDAPIKey string

	// FFmpeg
	ProResProfile int // 0=Proxy, 1=LT, 2=422, 3=422HQ

	// Analyzer
	AnalyzerModel     string
	AnalyzerNumFrames int

	// Status API server
	ServeAddr          string
	CorsAllowedOrigins string
}

// Load reads configuration from the environment (with .env support) and
// validates that the selected provider has its credentials. All collaborators
// receive this struct explicitly; nothing reads the environment after Load
// returns.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		ProjectsRoot:       getEnv("PROJECTS_ROOT", "./projects"),
		ProjectName:        getEnv("PROJECT_NAME", "default"),
		VideoProvider:      getEnv("VIDEO_PROVIDER", "veo"),
		GoogleAPIKey:       getEnv("GOOGLE_API_KEY", ""),
		VeoModel:           getEnv("VEO_MODEL", "veo-2.0-generate-001"),
		ReplicateToken:     getEnv("REPLICATE_API_TOKEN", ""),
		ReplicateModel:     getEnv("REPLICATE_MODEL", "wan-video/wan-2.2-t2v-fast"),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		SoraModel:          getEnv("SORA_MODEL", "sora-2"),
		ElevenLabsKey:      getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:  getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:        getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:        getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:    getEnv("CARTESIA_VOICE_ID", ""),
		DIDAPIKey:          getEnv("DID_API_KEY", ""),
		ProResProfile:      getEnvInt("FFMPEG_PRORES_PROFILE", 2),
		AnalyzerModel:      getEnv("ANALYZER_MODEL", "gpt-4o"),
		AnalyzerNumFrames:  getEnvInt("ANALYZER_NUM_FRAMES", 8),
		ServeAddr:          getEnv("SERVE_ADDR", ":8080"),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}

	if cfg.ProResProfile < 0 || cfg.ProResProfile > 3 {
		return nil, fmt.Errorf("FFMPEG_PRORES_PROFILE must be 0-3, got %d", cfg.ProResProfile)
	}

	// Credential presence is checked by the provider factory when a
	// pipeline actually needs the provider, so read-only commands work
	// without API keys.
	switch cfg.VideoProvider {
	case "veo", "replicate", "sora":
	default:
		return nil, fmt.Errorf("unknown VIDEO_PROVIDER %q (want veo, replicate, or sora)", cfg.VideoProvider)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
