package services

import (
	"context"

	"sceneforge/internal/config"
)

// ---------------------------------------------------------------------------
// TTSService — common interface for text-to-speech providers
// Both ElevenLabs and Cartesia implement this interface so the workflow
// can use whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	Name() string
	// Synthesize converts text to audio and writes it to outputPath.
	// voiceID overrides the provider's default voice when non-empty.
	Synthesize(ctx context.Context, text, voiceID, outputPath string) error
}

// NewTTSService selects a TTS provider from the configuration:
// ElevenLabs when its key is set, Cartesia as the legacy fallback.
// Returns nil when no provider is configured; callers treat a nil service as
// "dialogue not supported".
func NewTTSService(cfg *config.Config) TTSService {
	if cfg.ElevenLabsKey != "" {
		return NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	}
	if cfg.CartesiaKey != "" {
		return NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID)
	}
	return nil
}
