package services

import (
	"context"
	"fmt"

	"sceneforge/internal/config"
)

// ---------------------------------------------------------------------------
// VideoProvider — common interface for video generation backends
// Veo, Replicate, and Sora implement this interface so the workflow can use
// whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// GenerateRequest carries everything a backend needs for one generation.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	InputImage     string // local path or URI; used as the first frame
	InputVideo     string // local path or URI; used for video extension
	EndImage       string // optional end frame for interpolation
}

// GenerateResult is the common result type from any provider. Exactly one of
// VideoData and VideoURL is set: some backends hand back the bytes directly,
// others return a remote asset that needs a separate fetch.
type GenerateResult struct {
	VideoData []byte
	VideoURL  string
	Model     string
	JobID     string
}

// VideoProvider is the interface that any video generation backend must
// implement. Generate blocks through the provider's own polling cycle and
// returns only when the video is ready or the generation has failed.
type VideoProvider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// NewVideoProvider builds the provider selected by name, falling back to the
// configured default when name is empty.
func NewVideoProvider(cfg *config.Config, name string) (VideoProvider, error) {
	if name == "" {
		name = cfg.VideoProvider
	}
	switch name {
	case "veo":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("veo provider selected but GOOGLE_API_KEY is not set")
		}
		return NewVeoService(cfg.GoogleAPIKey, cfg.VeoModel), nil
	case "replicate":
		if cfg.ReplicateToken == "" {
			return nil, fmt.Errorf("replicate provider selected but REPLICATE_API_TOKEN is not set")
		}
		return NewReplicateService(cfg.ReplicateToken, cfg.ReplicateModel), nil
	case "sora":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("sora provider selected but OPENAI_API_KEY is not set")
		}
		return NewSoraService(cfg.OpenAIKey, cfg.SoraModel), nil
	default:
		return nil, fmt.Errorf("unknown video provider %q (want veo, replicate, or sora)", name)
	}
}
