package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Google Veo Video Generation Service
// Uses the Google Gen AI SDK. Supports text-to-video, image-to-video (the
// image becomes the first frame), and video extension.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel    = "veo-2.0-generate-001"
	veoPollInterval    = 10 * time.Second
	veoMaxPollDuration = 10 * time.Minute // Max time to wait for a single video
)

// VeoService generates videos via Google's Veo models.
type VeoService struct {
	apiKey string
	model  string
}

var _ VideoProvider = (*VeoService)(nil)

// NewVeoService creates a new Veo video generation service.
// model: the Veo model to use (empty string defaults to veo-2.0-generate-001)
func NewVeoService(apiKey, model string) *VeoService {
	if model == "" {
		model = defaultVeoModel
	}
	return &VeoService{
		apiKey: apiKey,
		model:  model,
	}
}

func (s *VeoService) Name() string { return "veo" }

// Generate starts a Veo generation and polls the async operation until done,
// cancelled, or timed out. Blocking the calling goroutine is intentional —
// each scene runs its pipeline sequentially.
func (s *VeoService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	config := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		EnhancePrompt:  true,
	}
	if req.NegativePrompt != "" {
		config.NegativePrompt = req.NegativePrompt
	}

	var firstFrame *genai.Image
	if req.InputImage != "" {
		if strings.HasPrefix(req.InputImage, "gs://") {
			firstFrame = &genai.Image{GCSURI: req.InputImage}
		} else {
			imageData, err := os.ReadFile(req.InputImage)
			if err != nil {
				return nil, fmt.Errorf("failed to read input image %s: %w", req.InputImage, err)
			}
			firstFrame = &genai.Image{
				ImageBytes: imageData,
				MIMEType:   imageMIMEType(req.InputImage),
			}
		}
	}

	log.Printf("[Veo] Starting video generation (model=%s, promptLen=%d, hasImage=%v)",
		s.model, len(req.Prompt), firstFrame != nil)

	operation, err := client.Models.GenerateVideos(ctx, s.model, req.Prompt, firstFrame, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}

	log.Printf("[Veo] Operation started: %s", operation.Name)

	// Poll until done, cancelled, or timed out
	deadline := time.Now().Add(veoMaxPollDuration)
	pollCount := 0
	for !operation.Done {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("video generation timed out after %v (polled %d times)", veoMaxPollDuration, pollCount)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(veoPollInterval):
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}

		log.Printf("[Veo] Poll %d: done=%v", pollCount, operation.Done)
	}

	if operation.Error != nil && len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}

	if operation.Response == nil {
		return nil, fmt.Errorf("no response in completed operation after %d polls (operation: %s)", pollCount, operation.Name)
	}

	// Videos blocked by RAI safety filters come back as a filtered count, not
	// an operation error.
	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return nil, fmt.Errorf("video blocked by safety filters: %d video(s) filtered, reasons: %s",
			operation.Response.RAIMediaFilteredCount, reasons)
	}

	if len(operation.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("no videos in response (operation: %s)", operation.Name)
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return nil, fmt.Errorf("generated video object is nil")
	}

	log.Printf("[Veo] Video ready, downloading...")

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[Veo] Video generated successfully (%d bytes, %d polls)", len(videoBytes), pollCount)

	return &GenerateResult{
		VideoData: videoBytes,
		Model:     s.model,
		JobID:     operation.Name,
	}, nil
}

func imageMIMEType(path string) string {
	switch {
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}
