package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sceneforge/internal/models"
)

// ---------------------------------------------------------------------------
// AnalyzerService
// Samples frames from a finished video and asks a vision model to describe
// the content. Results feed clip naming and keywording in the editor; a
// failed analysis is always recoverable, the caller records a warning and
// moves on.
// ---------------------------------------------------------------------------

const (
	defaultAnalyzerModel  = "gpt-4o"
	defaultAnalyzerFrames = 3
)

type AnalyzerService struct {
	client    *openai.Client
	model     string
	numFrames int
	ffmpeg    *FFmpegService
}

// NewAnalyzerService creates an analyzer backed by an OpenAI vision model.
// model and numFrames fall back to defaults when zero-valued.
func NewAnalyzerService(apiKey, model string, numFrames int, ffmpeg *FFmpegService) *AnalyzerService {
	if model == "" {
		model = defaultAnalyzerModel
	}
	if numFrames < 1 {
		numFrames = defaultAnalyzerFrames
	}
	return &AnalyzerService{
		client:    openai.NewClient(apiKey),
		model:     model,
		numFrames: numFrames,
		ffmpeg:    ffmpeg,
	}
}

type analysisResponse struct {
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description"`
	Tags             []string `json:"tags"`
}

// Describe extracts frames from videoPath and returns the model's content
// description. includeTags requests searchable keywords as well.
func (s *AnalyzerService) Describe(ctx context.Context, videoPath string, includeTags bool) (*models.AnalysisResult, error) {
	frameDir, err := os.MkdirTemp(s.ffmpeg.tempDir, "frames-")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame dir: %w", err)
	}
	defer os.RemoveAll(frameDir)

	framePaths, err := s.ffmpeg.ExtractFrames(ctx, videoPath, frameDir, s.numFrames)
	if err != nil {
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}

	parts := make([]openai.ChatMessagePart, 0, len(framePaths)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: buildAnalysisPrompt(len(framePaths), includeTags),
	})
	for _, fp := range framePaths {
		data, err := os.ReadFile(fp)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %s: %w", fp, err)
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
				Detail: openai.ImageURLDetailLow,
			},
		})
	}

	log.Printf("[Analyzer] Describing video %s (%d frames, model=%s)", videoPath, len(framePaths), s.model)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision model")
	}

	rawContent := resp.Choices[0].Message.Content

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(rawContent), &parsed); err != nil {
		log.Printf("[Analyzer] parse failed: %v (raw: %s)", err, truncate(rawContent, 500))
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if strings.TrimSpace(parsed.Description) == "" {
		return nil, fmt.Errorf("analysis has no description (raw: %s)", truncate(rawContent, 500))
	}

	result := &models.AnalysisResult{
		Description:      parsed.Description,
		ShortDescription: parsed.ShortDescription,
		AnalyzedBy:       s.model,
		AnalyzedAt:       time.Now().UTC(),
	}
	if includeTags {
		result.Tags = parsed.Tags
	}

	log.Printf("[Analyzer] Description: %q", truncate(parsed.Description, 120))
	return result, nil
}

func buildAnalysisPrompt(numFrames int, includeTags bool) string {
	prompt := fmt.Sprintf(`These %d images are frames sampled evenly from one video clip.
Describe what happens in the clip for a video editor's media notes.

Respond as JSON with these fields:
- description: 2-3 sentences covering the subject, setting, and any visible motion or change across the frames.
- short_description: at most 8 words, suitable as a clip name.`, numFrames)

	if includeTags {
		prompt += `
- tags: 5-10 lowercase keywords an editor would search by (subjects, location, mood, shot type).`
	} else {
		prompt += `
- tags: an empty array.`
	}
	return prompt
}
