package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ---------------------------------------------------------------------------
// OpenAI Sora Video Generation Service
// Uses the OpenAI videos REST API: create video job → poll by id →
// download content. An input image is attached as the first frame.
// ---------------------------------------------------------------------------

const (
	soraBaseURL        = "https://api.openai.com/v1"
	defaultSoraModel   = "sora-2"
	soraPollInterval   = 10 * time.Second
	soraMaxPollTimeout = 10 * time.Minute
)

// SoraService handles video generation via OpenAI's Sora models.
type SoraService struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ VideoProvider = (*SoraService)(nil)

// NewSoraService creates a new Sora video generation service.
func NewSoraService(apiKey, model string) *SoraService {
	if model == "" {
		model = defaultSoraModel
	}
	return &SoraService{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *SoraService) Name() string { return "sora" }

type soraVideoJob struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued, in_progress, completed, failed
	Model  string `json:"model,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate creates a video job and polls until completion, then downloads
// the rendered content.
func (s *SoraService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	log.Printf("[Sora] Starting video generation (model=%s, promptLen=%d, hasImage=%v)",
		s.model, len(req.Prompt), req.InputImage != "")

	job, err := s.createJob(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create video job: %w", err)
	}

	log.Printf("[Sora] Job created, id=%s", job.ID)

	deadline := time.Now().Add(soraMaxPollTimeout)
	pollCount := 0
	for job.Status != "completed" {
		if job.Status == "failed" {
			msg := "unknown error"
			if job.Error != nil {
				msg = job.Error.Message
			}
			return nil, fmt.Errorf("video job %s failed: %s", job.ID, msg)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("video job timed out after %v (polled %d times, id=%s)", soraMaxPollTimeout, pollCount, job.ID)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video job cancelled: %w", ctx.Err())
		case <-time.After(soraPollInterval):
		}

		pollCount++
		job, err = s.getJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll video job (attempt %d): %w", pollCount, err)
		}
		log.Printf("[Sora] Poll %d: status=%s", pollCount, job.Status)
	}

	log.Printf("[Sora] Job %s completed, downloading content...", job.ID)

	videoBytes, err := s.downloadContent(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to download video content: %w", err)
	}
	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[Sora] Video downloaded (%d bytes, %d polls)", len(videoBytes), pollCount)

	return &GenerateResult{
		VideoData: videoBytes,
		Model:     s.model,
		JobID:     job.ID,
	}, nil
}

// createJob posts the generation request. With an input image the request is
// multipart (the image rides along as input_reference); otherwise plain JSON.
func (s *SoraService) createJob(ctx context.Context, req GenerateRequest) (*soraVideoJob, error) {
	var body io.Reader
	contentType := "application/json"

	if req.InputImage != "" {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		mw.WriteField("model", s.model)
		mw.WriteField("prompt", req.Prompt)

		imageData, err := os.ReadFile(req.InputImage)
		if err != nil {
			return nil, fmt.Errorf("failed to read input image %s: %w", req.InputImage, err)
		}
		part, err := mw.CreateFormFile("input_reference", filepath.Base(req.InputImage))
		if err != nil {
			return nil, fmt.Errorf("failed to build multipart request: %w", err)
		}
		if _, err := part.Write(imageData); err != nil {
			return nil, fmt.Errorf("failed to build multipart request: %w", err)
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("failed to build multipart request: %w", err)
		}
		body = buf
		contentType = mw.FormDataContentType()
	} else {
		payload, err := json.Marshal(map[string]string{
			"model":  s.model,
			"prompt": req.Prompt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", soraBaseURL+"/videos", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var job soraVideoJob
	if err := json.Unmarshal(respBody, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job response: %w (body: %s)", err, string(respBody))
	}
	if job.ID == "" {
		return nil, fmt.Errorf("no job id in response: %s", string(respBody))
	}
	return &job, nil
}

func (s *SoraService) getJob(ctx context.Context, id string) (*soraVideoJob, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/videos/%s", soraBaseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(body))
	}

	var job soraVideoJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w (body: %s)", err, string(body))
	}
	return &job, nil
}

func (s *SoraService) downloadContent(ctx context.Context, id string) ([]byte, error) {
	// Use a longer timeout for the content download (videos can be large)
	downloadClient := &http.Client{Timeout: 180 * time.Second}

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/videos/%s/content", soraBaseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
