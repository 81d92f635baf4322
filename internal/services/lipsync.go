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
// D-ID Lip-Sync Service
// Submits a video + dialogue audio pair, polls the job until the synced
// video is rendered, then downloads the result. Input constraints (duration
// bounds, formats) are the remote service's concern and surface here only as
// job errors.
// ---------------------------------------------------------------------------

const (
	didBaseURL        = "https://api.d-id.com"
	didPollInterval   = 5 * time.Second
	didMaxPollTimeout = 10 * time.Minute
)

// LipSyncService applies dialogue audio onto a generated video.
type LipSyncService struct {
	apiKey     string
	httpClient *http.Client
}

// NewLipSyncService creates a D-ID lip-sync client.
func NewLipSyncService(apiKey string) *LipSyncService {
	return &LipSyncService{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Uploads carry full video files
		},
	}
}

type didJob struct {
	ID        string `json:"id"`
	Status    string `json:"status"` // created, started, done, error, rejected
	ResultURL string `json:"result_url,omitempty"`
	Error     *struct {
		Kind        string `json:"kind"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

// Sync lip-syncs audioPath onto videoPath and writes the result to
// outputPath. Blocks through the remote render cycle.
func (s *LipSyncService) Sync(ctx context.Context, videoPath, audioPath, outputPath string) error {
	log.Printf("[LipSync] Submitting job (video=%s, audio=%s)", videoPath, audioPath)

	job, err := s.submitJob(ctx, videoPath, audioPath)
	if err != nil {
		return fmt.Errorf("failed to submit lip-sync job: %w", err)
	}

	log.Printf("[LipSync] Job submitted, id=%s", job.ID)

	deadline := time.Now().Add(didMaxPollTimeout)
	pollCount := 0
	for job.Status != "done" {
		switch job.Status {
		case "error", "rejected":
			msg := "unknown error"
			if job.Error != nil {
				msg = fmt.Sprintf("%s: %s", job.Error.Kind, job.Error.Description)
			}
			return fmt.Errorf("lip-sync job %s failed: %s", job.ID, msg)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lip-sync job timed out after %v (polled %d times, id=%s)", didMaxPollTimeout, pollCount, job.ID)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("lip-sync cancelled: %w", ctx.Err())
		case <-time.After(didPollInterval):
		}

		pollCount++
		job, err = s.getJob(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("failed to poll lip-sync job (attempt %d): %w", pollCount, err)
		}
		log.Printf("[LipSync] Poll %d: status=%s", pollCount, job.Status)
	}

	if job.ResultURL == "" {
		return fmt.Errorf("lip-sync job %s done but no result url", job.ID)
	}

	log.Printf("[LipSync] Job %s done, downloading result...", job.ID)

	data, err := fetchURL(ctx, s.httpClient, job.ResultURL)
	if err != nil {
		return fmt.Errorf("failed to download synced video: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write synced video to %s: %w", outputPath, err)
	}

	log.Printf("[LipSync] Synced video saved (%d bytes) -> %s", len(data), outputPath)
	return nil
}

// submitJob uploads the video and audio as one multipart request.
func (s *LipSyncService) submitJob(ctx context.Context, videoPath, audioPath string) (*didJob, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for field, path := range map[string]string{
		"source_video": videoPath,
		"audio":        audioPath,
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s input %s: %w", field, path, err)
		}
		part, err := mw.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("failed to build multipart request: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("failed to build multipart request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", didBaseURL+"/talks", buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Basic "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("d-id returned status %d: %s", resp.StatusCode, string(body))
	}

	var job didJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job response: %w (body: %s)", err, string(body))
	}
	if job.ID == "" {
		return nil, fmt.Errorf("no job id in response: %s", string(body))
	}
	return &job, nil
}

func (s *LipSyncService) getJob(ctx context.Context, id string) (*didJob, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", didBaseURL+"/talks/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+s.apiKey)

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
		return nil, fmt.Errorf("d-id returned status %d: %s", resp.StatusCode, string(body))
	}

	var job didJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w (body: %s)", err, string(body))
	}
	return &job, nil
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
