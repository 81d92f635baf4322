package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Replicate Video Generation Service
// Uses the Replicate predictions API with Wan-family models.
// Follows a deferred request pattern: submit prediction → poll by id → the
// result is a remote URL the workflow fetches separately.
// ---------------------------------------------------------------------------

const (
	replicateBaseURL        = "https://api.replicate.com/v1"
	defaultReplicateModel   = "wan-video/wan-2.2-t2v-fast"
	replicatePollMin        = 5 * time.Second
	replicatePollMax        = 20 * time.Second
	replicateBackoffFactor  = 1.5
	replicateMaxPollTimeout = 10 * time.Minute
)

// ReplicateService handles video generation via the Replicate API.
type ReplicateService struct {
	apiToken   string
	model      string
	httpClient *http.Client
}

var _ VideoProvider = (*ReplicateService)(nil)

// NewReplicateService creates a new Replicate video generation service.
// model is an owner/name reference (empty string defaults to wan-2.2-t2v-fast).
func NewReplicateService(apiToken, model string) *ReplicateService {
	if model == "" {
		model = defaultReplicateModel
	}
	return &ReplicateService{
		apiToken: apiToken,
		model:    model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Per HTTP call, not the full poll cycle
		},
	}
}

func (s *ReplicateService) Name() string { return "replicate" }

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"` // starting, processing, succeeded, failed, canceled
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	Model  string          `json:"model,omitempty"`
}

// Generate submits a prediction and polls until it settles. The returned
// result carries the output URL; downloading is the caller's concern.
func (s *ReplicateService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	input := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if req.NegativePrompt != "" {
		input["negative_prompt"] = req.NegativePrompt
	}
	if req.InputImage != "" {
		imageRef, err := fileAsDataURI(req.InputImage)
		if err != nil {
			return nil, err
		}
		input["image"] = imageRef
	}

	log.Printf("[Replicate] Starting prediction (model=%s, promptLen=%d, hasImage=%v)",
		s.model, len(req.Prompt), req.InputImage != "")

	prediction, err := s.submitPrediction(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to submit prediction: %w", err)
	}

	log.Printf("[Replicate] Prediction submitted, id=%s", prediction.ID)

	final, err := s.pollPrediction(ctx, prediction.ID)
	if err != nil {
		return nil, err
	}

	outputURL, err := firstOutputURL(final.Output)
	if err != nil {
		return nil, fmt.Errorf("prediction %s succeeded but output is unusable: %w", final.ID, err)
	}

	log.Printf("[Replicate] Prediction %s succeeded, output=%s", final.ID, outputURL)

	return &GenerateResult{
		VideoURL: outputURL,
		Model:    s.model,
		JobID:    final.ID,
	}, nil
}

func (s *ReplicateService) submitPrediction(ctx context.Context, input map[string]interface{}) (*replicatePrediction, error) {
	payload, err := json.Marshal(map[string]interface{}{"input": input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction input: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s/predictions", replicateBaseURL, s.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiToken)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode, string(body))
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, fmt.Errorf("failed to parse prediction response: %w (body: %s)", err, string(body))
	}
	if prediction.ID == "" {
		return nil, fmt.Errorf("no prediction id in response: %s", string(body))
	}
	return &prediction, nil
}

// pollPrediction polls GET /predictions/{id} with exponential backoff until
// the prediction settles. 5s → 7.5s → 11.25s → 16.8s → 20s (capped).
func (s *ReplicateService) pollPrediction(ctx context.Context, id string) (*replicatePrediction, error) {
	deadline := time.Now().Add(replicateMaxPollTimeout)
	interval := replicatePollMin
	pollCount := 0

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("prediction timed out after %v (polled %d times, id=%s)", replicateMaxPollTimeout, pollCount, id)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("prediction cancelled: %w", ctx.Err())
		case <-time.After(interval):
		}

		pollCount++
		prediction, err := s.getPrediction(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to poll prediction (attempt %d): %w", pollCount, err)
		}

		log.Printf("[Replicate] Poll %d: status=%s", pollCount, prediction.Status)

		switch prediction.Status {
		case "succeeded":
			return prediction, nil
		case "failed", "canceled":
			msg := prediction.Error
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("prediction %s %s: %s", id, prediction.Status, msg)
		}

		next := time.Duration(float64(interval) * replicateBackoffFactor)
		if next > replicatePollMax {
			next = replicatePollMax
		}
		interval = next
	}
}

func (s *ReplicateService) getPrediction(ctx context.Context, id string) (*replicatePrediction, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/predictions/%s", replicateBaseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiToken)

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
		return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode, string(body))
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, fmt.Errorf("failed to parse prediction: %w (body: %s)", err, string(body))
	}
	return &prediction, nil
}

// firstOutputURL extracts the video URL from a prediction output, which
// Replicate returns either as a bare string or as a list of strings.
func firstOutputURL(output json.RawMessage) (string, error) {
	if len(output) == 0 {
		return "", fmt.Errorf("empty output")
	}

	var single string
	if err := json.Unmarshal(output, &single); err == nil && single != "" {
		return single, nil
	}

	var many []string
	if err := json.Unmarshal(output, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}

	return "", fmt.Errorf("unrecognized output shape: %s", string(output))
}

// fileAsDataURI inlines a local image as a data URI; http(s) and data
// references pass through unchanged.
func fileAsDataURI(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", ref, err)
	}
	return "data:" + imageMIMEType(ref) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
