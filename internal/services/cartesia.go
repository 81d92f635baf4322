package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// ---------------------------------------------------------------------------
// Cartesia Text-to-Speech Service (legacy provider)
// Kept for installations without an ElevenLabs key.
// ---------------------------------------------------------------------------

const (
	cartesiaAPIVersion   = "2024-06-10"
	cartesiaDefaultVoice = "a0e99841-438c-4a64-b679-ae501e7d6091"
	cartesiaModelID      = "sonic-english"
)

type CartesiaService struct {
	apiKey         string
	apiURL         string
	apiVersion     string
	defaultVoiceID string
	client         *http.Client
}

var _ TTSService = (*CartesiaService)(nil)

// NewCartesiaService creates a Cartesia TTS service. An empty voiceID falls
// back to the default voice.
func NewCartesiaService(apiKey, apiURL, voiceID string) *CartesiaService {
	if voiceID == "" {
		voiceID = cartesiaDefaultVoice
	}
	if apiURL == "" {
		apiURL = "https://api.cartesia.ai"
	}
	return &CartesiaService{
		apiKey:         apiKey,
		apiURL:         apiURL,
		apiVersion:     cartesiaAPIVersion,
		defaultVoiceID: voiceID,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *CartesiaService) Name() string { return "cartesia" }

type cartesiaRequest struct {
	ModelID      string                 `json:"model_id"`
	Transcript   string                 `json:"transcript"`
	Voice        cartesiaVoiceSpecifier `json:"voice"`
	OutputFormat cartesiaOutputFormat   `json:"output_format"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize converts text to speech via POST /tts/bytes and writes the audio
// to outputPath.
func (s *CartesiaService) Synthesize(ctx context.Context, text, voiceID, outputPath string) error {
	effectiveVoice := s.defaultVoiceID
	if voiceID != "" {
		effectiveVoice = voiceID
	}

	reqBody := cartesiaRequest{
		ModelID:    cartesiaModelID,
		Transcript: text,
		Voice:      cartesiaVoiceSpecifier{Mode: "id", ID: effectiveVoice},
		OutputFormat: cartesiaOutputFormat{
			Container:  "wav",
			Encoding:   "pcm_s16le",
			SampleRate: 44100,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal Cartesia request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL+"/tts/bytes", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create Cartesia request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)
	req.Header.Set("Cartesia-Version", s.apiVersion)

	log.Printf("[Cartesia] Generating speech (voiceID=%s, textLen=%d)", effectiveVoice, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Cartesia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Cartesia returned status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Cartesia audio response: %w", err)
	}
	if len(audioData) == 0 {
		return fmt.Errorf("Cartesia returned empty audio")
	}

	if err := os.WriteFile(outputPath, audioData, 0o644); err != nil {
		return fmt.Errorf("failed to write audio to %s: %w", outputPath, err)
	}

	log.Printf("[Cartesia] Speech generated (%d bytes) -> %s", len(audioData), outputPath)
	return nil
}
