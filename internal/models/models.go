package models

import (
	"fmt"
	"strings"
	"time"
)

// Enums

// SceneStatus tracks where a scene is in the pipeline. Statuses are strictly
// forward-moving; "failed" is reachable from any non-terminal status.
type SceneStatus string

const (
	SceneStatusPending      SceneStatus = "pending"
	SceneStatusGenerating   SceneStatus = "generating"
	SceneStatusTranscoding  SceneStatus = "transcoding"
	SceneStatusSynthesizing SceneStatus = "synthesizing"
	SceneStatusSyncing      SceneStatus = "syncing"
	SceneStatusAnalyzing    SceneStatus = "analyzing"
	SceneStatusCompleted    SceneStatus = "completed"
	SceneStatusFailed       SceneStatus = "failed"
)

// Terminal reports whether no further stage may run for this status.
func (s SceneStatus) Terminal() bool {
	return s == SceneStatusCompleted || s == SceneStatusFailed
}

// Stage identifies one pipeline step.
type Stage string

const (
	StageGenerate  Stage = "generate"
	StageTranscode Stage = "transcode"
	StageSynthesis Stage = "synthesize"
	StageLipSync   Stage = "lipsync"
	StageAnalyze   Stage = "analyze"
)

// FailureReason classifies a stage failure independently of the provider that
// caused it, so the orchestrator's record/retry logic stays provider-agnostic.
type FailureReason string

const (
	ReasonProviderError  FailureReason = "provider_error"
	ReasonTranscodeError FailureReason = "transcode_error"
	ReasonTTSError       FailureReason = "tts_error"
	ReasonLipSyncError   FailureReason = "lipsync_error"
	ReasonConfigError    FailureReason = "config_error"
)

// SceneConfig describes one scene to produce. Immutable for the duration of a
// run; Count > 1 is expanded into multiple configs by the sequencer before the
// workflow ever sees it.
type SceneConfig struct {
	SceneID        string `json:"scene_id"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Dialogue       string `json:"dialogue,omitempty"`
	VoiceID        string `json:"voice_id,omitempty"`
	InputImage     string `json:"input_image,omitempty"`
	InputVideo     string `json:"input_video,omitempty"`
	EndImage       string `json:"end_image,omitempty"`
	Provider       string `json:"provider,omitempty"`
	SkipLipSync    bool   `json:"skip_lipsync,omitempty"`
	Analyze        bool   `json:"analyze,omitempty"`
	Count          int    `json:"count,omitempty"`
	Overwrite      bool   `json:"overwrite,omitempty"`
}

// HasDialogue reports whether the synthesis/lip-sync stages apply at all.
func (c *SceneConfig) HasDialogue() bool {
	return strings.TrimSpace(c.Dialogue) != ""
}

// Validate checks that the config is complete enough to run.
func (c *SceneConfig) Validate() error {
	if c.SceneID == "" {
		return &ConfigError{Field: "scene_id", Message: "scene id is required"}
	}
	if c.Prompt == "" {
		return &ConfigError{Field: "prompt", Message: "prompt is required"}
	}
	if c.Count < 0 {
		return &ConfigError{Field: "count", Message: fmt.Sprintf("count must not be negative, got %d", c.Count)}
	}
	return nil
}

// Artifacts holds the on-disk paths produced so far for a scene. The set of
// non-empty paths must always form a prefix of the stage sequence: a synced
// video without a transcoded video means the record was corrupted or edited
// by hand.
type Artifacts struct {
	RawVideo        string `json:"raw_video,omitempty"`
	TranscodedVideo string `json:"transcoded_video,omitempty"`
	DialogueAudio   string `json:"dialogue_audio,omitempty"`
	SyncedVideo     string `json:"synced_video,omitempty"`
	FinalVideo      string `json:"final_video,omitempty"`
}

// GenerationInfo captures the parameters the provider was invoked with.
type GenerationInfo struct {
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	Prompt         string    `json:"prompt,omitempty"`
	NegativePrompt string    `json:"negative_prompt,omitempty"`
	Dialogue       string    `json:"dialogue,omitempty"`
	InputImage     string    `json:"input_image,omitempty"`
	InputVideo     string    `json:"input_video,omitempty"`
	GeneratedAt    time.Time `json:"generated_at,omitempty"`
}

// AnalysisResult is the analyzer's output. Analysis is best-effort: a failed
// analysis leaves this nil and records a warning instead of failing the scene.
type AnalysisResult struct {
	Description      string    `json:"description"`
	ShortDescription string    `json:"short_description,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	AnalyzedBy       string    `json:"analyzed_by,omitempty"`
	AnalyzedAt       time.Time `json:"analyzed_at,omitempty"`
}

// SceneRecord is the durable per-scene state. One record per
// (project, scene id); created on first stage attempt, mutated after every
// transition, never deleted automatically.
type SceneRecord struct {
	SceneID         string          `json:"scene_id"`
	Status          SceneStatus     `json:"status"`
	Artifacts       Artifacts       `json:"artifacts"`
	Generation      *GenerationInfo `json:"generation,omitempty"`
	Analysis        *AnalysisResult `json:"analysis,omitempty"`
	AnalysisWarning string          `json:"analysis_warning,omitempty"`
	FailureStage    Stage           `json:"failure_stage,omitempty"`
	FailureReason   FailureReason   `json:"failure_reason,omitempty"`
	FailureMessage  string          `json:"failure_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewSceneRecord returns a fresh record in the pending state.
func NewSceneRecord(sceneID string) *SceneRecord {
	now := time.Now().UTC()
	return &SceneRecord{
		SceneID:   sceneID,
		Status:    SceneStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate enforces the structural invariant on artifact paths: each later
// artifact requires the earlier ones. Violations indicate a corrupted or
// hand-edited record and must be surfaced, never silently repaired.
func (r *SceneRecord) Validate() error {
	if r.SceneID == "" {
		return fmt.Errorf("record has no scene id")
	}
	a := r.Artifacts
	if a.TranscodedVideo != "" && a.RawVideo == "" {
		return fmt.Errorf("transcoded video recorded without raw video")
	}
	if a.DialogueAudio != "" && a.TranscodedVideo == "" {
		return fmt.Errorf("dialogue audio recorded without transcoded video")
	}
	if a.SyncedVideo != "" && a.DialogueAudio == "" {
		return fmt.Errorf("synced video recorded without dialogue audio")
	}
	return nil
}

// SetFailure moves the record to the failed state with a classified cause.
func (r *SceneRecord) SetFailure(stage Stage, reason FailureReason, message string) {
	r.Status = SceneStatusFailed
	r.FailureStage = stage
	r.FailureReason = reason
	r.FailureMessage = message
}

// ClearFailure resets failure fields before re-running a previously failed scene.
func (r *SceneRecord) ClearFailure() {
	r.FailureStage = ""
	r.FailureReason = ""
	r.FailureMessage = ""
}
