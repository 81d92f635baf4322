// Package workflow sequences the per-scene pipeline: generate video,
// transcode to the edit codec, synthesize dialogue, lip-sync, analyze.
// State is persisted after every transition so a run can be inspected and
// resumed; the filesystem is the source of truth and the record a cache of
// it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"sceneforge/internal/models"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

// Narrow collaborator contracts so tests can substitute fakes without
// touching the real services.

type Transcoder interface {
	ConvertToProRes(ctx context.Context, inputPath, outputPath string) error
	ConvertToH264(ctx context.Context, inputPath, outputPath string) error
}

type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, voiceID, outputPath string) error
}

type LipSyncer interface {
	Sync(ctx context.Context, videoPath, audioPath, outputPath string) error
}

type Analyzer interface {
	Describe(ctx context.Context, videoPath string, includeTags bool) (*models.AnalysisResult, error)
}

type Fetcher interface {
	FetchToFile(ctx context.Context, url, outputPath string) error
}

// Workflow drives one project's scenes through the pipeline. A nil tts,
// lipsync, or analyzer means the corresponding capability is not configured;
// stages that need a missing capability fail with a config error (analysis
// only warns).
type Workflow struct {
	store       *store.Store
	provider    services.VideoProvider
	providerFor func(name string) (services.VideoProvider, error)
	transcoder  Transcoder
	tts         Synthesizer
	lipsync     LipSyncer
	analyzer    Analyzer
	fetcher     Fetcher
}

func New(st *store.Store, provider services.VideoProvider, transcoder Transcoder, tts Synthesizer, lipsync LipSyncer, analyzer Analyzer, fetcher Fetcher) *Workflow {
	return &Workflow{
		store:      st,
		provider:   provider,
		transcoder: transcoder,
		tts:        tts,
		lipsync:    lipsync,
		analyzer:   analyzer,
		fetcher:    fetcher,
	}
}

// Store exposes the underlying scene store for status reporting.
func (w *Workflow) Store() *store.Store {
	return w.store
}

// SetProviderFactory installs a resolver used when a scene config names a
// provider other than the default. Without one, per-scene overrides fail as
// config errors.
func (w *Workflow) SetProviderFactory(f func(name string) (services.VideoProvider, error)) {
	w.providerFor = f
}

// resolveProvider picks the provider for one scene: the config's named
// provider when set, otherwise the workflow default.
func (w *Workflow) resolveProvider(cfg *models.SceneConfig) (services.VideoProvider, error) {
	if cfg.Provider == "" || cfg.Provider == w.provider.Name() {
		return w.provider, nil
	}
	if w.providerFor == nil {
		return nil, fmt.Errorf("scene requests provider %q but no provider factory is configured", cfg.Provider)
	}
	return w.providerFor(cfg.Provider)
}

// ProcessScene runs all applicable stages for one scene and returns the final
// record. Stages whose artifact already exists on disk are skipped, so
// calling ProcessScene on a half-finished scene resumes it. A stage failure
// is recorded and returned as a *models.StageError; the record always
// reflects the last completed stage.
func (w *Workflow) ProcessScene(ctx context.Context, cfg models.SceneConfig) (*models.SceneRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	record, err := w.loadOrCreate(cfg)
	if err != nil {
		return nil, err
	}

	sceneDir, err := w.store.ScenePath(cfg.SceneID)
	if err != nil {
		return record, err
	}

	log.Printf("[Workflow] Processing scene %s (dialogue=%v, skipLipSync=%v, analyze=%v)",
		cfg.SceneID, cfg.HasDialogue(), cfg.SkipLipSync, cfg.Analyze)

	if err := w.runGenerate(ctx, &cfg, record, sceneDir); err != nil {
		return record, err
	}
	if err := w.runTranscode(ctx, &cfg, record, sceneDir); err != nil {
		return record, err
	}
	if cfg.HasDialogue() {
		if err := w.runSynthesis(ctx, &cfg, record, sceneDir); err != nil {
			return record, err
		}
		if !cfg.SkipLipSync {
			if err := w.runLipSync(ctx, &cfg, record, sceneDir); err != nil {
				return record, err
			}
		}
	}

	// The final artifact is the synced video when lip-sync ran, otherwise
	// the transcoded video.
	if record.Artifacts.SyncedVideo != "" {
		record.Artifacts.FinalVideo = record.Artifacts.SyncedVideo
	} else {
		record.Artifacts.FinalVideo = record.Artifacts.TranscodedVideo
	}

	if cfg.Analyze {
		w.runAnalysis(ctx, record)
	}

	record.Status = models.SceneStatusCompleted
	if err := w.store.Save(record); err != nil {
		return record, err
	}

	log.Printf("[Workflow] Scene %s completed (final=%s)", cfg.SceneID, record.Artifacts.FinalVideo)
	return record, nil
}

// loadOrCreate fetches the prior record for resumption, or starts a fresh
// one. Overwrite discards prior state; a corrupt record aborts the scene so
// the operator can resolve it by hand.
func (w *Workflow) loadOrCreate(cfg models.SceneConfig) (*models.SceneRecord, error) {
	if cfg.Overwrite {
		return models.NewSceneRecord(cfg.SceneID), nil
	}

	record, err := w.store.Load(cfg.SceneID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.NewSceneRecord(cfg.SceneID), nil
		}
		return nil, err
	}

	if record.Status == models.SceneStatusFailed {
		log.Printf("[Workflow] Scene %s previously failed at %s (%s), retrying",
			cfg.SceneID, record.FailureStage, record.FailureReason)
		record.ClearFailure()
	} else if record.Status != models.SceneStatusPending {
		log.Printf("[Workflow] Resuming scene %s from status %s", cfg.SceneID, record.Status)
	}
	return record, nil
}

func (w *Workflow) runGenerate(ctx context.Context, cfg *models.SceneConfig, record *models.SceneRecord, sceneDir string) error {
	if artifactCurrent(record.Artifacts.RawVideo) {
		log.Printf("[Workflow] Scene %s: raw video present, skipping generation", cfg.SceneID)
		return nil
	}
	if record.Artifacts.RawVideo != "" {
		log.Printf("[Workflow] Scene %s: recorded raw video missing on disk, regenerating", cfg.SceneID)
	}

	provider, err := w.resolveProvider(cfg)
	if err != nil {
		return w.fail(record, models.StageGenerate, models.ReasonConfigError, err)
	}

	record.Status = models.SceneStatusGenerating
	// Capture the generation parameters up front so a failed or interrupted
	// run still shows what was asked for.
	record.Generation = &models.GenerationInfo{
		Provider:       provider.Name(),
		Prompt:         cfg.Prompt,
		NegativePrompt: cfg.NegativePrompt,
		Dialogue:       cfg.Dialogue,
		InputImage:     cfg.InputImage,
		InputVideo:     cfg.InputVideo,
	}
	if err := w.store.Save(record); err != nil {
		return err
	}

	rawPath := filepath.Join(sceneDir, cfg.SceneID+"_raw.mp4")
	var model string

	err = withRetry(ctx, "generate", func() error {
		result, err := provider.Generate(ctx, services.GenerateRequest{
			Prompt:         cfg.Prompt,
			NegativePrompt: cfg.NegativePrompt,
			InputImage:     cfg.InputImage,
			InputVideo:     cfg.InputVideo,
			EndImage:       cfg.EndImage,
		})
		if err != nil {
			return err
		}
		model = result.Model

		if result.VideoURL != "" {
			return w.fetcher.FetchToFile(ctx, result.VideoURL, rawPath)
		}
		if len(result.VideoData) == 0 {
			return fmt.Errorf("provider returned neither video data nor a url")
		}
		return os.WriteFile(rawPath, result.VideoData, 0o644)
	})
	if err != nil {
		return w.fail(record, models.StageGenerate, models.ReasonProviderError, err)
	}

	record.Artifacts.RawVideo = rawPath
	record.Generation.Model = model
	record.Generation.GeneratedAt = time.Now().UTC()
	record.UpdatedAt = time.Now().UTC()
	return w.store.Save(record)
}

func (w *Workflow) runTranscode(ctx context.Context, cfg *models.SceneConfig, record *models.SceneRecord, sceneDir string) error {
	if artifactCurrent(record.Artifacts.TranscodedVideo) {
		log.Printf("[Workflow] Scene %s: transcoded video present, skipping transcode", cfg.SceneID)
		return nil
	}

	record.Status = models.SceneStatusTranscoding
	if err := w.store.Save(record); err != nil {
		return err
	}

	outPath := filepath.Join(sceneDir, cfg.SceneID+"_prores.mov")
	err := withRetry(ctx, "transcode", func() error {
		return w.transcoder.ConvertToProRes(ctx, record.Artifacts.RawVideo, outPath)
	})
	if err != nil {
		return w.fail(record, models.StageTranscode, models.ReasonTranscodeError, err)
	}

	record.Artifacts.TranscodedVideo = outPath
	record.UpdatedAt = time.Now().UTC()
	return w.store.Save(record)
}

func (w *Workflow) runSynthesis(ctx context.Context, cfg *models.SceneConfig, record *models.SceneRecord, sceneDir string) error {
	if artifactCurrent(record.Artifacts.DialogueAudio) {
		log.Printf("[Workflow] Scene %s: dialogue audio present, skipping synthesis", cfg.SceneID)
		return nil
	}
	if w.tts == nil {
		return w.fail(record, models.StageSynthesis, models.ReasonConfigError,
			fmt.Errorf("scene has dialogue but no TTS provider is configured"))
	}

	record.Status = models.SceneStatusSynthesizing
	if err := w.store.Save(record); err != nil {
		return err
	}

	audioPath := filepath.Join(sceneDir, cfg.SceneID+"_dialogue.wav")
	err := withRetry(ctx, "synthesize", func() error {
		return w.tts.Synthesize(ctx, cfg.Dialogue, cfg.VoiceID, audioPath)
	})
	if err != nil {
		return w.fail(record, models.StageSynthesis, models.ReasonTTSError, err)
	}

	record.Artifacts.DialogueAudio = audioPath
	record.UpdatedAt = time.Now().UTC()
	return w.store.Save(record)
}

func (w *Workflow) runLipSync(ctx context.Context, cfg *models.SceneConfig, record *models.SceneRecord, sceneDir string) error {
	if artifactCurrent(record.Artifacts.SyncedVideo) {
		log.Printf("[Workflow] Scene %s: synced video present, skipping lip-sync", cfg.SceneID)
		return nil
	}
	if w.lipsync == nil {
		return w.fail(record, models.StageLipSync, models.ReasonConfigError,
			fmt.Errorf("lip-sync requested but no lip-sync provider is configured"))
	}

	record.Status = models.SceneStatusSyncing
	if err := w.store.Save(record); err != nil {
		return err
	}

	// Lip-sync backends want delivery-format input, so the ProRes
	// intermediate passes through H.264 first. The synced result goes back
	// to ProRes for the timeline.
	h264Path := filepath.Join(sceneDir, cfg.SceneID+"_h264.mp4")
	syncedRaw := filepath.Join(sceneDir, cfg.SceneID+"_synced_raw.mp4")
	syncedPath := filepath.Join(sceneDir, cfg.SceneID+"_synced.mov")

	err := withRetry(ctx, "lipsync", func() error {
		if err := w.transcoder.ConvertToH264(ctx, record.Artifacts.TranscodedVideo, h264Path); err != nil {
			return err
		}
		if err := w.lipsync.Sync(ctx, h264Path, record.Artifacts.DialogueAudio, syncedRaw); err != nil {
			return err
		}
		return w.transcoder.ConvertToProRes(ctx, syncedRaw, syncedPath)
	})
	os.Remove(h264Path)
	os.Remove(syncedRaw)
	if err != nil {
		return w.fail(record, models.StageLipSync, models.ReasonLipSyncError, err)
	}

	record.Artifacts.SyncedVideo = syncedPath
	record.UpdatedAt = time.Now().UTC()
	return w.store.Save(record)
}

// runAnalysis is best-effort: any failure is recorded as a warning on the
// record and never fails the scene.
func (w *Workflow) runAnalysis(ctx context.Context, record *models.SceneRecord) {
	if record.Analysis != nil {
		return
	}
	record.Status = models.SceneStatusAnalyzing
	if err := w.store.Save(record); err != nil {
		log.Printf("[Workflow] Scene %s: failed to save before analysis: %v", record.SceneID, err)
		return
	}

	if w.analyzer == nil {
		record.AnalysisWarning = "analysis requested but no analyzer is configured"
		log.Printf("[Workflow] Scene %s: %s", record.SceneID, record.AnalysisWarning)
		return
	}

	result, err := w.analyzer.Describe(ctx, record.Artifacts.FinalVideo, true)
	if err != nil {
		record.AnalysisWarning = err.Error()
		log.Printf("[Workflow] Scene %s: analysis failed (non-fatal): %v", record.SceneID, err)
		return
	}
	record.Analysis = result
	record.AnalysisWarning = ""
}

// fail records a classified stage failure and returns it as a StageError.
// The save error, if any, is logged but the stage failure wins.
func (w *Workflow) fail(record *models.SceneRecord, stage models.Stage, reason models.FailureReason, cause error) error {
	record.SetFailure(stage, reason, cause.Error())
	record.UpdatedAt = time.Now().UTC()
	if err := w.store.Save(record); err != nil {
		log.Printf("[Workflow] Scene %s: failed to persist failure state: %v", record.SceneID, err)
	}
	return models.NewStageError(record.SceneID, stage, reason, cause)
}

// artifactCurrent reports whether the recorded path points at a real file.
// A recorded path whose file is gone means the metadata is stale and the
// stage must run again.
func artifactCurrent(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
