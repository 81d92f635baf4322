package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"sceneforge/internal/models"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeProvider struct {
	calls   int
	err     error
	failIDs map[string]bool // prompts that should fail
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failIDs != nil && f.failIDs[req.Prompt] {
		return nil, fmt.Errorf("generation rejected for %q", req.Prompt)
	}
	return &services.GenerateResult{VideoData: []byte("raw video"), Model: "fake-1"}, nil
}

type fakeTranscoder struct {
	proresCalls int
	h264Calls   int
	err         error
}

func (f *fakeTranscoder) ConvertToProRes(ctx context.Context, in, out string) error {
	f.proresCalls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("prores"), 0o644)
}

func (f *fakeTranscoder) ConvertToH264(ctx context.Context, in, out string) error {
	f.h264Calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("h264"), 0o644)
}

type fakeTTS struct {
	calls int
	err   error
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) Synthesize(ctx context.Context, text, voiceID, outputPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("audio"), 0o644)
}

type fakeLipSync struct {
	calls int
	err   error
}

func (f *fakeLipSync) Sync(ctx context.Context, videoPath, audioPath, outputPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("synced"), 0o644)
}

type fakeAnalyzer struct {
	calls int
	err   error
}

func (f *fakeAnalyzer) Describe(ctx context.Context, videoPath string, includeTags bool) (*models.AnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalysisResult{
		Description:      "a fake scene",
		ShortDescription: "fake scene",
		Tags:             []string{"fake"},
		AnalyzedBy:       "fake-vision",
		AnalyzedAt:       time.Now().UTC(),
	}, nil
}

type fakeFetcher struct{ calls int }

func (f *fakeFetcher) FetchToFile(ctx context.Context, url, outputPath string) error {
	f.calls++
	return os.WriteFile(outputPath, []byte("fetched"), 0o644)
}

type fixture struct {
	wf         *Workflow
	store      *store.Store
	provider   *fakeProvider
	transcoder *fakeTranscoder
	tts        *fakeTTS
	lipsync    *fakeLipSync
	analyzer   *fakeAnalyzer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(t.TempDir(), "testproj")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	f := &fixture{
		store:      st,
		provider:   &fakeProvider{},
		transcoder: &fakeTranscoder{},
		tts:        &fakeTTS{},
		lipsync:    &fakeLipSync{},
		analyzer:   &fakeAnalyzer{},
	}
	f.wf = New(st, f.provider, f.transcoder, f.tts, f.lipsync, f.analyzer, &fakeFetcher{})
	return f
}

// ---------------------------------------------------------------------------
// Single scene
// ---------------------------------------------------------------------------

func TestProcessSceneNoDialogue(t *testing.T) {
	f := newFixture(t)

	record, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID: "scene_01",
		Prompt:  "a quiet forest",
	})
	if err != nil {
		t.Fatalf("ProcessScene: %v", err)
	}

	if record.Status != models.SceneStatusCompleted {
		t.Errorf("status = %s, want completed", record.Status)
	}
	if f.tts.calls != 0 {
		t.Errorf("TTS invoked %d times for a scene without dialogue", f.tts.calls)
	}
	if f.lipsync.calls != 0 {
		t.Errorf("lip-sync invoked %d times for a scene without dialogue", f.lipsync.calls)
	}
	if record.Artifacts.FinalVideo != record.Artifacts.TranscodedVideo {
		t.Errorf("final = %q, want transcoded %q", record.Artifacts.FinalVideo, record.Artifacts.TranscodedVideo)
	}
	if record.Artifacts.SyncedVideo != "" {
		t.Errorf("synced video recorded without dialogue: %q", record.Artifacts.SyncedVideo)
	}
}

func TestProcessSceneWithDialogue(t *testing.T) {
	f := newFixture(t)

	record, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID:  "scene_01",
		Prompt:   "a person speaking",
		Dialogue: "Hello there.",
	})
	if err != nil {
		t.Fatalf("ProcessScene: %v", err)
	}

	if f.tts.calls != 1 {
		t.Errorf("TTS calls = %d, want 1", f.tts.calls)
	}
	if f.lipsync.calls != 1 {
		t.Errorf("lip-sync calls = %d, want 1", f.lipsync.calls)
	}
	if record.Artifacts.DialogueAudio == "" {
		t.Error("no dialogue audio recorded")
	}
	if record.Artifacts.FinalVideo != record.Artifacts.SyncedVideo {
		t.Errorf("final = %q, want synced %q", record.Artifacts.FinalVideo, record.Artifacts.SyncedVideo)
	}
}

func TestProcessSceneSkipLipSync(t *testing.T) {
	f := newFixture(t)

	record, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID:     "scene_01",
		Prompt:      "a person speaking",
		Dialogue:    "Hello there.",
		SkipLipSync: true,
	})
	if err != nil {
		t.Fatalf("ProcessScene: %v", err)
	}

	// Synthesis still runs so the audio is available for manual syncing.
	if f.tts.calls != 1 {
		t.Errorf("TTS calls = %d, want 1", f.tts.calls)
	}
	if f.lipsync.calls != 0 {
		t.Errorf("lip-sync calls = %d, want 0", f.lipsync.calls)
	}
	if record.Artifacts.DialogueAudio == "" {
		t.Error("no dialogue audio recorded")
	}
	if record.Artifacts.SyncedVideo != "" {
		t.Errorf("synced video recorded despite skip: %q", record.Artifacts.SyncedVideo)
	}
	if record.Artifacts.FinalVideo != record.Artifacts.TranscodedVideo {
		t.Errorf("final = %q, want transcoded %q", record.Artifacts.FinalVideo, record.Artifacts.TranscodedVideo)
	}
}

func TestProcessSceneProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("quota exhausted")

	_, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID: "scene_01",
		Prompt:  "anything",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var stageErr *models.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error type = %T, want *models.StageError", err)
	}
	if stageErr.Stage != models.StageGenerate {
		t.Errorf("stage = %s, want generate", stageErr.Stage)
	}
	if stageErr.Reason != models.ReasonProviderError {
		t.Errorf("reason = %s, want provider_error", stageErr.Reason)
	}

	// The failure must be durable.
	record, loadErr := f.store.Load("scene_01")
	if loadErr != nil {
		t.Fatalf("Load after failure: %v", loadErr)
	}
	if record.Status != models.SceneStatusFailed {
		t.Errorf("persisted status = %s, want failed", record.Status)
	}
	if record.FailureReason != models.ReasonProviderError {
		t.Errorf("persisted reason = %s, want provider_error", record.FailureReason)
	}
}

func TestProcessSceneRetriesAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("quota exhausted")

	cfg := models.SceneConfig{SceneID: "scene_01", Prompt: "anything"}
	if _, err := f.wf.ProcessScene(context.Background(), cfg); err == nil {
		t.Fatal("expected first run to fail")
	}

	f.provider.err = nil
	record, err := f.wf.ProcessScene(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if record.Status != models.SceneStatusCompleted {
		t.Errorf("status = %s, want completed", record.Status)
	}
	if record.FailureReason != "" || record.FailureStage != "" {
		t.Errorf("failure fields not cleared: stage=%q reason=%q", record.FailureStage, record.FailureReason)
	}
}

// ---------------------------------------------------------------------------
// Resumption
// ---------------------------------------------------------------------------

func TestResumeSkipsCompletedStages(t *testing.T) {
	f := newFixture(t)
	cfg := models.SceneConfig{SceneID: "scene_01", Prompt: "a forest"}

	if _, err := f.wf.ProcessScene(context.Background(), cfg); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := f.wf.ProcessScene(context.Background(), cfg); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if f.provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (second run should resume)", f.provider.calls)
	}
	if f.transcoder.proresCalls != 1 {
		t.Errorf("transcode calls = %d, want 1", f.transcoder.proresCalls)
	}
}

func TestResumeReexecutesStageWhenFileMissing(t *testing.T) {
	f := newFixture(t)
	cfg := models.SceneConfig{SceneID: "scene_01", Prompt: "a forest"}

	record, err := f.wf.ProcessScene(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The record claims a transcoded video, but the file is gone. The
	// metadata must not be trusted over the filesystem.
	if err := os.Remove(record.Artifacts.TranscodedVideo); err != nil {
		t.Fatalf("remove transcoded: %v", err)
	}

	if _, err := f.wf.ProcessScene(context.Background(), cfg); err != nil {
		t.Fatalf("resume run: %v", err)
	}

	if f.transcoder.proresCalls != 2 {
		t.Errorf("transcode calls = %d, want 2 (missing file must re-execute)", f.transcoder.proresCalls)
	}
	if f.provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (raw video still present)", f.provider.calls)
	}
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

func TestAnalysisFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = errors.New("vision request failed: timeout")

	record, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID: "scene_01",
		Prompt:  "a forest",
		Analyze: true,
	})
	if err != nil {
		t.Fatalf("ProcessScene: %v", err)
	}

	if record.Status != models.SceneStatusCompleted {
		t.Errorf("status = %s, want completed despite analysis failure", record.Status)
	}
	if record.AnalysisWarning == "" {
		t.Error("expected an analysis warning")
	}
	if record.Analysis != nil {
		t.Errorf("analysis fields populated despite failure: %+v", record.Analysis)
	}
}

func TestAnalysisRecorded(t *testing.T) {
	f := newFixture(t)

	record, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID: "scene_01",
		Prompt:  "a forest",
		Analyze: true,
	})
	if err != nil {
		t.Fatalf("ProcessScene: %v", err)
	}
	if record.Analysis == nil {
		t.Fatal("no analysis recorded")
	}
	if record.Analysis.Description == "" {
		t.Error("empty analysis description")
	}
	if record.AnalysisWarning != "" {
		t.Errorf("unexpected warning: %q", record.AnalysisWarning)
	}
}

// ---------------------------------------------------------------------------
// Batch
// ---------------------------------------------------------------------------

func batchConfigs(n int) []models.SceneConfig {
	configs := make([]models.SceneConfig, n)
	for i := range configs {
		configs[i] = models.SceneConfig{
			SceneID: fmt.Sprintf("scene_%02d", i+1),
			Prompt:  fmt.Sprintf("prompt %d", i+1),
		}
	}
	return configs
}

func TestBatchContinuesPastFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.failIDs = map[string]bool{"prompt 3": true}

	outcomes, err := f.wf.ProcessBatch(context.Background(), batchConfigs(5), BatchOptions{})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(outcomes) != 5 {
		t.Fatalf("outcomes = %d, want 5", len(outcomes))
	}

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Completed {
			succeeded++
		} else {
			failed++
		}
	}
	if succeeded != 4 || failed != 1 {
		t.Errorf("succeeded=%d failed=%d, want 4/1", succeeded, failed)
	}
	if !outcomes[2].Completed && outcomes[2].FailureReason != models.ReasonProviderError {
		t.Errorf("scene 3 failure reason = %s, want provider_error", outcomes[2].FailureReason)
	}
	// Insertion order is preserved.
	for i, o := range outcomes {
		want := fmt.Sprintf("scene_%02d", i+1)
		if o.SceneID != want {
			t.Errorf("outcome %d scene = %s, want %s", i, o.SceneID, want)
		}
	}
}

func TestBatchAllFailed(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("service down")

	_, err := f.wf.ProcessBatch(context.Background(), batchConfigs(3), BatchOptions{})
	if !errors.Is(err, ErrAllScenesFailed) {
		t.Errorf("err = %v, want ErrAllScenesFailed", err)
	}
}

func TestBatchFailFast(t *testing.T) {
	f := newFixture(t)
	f.provider.failIDs = map[string]bool{"prompt 1": true}

	outcomes, err := f.wf.ProcessBatch(context.Background(), batchConfigs(3), BatchOptions{FailFast: true})
	if err == nil {
		t.Fatal("expected fail-fast error")
	}
	if outcomes[1].Completed || outcomes[2].Completed {
		t.Error("scenes after the failure should not have completed")
	}
}

func TestBatchConcurrent(t *testing.T) {
	f := newFixture(t)

	outcomes, err := f.wf.ProcessBatch(context.Background(), batchConfigs(4), BatchOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	for _, o := range outcomes {
		if !o.Completed {
			t.Errorf("scene %s did not complete: %v", o.SceneID, o.Err)
		}
	}
}

// ---------------------------------------------------------------------------
// Expansion and collisions
// ---------------------------------------------------------------------------

func TestExpandConfig(t *testing.T) {
	f := newFixture(t)

	configs, err := f.wf.ExpandConfig(models.SceneConfig{
		SceneID: "scene_01",
		Prompt:  "a forest",
		Count:   3,
	}, CollisionFail)
	if err != nil {
		t.Fatalf("ExpandConfig: %v", err)
	}

	want := []string{"scene_01", "scene_02", "scene_03"}
	if len(configs) != len(want) {
		t.Fatalf("expanded to %d configs, want %d", len(configs), len(want))
	}
	for i, c := range configs {
		if c.SceneID != want[i] {
			t.Errorf("config %d id = %s, want %s", i, c.SceneID, want[i])
		}
		if c.Count != 0 {
			t.Errorf("config %d count = %d, want 0", i, c.Count)
		}
	}
}

func TestExpandConfigCollisionFailsByDefault(t *testing.T) {
	f := newFixture(t)

	// Occupy scene_02.
	if _, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{SceneID: "scene_02", Prompt: "x"}); err != nil {
		t.Fatalf("seed scene: %v", err)
	}

	_, err := f.wf.ExpandConfig(models.SceneConfig{SceneID: "scene_01", Prompt: "y", Count: 3}, CollisionFail)
	if err == nil {
		t.Fatal("expected collision error")
	}
}

func TestExpandConfigCollisionSkip(t *testing.T) {
	f := newFixture(t)

	if _, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{SceneID: "scene_02", Prompt: "x"}); err != nil {
		t.Fatalf("seed scene: %v", err)
	}

	configs, err := f.wf.ExpandConfig(models.SceneConfig{SceneID: "scene_01", Prompt: "y", Count: 3}, CollisionSkip)
	if err != nil {
		t.Fatalf("ExpandConfig: %v", err)
	}
	want := []string{"scene_01", "scene_03"}
	if len(configs) != 2 || configs[0].SceneID != want[0] || configs[1].SceneID != want[1] {
		t.Errorf("expanded ids wrong, got %d configs", len(configs))
	}
}

// ---------------------------------------------------------------------------
// Retry classification
// ---------------------------------------------------------------------------

func TestTransientProviderErrorIsRetried(t *testing.T) {
	prevDelay := stageRetryBaseDelay
	stageRetryBaseDelay = time.Millisecond
	defer func() { stageRetryBaseDelay = prevDelay }()

	f := newFixture(t)
	attempts := 0
	f.wf.provider = providerFunc(func(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("request failed: connection reset by peer")
		}
		return &services.GenerateResult{VideoData: []byte("raw"), Model: "fake-1"}, nil
	})

	record, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{SceneID: "scene_01", Prompt: "a forest"})
	if err != nil {
		t.Fatalf("ProcessScene: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if record.Status != models.SceneStatusCompleted {
		t.Errorf("status = %s, want completed", record.Status)
	}
}

func TestPermanentProviderErrorIsNotRetried(t *testing.T) {
	f := newFixture(t)
	attempts := 0
	f.wf.provider = providerFunc(func(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error) {
		attempts++
		return nil, errors.New("invalid api key")
	})

	if _, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{SceneID: "scene_01", Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (permanent errors fail immediately)", attempts)
	}
}

func TestPerSceneProviderOverride(t *testing.T) {
	f := newFixture(t)

	override := &fakeProvider{}
	f.wf.SetProviderFactory(func(name string) (services.VideoProvider, error) {
		if name != "other" {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		return override, nil
	})

	record, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID:  "scene_01",
		Prompt:   "a forest",
		Provider: "other",
	})
	if err != nil {
		t.Fatalf("ProcessScene: %v", err)
	}
	if override.calls != 1 {
		t.Errorf("override provider calls = %d, want 1", override.calls)
	}
	if f.provider.calls != 0 {
		t.Errorf("default provider calls = %d, want 0", f.provider.calls)
	}
	_ = record
}

func TestUnknownPerSceneProviderFailsAsConfigError(t *testing.T) {
	f := newFixture(t)
	f.wf.SetProviderFactory(func(name string) (services.VideoProvider, error) {
		return nil, fmt.Errorf("unknown provider %q", name)
	})

	_, err := f.wf.ProcessScene(context.Background(), models.SceneConfig{
		SceneID:  "scene_01",
		Prompt:   "a forest",
		Provider: "bogus",
	})
	var stageErr *models.StageError
	if !errors.As(err, &stageErr) || stageErr.Reason != models.ReasonConfigError {
		t.Errorf("err = %v, want StageError with config_error", err)
	}
}

// providerFunc adapts a function to the VideoProvider interface.
type providerFunc func(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error)

func (providerFunc) Name() string { return "fake" }

func (f providerFunc) Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error) {
	return f(ctx, req)
}
