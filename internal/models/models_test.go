package models

import (
	"errors"
	"testing"
)

func TestSceneConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SceneConfig
		wantErr bool
	}{
		{"valid", SceneConfig{SceneID: "scene_01", Prompt: "a forest"}, false},
		{"missing id", SceneConfig{Prompt: "a forest"}, true},
		{"missing prompt", SceneConfig{SceneID: "scene_01"}, true},
		{"negative count", SceneConfig{SceneID: "scene_01", Prompt: "x", Count: -1}, true},
		{"count zero ok", SceneConfig{SceneID: "scene_01", Prompt: "x", Count: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestHasDialogue(t *testing.T) {
	if (&SceneConfig{Dialogue: "  \n\t "}).HasDialogue() {
		t.Error("whitespace-only dialogue should not count")
	}
	if !(&SceneConfig{Dialogue: "Hello."}).HasDialogue() {
		t.Error("dialogue text not detected")
	}
}

func TestRecordArtifactInvariant(t *testing.T) {
	tests := []struct {
		name    string
		art     Artifacts
		wantErr bool
	}{
		{"empty", Artifacts{}, false},
		{"raw only", Artifacts{RawVideo: "a.mp4"}, false},
		{"full chain", Artifacts{RawVideo: "a", TranscodedVideo: "b", DialogueAudio: "c", SyncedVideo: "d"}, false},
		{"transcoded without raw", Artifacts{TranscodedVideo: "b"}, true},
		{"audio without transcoded", Artifacts{RawVideo: "a", DialogueAudio: "c"}, true},
		{"synced without audio", Artifacts{RawVideo: "a", TranscodedVideo: "b", SyncedVideo: "d"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSceneRecord("scene_01")
			r.Artifacts = tt.art
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetAndClearFailure(t *testing.T) {
	r := NewSceneRecord("scene_01")
	r.SetFailure(StageTranscode, ReasonTranscodeError, "ffmpeg exploded")

	if r.Status != SceneStatusFailed {
		t.Errorf("status = %s, want failed", r.Status)
	}
	if !r.Status.Terminal() {
		t.Error("failed should be terminal")
	}

	r.ClearFailure()
	if r.FailureStage != "" || r.FailureReason != "" || r.FailureMessage != "" {
		t.Error("failure fields not cleared")
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("quota exhausted")
	err := NewStageError("scene_01", StageGenerate, ReasonProviderError, cause)

	if !errors.Is(err, cause) {
		t.Error("StageError should unwrap to its cause")
	}
	var stageErr *StageError
	if !errors.As(error(err), &stageErr) {
		t.Fatal("errors.As failed")
	}
	if stageErr.SceneID != "scene_01" || stageErr.Reason != ReasonProviderError {
		t.Errorf("unexpected fields: %+v", stageErr)
	}
}
