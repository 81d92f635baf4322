package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sceneforge/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "testproj")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	record := models.NewSceneRecord("scene_01")
	record.Status = models.SceneStatusTranscoding
	record.Artifacts.RawVideo = "/tmp/scene_01_raw.mp4"
	record.Artifacts.TranscodedVideo = "/tmp/scene_01_prores.mov"
	record.Generation = &models.GenerationInfo{
		Provider: "veo",
		Model:    "veo-2.0-generate-001",
		Prompt:   "a quiet street at dawn",
	}

	if err := s.Save(record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load("scene_01")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Status != models.SceneStatusTranscoding {
		t.Errorf("status = %s, want transcoding", loaded.Status)
	}
	if loaded.Artifacts.TranscodedVideo != record.Artifacts.TranscodedVideo {
		t.Errorf("transcoded path = %q", loaded.Artifacts.TranscodedVideo)
	}
	if loaded.Generation == nil || loaded.Generation.Provider != "veo" {
		t.Errorf("generation info not round-tripped: %+v", loaded.Generation)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load("nope")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestLoadCorruptJSON(t *testing.T) {
	s := newTestStore(t)

	dir, err := s.ScenePath("scene_01")
	if err != nil {
		t.Fatalf("ScenePath: %v", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = s.Load("scene_01")
	var corrupt *models.CorruptRecordError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptRecordError, got %v", err)
	}

	// The corrupt file stays on disk for the operator.
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("corrupt record was removed: %v", statErr)
	}
}

func TestLoadInvariantViolation(t *testing.T) {
	s := newTestStore(t)

	// Synced video without the preceding artifacts: a hand-edited record.
	dir, err := s.ScenePath("scene_01")
	if err != nil {
		t.Fatalf("ScenePath: %v", err)
	}
	bad := `{"scene_id":"scene_01","status":"syncing","artifacts":{"synced_video":"/tmp/x.mp4"}}`
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(bad), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = s.Load("scene_01")
	var corrupt *models.CorruptRecordError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptRecordError, got %v", err)
	}
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	s := newTestStore(t)

	record := models.NewSceneRecord("scene_01")
	record.Artifacts.SyncedVideo = "/tmp/x.mp4" // no earlier artifacts

	if err := s.Save(record); err == nil {
		t.Fatal("expected Save to reject invariant-violating record")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)

	record := models.NewSceneRecord("scene_01")
	if err := s.Save(record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dir, _ := s.ScenePath("scene_01")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "metadata.json" {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}

func TestListSortedAndSkipsCorrupt(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"scene_03", "scene_01", "scene_02"} {
		if err := s.Save(models.NewSceneRecord(id)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	// One corrupt record and one empty scene folder should not break List.
	dir, _ := s.ScenePath("scene_99")
	os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("oops"), 0o644)
	s.ScenePath("scene_empty")

	records, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, want := range []string{"scene_01", "scene_02", "scene_03"} {
		if records[i].SceneID != want {
			t.Errorf("records[%d] = %s, want %s", i, records[i].SceneID, want)
		}
	}
}
