package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sceneforge/internal/models"
	"sceneforge/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(root, "demo")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	handler := NewHandler(root)
	srv := httptest.NewServer(NewRouter(handler, RouterConfig{}))
	t.Cleanup(srv.Close)
	return srv, st
}

func seedScene(t *testing.T, st *store.Store, sceneID string, status models.SceneStatus) {
	t.Helper()
	record := models.NewSceneRecord(sceneID)
	record.Status = status
	if err := st.Save(record); err != nil {
		t.Fatalf("seed %s: %v", sceneID, err)
	}
}

func TestListScenes(t *testing.T) {
	srv, st := newTestServer(t)
	seedScene(t, st, "scene_01", models.SceneStatusCompleted)
	seedScene(t, st, "scene_02", models.SceneStatusFailed)

	resp, err := http.Get(srv.URL + "/v1/projects/demo/scenes")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Project string         `json:"project"`
		Scenes  []sceneSummary `json:"scenes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Project != "demo" {
		t.Errorf("project = %q, want demo", body.Project)
	}
	if len(body.Scenes) != 2 {
		t.Fatalf("scenes = %d, want 2", len(body.Scenes))
	}
	if body.Scenes[0].SceneID != "scene_01" || body.Scenes[1].SceneID != "scene_02" {
		t.Errorf("scenes out of order: %+v", body.Scenes)
	}
}

func TestGetScene(t *testing.T) {
	srv, st := newTestServer(t)
	seedScene(t, st, "scene_01", models.SceneStatusCompleted)

	resp, err := http.Get(srv.URL + "/v1/projects/demo/scenes/scene_01")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var record models.SceneRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.SceneID != "scene_01" || record.Status != models.SceneStatusCompleted {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestGetSceneNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/projects/demo/scenes/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUnknownProject(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/projects/missing/scenes")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
