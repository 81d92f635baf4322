package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"sceneforge/internal/models"
	"sceneforge/internal/store"
)

// Handler serves read-only scene status from the on-disk store.
type Handler struct {
	projectsRoot string
}

func NewHandler(projectsRoot string) *Handler {
	return &Handler{projectsRoot: projectsRoot}
}

// sceneSummary is the list-view projection of a SceneRecord.
type sceneSummary struct {
	SceneID       string               `json:"scene_id"`
	Status        models.SceneStatus   `json:"status"`
	FinalVideo    string               `json:"final_video,omitempty"`
	FailureStage  models.Stage         `json:"failure_stage,omitempty"`
	FailureReason models.FailureReason `json:"failure_reason,omitempty"`
}

// ListScenes handles GET /v1/projects/{project}/scenes
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	st, err := h.openStore(chi.URLParam(r, "project"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := st.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list scenes")
		return
	}

	summaries := make([]sceneSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, sceneSummary{
			SceneID:       rec.SceneID,
			Status:        rec.Status,
			FinalVideo:    rec.Artifacts.FinalVideo,
			FailureStage:  rec.FailureStage,
			FailureReason: rec.FailureReason,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"project": st.Project(),
		"scenes":  summaries,
	})
}

// GetScene handles GET /v1/projects/{project}/scenes/{sceneID}
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	st, err := h.openStore(chi.URLParam(r, "project"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := st.Load(chi.URLParam(r, "sceneID"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "Scene not found")
			return
		}
		var corrupt *models.CorruptRecordError
		if errors.As(err, &corrupt) {
			respondError(w, http.StatusConflict, corrupt.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load scene")
		return
	}

	respondJSON(w, http.StatusOK, record)
}

func (h *Handler) openStore(project string) (*store.Store, error) {
	if project == "" {
		return nil, errors.New("project name is required")
	}
	// Reads must not create project directories as a side effect.
	if _, err := os.Stat(filepath.Join(h.projectsRoot, project)); err != nil {
		return nil, fmt.Errorf("unknown project %q", project)
	}
	return store.New(h.projectsRoot, project)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
