// Package store persists per-scene state as one folder per scene containing
// the scene's artifacts and a metadata.json record. The layout is deliberately
// human-inspectable: an operator can open metadata.json in an editor, and a
// crashed run leaves either the old record or the new one, never a torn write.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"sceneforge/internal/models"
)

const metadataFile = "metadata.json"

// Store manages scene folders under <root>/<project>/.
type Store struct {
	root    string
	project string
}

// New creates a store for one project, creating the project directory if
// needed.
func New(root, project string) (*Store, error) {
	if project == "" {
		return nil, fmt.Errorf("project name is required")
	}
	dir := filepath.Join(root, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project dir %s: %w", dir, err)
	}
	return &Store{root: root, project: project}, nil
}

// Project returns the project name this store serves.
func (s *Store) Project() string {
	return s.project
}

// ProjectDir returns the project's root directory.
func (s *Store) ProjectDir() string {
	return filepath.Join(s.root, s.project)
}

// ScenePath returns the folder for a scene, creating it on demand.
func (s *Store) ScenePath(sceneID string) (string, error) {
	dir := filepath.Join(s.root, s.project, sceneID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scene dir %s: %w", dir, err)
	}
	return dir, nil
}

// Exists reports whether a record is already present for the scene.
func (s *Store) Exists(sceneID string) bool {
	_, err := os.Stat(filepath.Join(s.root, s.project, sceneID, metadataFile))
	return err == nil
}

// Load reads a scene record. Returns os.ErrNotExist when no record exists and
// *models.CorruptRecordError when the record cannot be parsed or violates the
// artifact invariant. Corrupt records are never deleted here.
func (s *Store) Load(sceneID string) (*models.SceneRecord, error) {
	path := filepath.Join(s.root, s.project, sceneID, metadataFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scene %s: %w", sceneID, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read record for %s: %w", sceneID, err)
	}

	var record models.SceneRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &models.CorruptRecordError{Project: s.project, SceneID: sceneID, Path: path, Err: err}
	}
	if err := record.Validate(); err != nil {
		return nil, &models.CorruptRecordError{Project: s.project, SceneID: sceneID, Path: path, Err: err}
	}

	return &record, nil
}

// Save writes a scene record atomically: the JSON is written to a temp file
// in the scene folder and renamed over metadata.json, so a crash mid-write
// never leaves a partially-written record observable.
func (s *Store) Save(record *models.SceneRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid record for %s: %w", record.SceneID, err)
	}

	dir, err := s.ScenePath(record.SceneID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record for %s: %w", record.SceneID, err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp record for %s: %w", record.SceneID, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp record for %s: %w", record.SceneID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp record for %s: %w", record.SceneID, err)
	}

	final := filepath.Join(dir, metadataFile)
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace record for %s: %w", record.SceneID, err)
	}

	return nil
}

// List returns all scene records in the project, sorted by scene id.
// Corrupt records are logged and skipped so one bad scene does not hide the
// rest; callers who need the error use Load directly.
func (s *Store) List() ([]*models.SceneRecord, error) {
	dir := filepath.Join(s.root, s.project)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list project %s: %w", s.project, err)
	}

	var records []*models.SceneRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := s.Load(entry.Name())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // scene folder without a record yet
			}
			log.Printf("[Store] Skipping unreadable record %s/%s: %v", s.project, entry.Name(), err)
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SceneID < records[j].SceneID
	})
	return records, nil
}
