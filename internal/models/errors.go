package models

import "fmt"

// StageError is the structured error the workflow raises when a pipeline
// stage fails. It carries everything a caller needs to report the failure:
// which scene, which stage, the classified reason, and the underlying cause.
type StageError struct {
	SceneID string
	Stage   Stage
	Reason  FailureReason
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("scene %s: stage %s failed (%s): %v", e.SceneID, e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps an underlying collaborator error with pipeline context.
func NewStageError(sceneID string, stage Stage, reason FailureReason, err error) *StageError {
	return &StageError{SceneID: sceneID, Stage: stage, Reason: reason, Err: err}
}

// ConfigError reports an invalid SceneConfig or missing required input for
// the selected provider. It fails the scene before any stage runs.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// CorruptRecordError reports a persisted scene record that violates the
// artifact-path invariant or cannot be parsed. The store never deletes such a
// record; the operator resolves it manually.
type CorruptRecordError struct {
	Project string
	SceneID string
	Path    string
	Err     error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt scene record %s/%s at %s: %v", e.Project, e.SceneID, e.Path, e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}
