package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sceneforge/internal/models"
	"sceneforge/internal/sequencer"
)

// CollisionPolicy decides what happens when a sequencer-expanded scene id
// already exists in the project.
type CollisionPolicy string

const (
	// CollisionFail aborts the expansion. The default: batch variation
	// must never silently land on top of existing scenes.
	CollisionFail CollisionPolicy = "fail"
	// CollisionSkip drops colliding ids from the batch.
	CollisionSkip CollisionPolicy = "skip"
	// CollisionOverwrite reprocesses colliding scenes from scratch.
	CollisionOverwrite CollisionPolicy = "overwrite"
)

// BatchOptions controls batch execution. The zero value is the safe
// baseline: sequential, keep going after individual failures.
type BatchOptions struct {
	// Concurrency bounds how many scenes run in parallel. Values <= 1 mean
	// strictly sequential processing in insertion order.
	Concurrency int
	// FailFast aborts the batch on the first scene failure. Off by default:
	// batch runs exist to maximize successful output from flaky remote APIs.
	FailFast bool
}

// Outcome is one scene's result within a batch.
type Outcome struct {
	SceneID       string
	Completed     bool
	FailureStage  models.Stage
	FailureReason models.FailureReason
	Err           error
	Elapsed       time.Duration
}

// ErrAllScenesFailed is returned when not a single scene in a batch
// completed.
var ErrAllScenesFailed = errors.New("all scenes in batch failed")

// ExpandConfig turns a config with Count > 1 into Count configs whose ids
// come from the identifier sequencer, then applies the collision policy
// against the project's existing scenes.
func (w *Workflow) ExpandConfig(cfg models.SceneConfig, policy CollisionPolicy) ([]models.SceneConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	count := cfg.Count
	if count < 1 {
		count = 1
	}
	ids, err := sequencer.NextIDs(cfg.SceneID, count)
	if err != nil {
		return nil, err
	}

	var expanded []models.SceneConfig
	for _, id := range ids {
		if w.store.Exists(id) && !cfg.Overwrite {
			switch policy {
			case CollisionSkip:
				log.Printf("[Workflow] Scene %s already exists, skipping", id)
				continue
			case CollisionOverwrite:
				log.Printf("[Workflow] Scene %s already exists, overwriting", id)
			default:
				return nil, fmt.Errorf("scene %s already exists in project %s (use a collision policy to skip or overwrite)",
					id, w.store.Project())
			}
		}
		c := cfg
		c.SceneID = id
		c.Count = 0
		c.Overwrite = cfg.Overwrite || policy == CollisionOverwrite
		expanded = append(expanded, c)
	}
	return expanded, nil
}

// ProcessBatch runs each scene fully before moving to the next (or up to
// opts.Concurrency scenes at a time). Outcomes are returned in insertion
// order regardless of completion order. The returned error is non-nil only
// when every scene failed, or when FailFast stopped the batch early.
func (w *Workflow) ProcessBatch(ctx context.Context, configs []models.SceneConfig, opts BatchOptions) ([]Outcome, error) {
	outcomes := make([]Outcome, len(configs))
	if len(configs) == 0 {
		return outcomes, nil
	}

	// Short run id to correlate one batch's log lines across scenes.
	runID := uuid.NewString()[:8]
	log.Printf("[Workflow] Starting batch %s: %d scenes (concurrency=%d, failFast=%v)",
		runID, len(configs), opts.Concurrency, opts.FailFast)

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 1 {
		g.SetLimit(opts.Concurrency)
	} else {
		g.SetLimit(1)
	}

	for i, cfg := range configs {
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = Outcome{SceneID: cfg.SceneID, Err: gctx.Err()}
				return nil
			}
			start := time.Now()
			record, err := w.ProcessScene(gctx, cfg)

			outcome := Outcome{SceneID: cfg.SceneID, Elapsed: time.Since(start)}
			if err != nil {
				outcome.Err = err
				var stageErr *models.StageError
				if errors.As(err, &stageErr) {
					outcome.FailureStage = stageErr.Stage
					outcome.FailureReason = stageErr.Reason
				}
				log.Printf("[Workflow] Scene %s failed: %v", cfg.SceneID, err)
			} else {
				outcome.Completed = record.Status == models.SceneStatusCompleted
			}
			outcomes[i] = outcome

			if err != nil && opts.FailFast {
				return fmt.Errorf("fail-fast: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Completed {
			succeeded++
		}
	}
	log.Printf("[Workflow] Batch %s finished: %d/%d scenes completed", runID, succeeded, len(configs))

	if succeeded == 0 {
		return outcomes, ErrAllScenesFailed
	}
	return outcomes, nil
}
