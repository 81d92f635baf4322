package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sceneforge/internal/models"
	"sceneforge/internal/workflow"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var concurrency int
	var failFast bool
	var onCollision string

	cmd := &cobra.Command{
		Use:   "batch <scenes.json>",
		Short: "Process a batch of scenes from a JSON config file",
		Long: `Process a batch of scenes described by a JSON array of scene configs.
Each entry supports the same fields as the generate flags (scene_id, prompt,
negative_prompt, dialogue, voice_id, input_image, provider, skip_lipsync,
analyze, count). Entries with count > 1 are expanded through the scene id
sequencer before processing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}

			wf, err := ctx.buildWorkflow("")
			if err != nil {
				return err
			}

			var expanded []models.SceneConfig
			for _, cfg := range configs {
				batch, err := wf.ExpandConfig(cfg, workflow.CollisionPolicy(onCollision))
				if err != nil {
					return fmt.Errorf("scene %s: %w", cfg.SceneID, err)
				}
				expanded = append(expanded, batch...)
			}

			outcomes, err := wf.ProcessBatch(cmd.Context(), expanded, workflow.BatchOptions{
				Concurrency: concurrency,
				FailFast:    failFast,
			})
			printOutcomeTable(outcomes)
			return err
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Scenes to run in parallel")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort the batch on the first scene failure")
	cmd.Flags().StringVar(&onCollision, "on-collision", string(workflow.CollisionFail), "Existing-scene policy: fail, skip, or overwrite")

	return cmd
}

func loadBatchFile(path string) ([]models.SceneConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var configs []models.SceneConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("batch file %s contains no scenes", path)
	}
	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
	}
	return configs, nil
}

// printOutcomeTable renders the per-scene outcome table plus an aggregate
// count.
func printOutcomeTable(outcomes []workflow.Outcome) {
	colorize := shouldColorize(os.Stdout)

	rows := make([][]string, 0, len(outcomes))
	succeeded := 0
	for _, o := range outcomes {
		status := "failed"
		detail := ""
		if o.Completed {
			status = "completed"
			succeeded++
		} else if o.Err != nil {
			if o.FailureStage != "" {
				detail = fmt.Sprintf("%s: %s", o.FailureStage, o.FailureReason)
			} else {
				detail = o.Err.Error()
			}
		}
		rows = append(rows, []string{
			o.SceneID,
			colorizeStatus(status, colorize),
			o.Elapsed.Round(100 * time.Millisecond).String(),
			detail,
		})
	}

	fmt.Println(renderTable([]string{"SCENE", "STATUS", "ELAPSED", "DETAIL"}, rows))
	fmt.Printf("%d/%d scenes completed\n", succeeded, len(outcomes))
}
