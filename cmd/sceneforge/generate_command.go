package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sceneforge/internal/models"
	"sceneforge/internal/workflow"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var cfg models.SceneConfig
	var providerFlag string
	var onCollision string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "generate <scene_id>",
		Short: "Generate one scene, or a numbered batch with --count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.SceneID = args[0]
			cfg.Provider = providerFlag

			wf, err := ctx.buildWorkflow(providerFlag)
			if err != nil {
				return err
			}

			if cfg.Count > 1 {
				configs, err := wf.ExpandConfig(cfg, workflow.CollisionPolicy(onCollision))
				if err != nil {
					return err
				}
				outcomes, err := wf.ProcessBatch(cmd.Context(), configs, workflow.BatchOptions{
					Concurrency: concurrency,
				})
				printOutcomeTable(outcomes)
				return err
			}

			record, err := wf.ProcessScene(cmd.Context(), cfg)
			if err != nil {
				// A single-scene failure must exit non-zero.
				return err
			}
			fmt.Printf("Scene %s completed: %s\n", record.SceneID, record.Artifacts.FinalVideo)
			if record.AnalysisWarning != "" {
				fmt.Fprintf(os.Stderr, "warning: analysis skipped: %s\n", record.AnalysisWarning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Prompt, "prompt", "", "Generation prompt (required)")
	cmd.Flags().StringVar(&cfg.NegativePrompt, "negative-prompt", "", "What the provider should avoid")
	cmd.Flags().StringVar(&cfg.Dialogue, "dialogue", "", "Dialogue text to synthesize and lip-sync")
	cmd.Flags().StringVar(&cfg.VoiceID, "voice", "", "TTS voice id override")
	cmd.Flags().StringVar(&cfg.InputImage, "image", "", "First-frame reference image")
	cmd.Flags().StringVar(&cfg.InputVideo, "video", "", "Input video for extension")
	cmd.Flags().StringVar(&cfg.EndImage, "end-image", "", "End-frame image for interpolation")
	cmd.Flags().StringVar(&providerFlag, "provider", "", "Video provider (veo, replicate, sora)")
	cmd.Flags().BoolVar(&cfg.SkipLipSync, "skip-lipsync", false, "Synthesize dialogue but skip lip-sync")
	cmd.Flags().BoolVar(&cfg.Analyze, "analyze", false, "Describe the finished video (non-fatal)")
	cmd.Flags().BoolVar(&cfg.Overwrite, "overwrite", false, "Reprocess from scratch, ignoring prior artifacts")
	cmd.Flags().IntVar(&cfg.Count, "count", 1, "Number of scenes to generate from this seed id")
	cmd.Flags().StringVar(&onCollision, "on-collision", string(workflow.CollisionFail), "Existing-scene policy for --count: fail, skip, or overwrite")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Scenes to run in parallel for --count")
	cmd.MarkFlagRequired("prompt")

	return cmd
}
