package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var videoPath string
	var includeTags bool

	cmd := &cobra.Command{
		Use:   "analyze <scene_id>",
		Short: "Describe a scene's video with the vision analyzer",
		Long: `Describe a scene's final video with the vision analyzer and save the result
to the scene record. When the scene has no record, the scene folder is
scanned for a video file; --video-path overrides both.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sceneID := args[0]

			analyzer, err := ctx.newAnalyzer()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}

			record, loadErr := st.Load(sceneID)
			if loadErr != nil && !errors.Is(loadErr, os.ErrNotExist) {
				return loadErr
			}

			target := videoPath
			if target == "" && record != nil {
				target = record.Artifacts.FinalVideo
			}
			if target == "" {
				target, err = findSceneVideo(st.ProjectDir(), sceneID)
				if err != nil {
					return err
				}
			}

			result, err := analyzer.Describe(cmd.Context(), target, includeTags)
			if err != nil {
				return err
			}

			fmt.Printf("Description: %s\n", result.Description)
			if result.ShortDescription != "" {
				fmt.Printf("Short: %s\n", result.ShortDescription)
			}
			if len(result.Tags) > 0 {
				fmt.Printf("Tags: %s\n", strings.Join(result.Tags, ", "))
			}

			if record != nil {
				record.Analysis = result
				record.AnalysisWarning = ""
				if err := st.Save(record); err != nil {
					return fmt.Errorf("analysis succeeded but saving the record failed: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&videoPath, "video-path", "", "Analyze this file instead of the recorded final video")
	cmd.Flags().BoolVar(&includeTags, "include-tags", false, "Request searchable keywords as well")

	return cmd
}

// findSceneVideo falls back to scanning the scene folder when no record
// points at a final video.
func findSceneVideo(projectDir, sceneID string) (string, error) {
	sceneDir := filepath.Join(projectDir, sceneID)
	entries, err := os.ReadDir(sceneDir)
	if err != nil {
		return "", fmt.Errorf("scene %s has no record and no folder: %w", sceneID, err)
	}
	for _, ext := range []string{".mov", ".mp4"} {
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
				return filepath.Join(sceneDir, entry.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("no video file found in %s", sceneDir)
}
