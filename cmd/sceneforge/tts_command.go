package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newTTSCommand(ctx *commandContext) *cobra.Command {
	var text string
	var voiceID string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "tts <scene_id>",
		Short: "Synthesize dialogue audio into a scene folder without running the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sceneID := args[0]

			tts, err := ctx.newTTS()
			if err != nil {
				return err
			}
			if tts == nil {
				return fmt.Errorf("no TTS provider configured (set ELEVENLABS_API_KEY or CARTESIA_API_KEY)")
			}

			if outputPath == "" {
				st, err := ctx.openStore()
				if err != nil {
					return err
				}
				sceneDir, err := st.ScenePath(sceneID)
				if err != nil {
					return err
				}
				outputPath = filepath.Join(sceneDir, sceneID+"_dialogue.wav")
			}

			if err := tts.Synthesize(cmd.Context(), text, voiceID, outputPath); err != nil {
				return err
			}
			fmt.Printf("Audio written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Dialogue text to synthesize (required)")
	cmd.Flags().StringVar(&voiceID, "voice", "", "TTS voice id override")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output audio path (defaults into the scene folder)")
	cmd.MarkFlagRequired("text")

	return cmd
}
