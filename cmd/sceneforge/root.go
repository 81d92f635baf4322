package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var projectFlag string

	ctx := newCommandContext(&projectFlag)

	rootCmd := &cobra.Command{
		Use:           "sceneforge",
		Short:         "Scene-by-scene AI video generation pipeline",
		Long:          "sceneforge drives video generation providers through a per-scene pipeline:\ngenerate, transcode to ProRes, synthesize dialogue, lip-sync, and analyze.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project name (defaults to PROJECT_NAME)")

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newTTSCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}
