package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every scene in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}

			records, err := st.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("Project %s has no scenes yet.\n", st.Project())
				return nil
			}

			colorize := shouldColorize(os.Stdout)
			rows := make([][]string, 0, len(records))
			completed := 0
			for _, rec := range records {
				detail := ""
				switch {
				case rec.FailureMessage != "":
					detail = fmt.Sprintf("%s: %s", rec.FailureStage, rec.FailureMessage)
				case rec.Artifacts.FinalVideo != "":
					detail = filepath.Base(rec.Artifacts.FinalVideo)
				}
				if rec.AnalysisWarning != "" {
					detail += " (analysis warning)"
				}
				if rec.Status == "completed" {
					completed++
				}
				provider := ""
				if rec.Generation != nil {
					provider = rec.Generation.Provider
				}
				rows = append(rows, []string{
					rec.SceneID,
					colorizeStatus(string(rec.Status), colorize),
					provider,
					detail,
				})
			}

			fmt.Println(renderTable([]string{"SCENE", "STATUS", "PROVIDER", "DETAIL"}, rows))
			fmt.Printf("%d/%d scenes completed\n", completed, len(records))
			return nil
		},
	}
}
