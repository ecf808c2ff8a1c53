package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectRepairCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repair <project-id>",
		Short: "Finish an interrupted state transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			p, repaired, err := a.svc.RepairProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flags.format == "json" {
				return outputJSON(cmd, map[string]any{"project": p, "repaired": repaired})
			}

			if err := render(cmd, flags.format, p, projectTable(p)); err != nil {
				return err
			}

			if repaired {
				fmt.Fprintln(cmd.OutOrStdout(), "repaired pending state transition")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to repair")
			}

			return nil
		},
	}
}
