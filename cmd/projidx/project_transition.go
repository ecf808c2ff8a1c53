package main

import (
	"fmt"

	"github.com/slackmgr/projectindex/project"
	"github.com/spf13/cobra"
)

func newProjectTransitionCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <project-id> <state>",
		Short: "Move a project to a new state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.svc.TransitionProjectState(cmd.Context(), args[0], project.State(args[1]))
			if err != nil {
				return err
			}

			if err := render(cmd, flags.format, res, projectTable(res.Project)); err != nil {
				return err
			}

			if !res.Changed && flags.format != "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "project already in state %s\n", res.Project.State)
			}

			return nil
		},
	}
}
