package main

import (
	"github.com/spf13/cobra"
)

func newProjectGetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <project-id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.svc.GetProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return render(cmd, flags.format, p, projectTable(p))
		},
	}
}
