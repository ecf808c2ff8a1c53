package main

import (
	"github.com/spf13/cobra"
)

func newResourceCurrentCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "current <project-id> <path>",
		Short: "Show the current version of a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.svc.GetCurrentResourceVersion(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			return render(cmd, flags.format, v, versionTable(v))
		},
	}
}
