package main

import (
	"github.com/slackmgr/projectindex/project"
	"github.com/spf13/cobra"
)

func newProjectCreateCmd(flags *globalFlags) *cobra.Command {
	var (
		name        string
		owner       string
		description string
		state       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.svc.CreateProject(cmd.Context(), project.Project{
				Name:        name,
				Owner:       owner,
				Description: description,
				State:       project.State(state),
			})
			if err != nil {
				return err
			}

			return render(cmd, flags.format, p, projectTable(p))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "Project owner (required)")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&state, "state", string(project.Initialising), "Initial state")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
