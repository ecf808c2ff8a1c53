package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newResourceListCmd(flags *globalFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List the resources of a project, or the versions of one resource with --path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if path != "" {
				versions, err := a.svc.ListResourceVersions(cmd.Context(), args[0], path)
				if err != nil {
					return err
				}

				return render(cmd, flags.format, versions, versionTable(versions...))
			}

			resources, err := a.svc.ListResources(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			t := tabular{header: table.Row{"Project", "Path", "Created By", "Created"}}
			for _, r := range resources {
				t.rows = append(t.rows, table.Row{r.ProjectID, r.Path, dash(r.CreatedBy), formatTime(r.CreatedAt)})
			}

			return render(cmd, flags.format, resources, t)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "List every version of this resource")

	return cmd
}
