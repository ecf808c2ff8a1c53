package main

import (
	"fmt"

	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/project"
	"github.com/spf13/cobra"
)

func newProjectListCmd(flags *globalFlags) *cobra.Command {
	var (
		order    string
		pageSize int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:   "list <state>",
		Short: "List projects in a state, ordered by when they entered it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ord, err := index.ParseOrder(order)
			if err != nil {
				return fmt.Errorf("invalid order %q: %w", order, err)
			}

			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			page, err := a.svc.ListProjectsByState(cmd.Context(), project.State(args[0]), ord, pageSize, cursor)
			if err != nil {
				return err
			}

			if err := render(cmd, flags.format, page, projectTable(page.Items...)); err != nil {
				return err
			}

			if page.Cursor != "" && flags.format != "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", page.Cursor)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&order, "order", "asc", "Sort order: asc or desc")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Maximum projects per page (0 uses the service default)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor returned by a previous page")

	return cmd
}
