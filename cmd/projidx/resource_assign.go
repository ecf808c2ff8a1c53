package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/slackmgr/projectindex/resource"
	"github.com/spf13/cobra"
)

func resourceAssignmentTable(assignments ...*resource.Assignment) tabular {
	t := tabular{header: table.Row{"Project", "Path", "User", "Assigned"}}

	for _, a := range assignments {
		t.rows = append(t.rows, table.Row{a.ProjectID, a.Path, a.Assignee, formatTime(a.AssignedAt)})
	}

	return t
}

func newResourceAssignCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <project-id> <path> <user>",
		Short: "Assign a user to a resource",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			assignment, err := a.svc.AssignResource(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}

			return render(cmd, flags.format, assignment, resourceAssignmentTable(assignment))
		},
	}
}

func newResourceUnassignCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <project-id> <path> <user>",
		Short: "Remove a user from a resource",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.UnassignResource(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "unassigned %s from %s\n", args[2], args[1])

			return nil
		},
	}
}

func newResourceAssignedCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "assigned <user>",
		Short: "List the resources assigned to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			assignments, err := a.svc.ListAssignedResources(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return render(cmd, flags.format, assignments, resourceAssignmentTable(assignments...))
		},
	}
}
