package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectAssignCmd(flags *globalFlags) *cobra.Command {
	var resourcePath string

	cmd := &cobra.Command{
		Use:   "assign <project-id> <user>",
		Short: "Assign a user to a project or to one of its resources",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			assignment, err := a.svc.AssignUser(cmd.Context(), args[0], args[1], resourcePath)
			if err != nil {
				return err
			}

			return render(cmd, flags.format, assignment, assignmentTable(assignment))
		},
	}

	cmd.Flags().StringVar(&resourcePath, "resource", "", "Limit the assignment to one resource path")

	return cmd
}

func newProjectRevokeCmd(flags *globalFlags) *cobra.Command {
	var resourcePath string

	cmd := &cobra.Command{
		Use:   "revoke <project-id> <user>",
		Short: "Remove a user assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.RevokeUser(cmd.Context(), args[0], args[1], resourcePath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s from %s\n", args[1], args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&resourcePath, "resource", "", "Resource path of the assignment to remove")

	return cmd
}

func newProjectAssigneesCmd(flags *globalFlags) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "assignees [project-id]",
		Short: "List the users of a project, or the projects of a user with --user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (user == "") == (len(args) == 0) {
				return errors.New("pass either a project id or --user")
			}

			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if user != "" {
				assignments, err := a.svc.ListUserProjects(cmd.Context(), user)
				if err != nil {
					return err
				}

				return render(cmd, flags.format, assignments, assignmentTable(assignments...))
			}

			assignments, err := a.svc.ListAssignees(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return render(cmd, flags.format, assignments, assignmentTable(assignments...))
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "List the projects assigned to this user")

	return cmd
}
