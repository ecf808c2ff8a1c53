package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/slackmgr/projectindex/project"
	"github.com/spf13/cobra"
)

func newProjectCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, list and assign projects",
	}

	cmd.AddCommand(newProjectCreateCmd(flags))
	cmd.AddCommand(newProjectGetCmd(flags))
	cmd.AddCommand(newProjectListCmd(flags))
	cmd.AddCommand(newProjectTransitionCmd(flags))
	cmd.AddCommand(newProjectAssignCmd(flags))
	cmd.AddCommand(newProjectRevokeCmd(flags))
	cmd.AddCommand(newProjectAssigneesCmd(flags))
	cmd.AddCommand(newProjectRepairCmd(flags))

	return cmd
}

func projectTable(projects ...*project.Project) tabular {
	t := tabular{header: table.Row{"ID", "Name", "State", "Owner", "State Changed", "Created"}}

	for _, p := range projects {
		state := string(p.State)
		if p.TransitionPending() {
			state += " (from " + string(p.PreviousState) + ")"
		}

		t.rows = append(t.rows, table.Row{p.ID, p.Name, state, p.Owner, formatTime(p.StateChangedAt), formatTime(p.CreatedAt)})
	}

	return t
}

func assignmentTable(assignments ...*project.Assignment) tabular {
	t := tabular{header: table.Row{"Project", "User", "Resource", "Assigned"}}

	for _, a := range assignments {
		t.rows = append(t.rows, table.Row{a.ProjectID, a.Assignee, dash(a.Resource), formatTime(a.AssignedAt)})
	}

	return t
}
