package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/slackmgr/projectindex/resource"
	"github.com/spf13/cobra"
)

func newResourceCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Store, list and lock versioned project resources",
	}

	cmd.AddCommand(newResourcePutCmd(flags))
	cmd.AddCommand(newResourceCurrentCmd(flags))
	cmd.AddCommand(newResourceGetCmd(flags))
	cmd.AddCommand(newResourceListCmd(flags))
	cmd.AddCommand(newResourceLockCmd(flags, true))
	cmd.AddCommand(newResourceLockCmd(flags, false))
	cmd.AddCommand(newResourceAssignCmd(flags))
	cmd.AddCommand(newResourceUnassignCmd(flags))
	cmd.AddCommand(newResourceAssignedCmd(flags))

	return cmd
}

func versionTable(versions ...*resource.Version) tabular {
	t := tabular{header: table.Row{"Project", "Path", "Version", "Author", "Locked By", "Size", "Created"}}

	for _, v := range versions {
		t.rows = append(t.rows, table.Row{v.ProjectID, v.Path, v.Index, dash(v.Author), dash(v.LockHolder), v.Size, formatTime(v.CreatedAt)})
	}

	return t
}
