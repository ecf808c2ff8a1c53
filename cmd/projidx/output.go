package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var errUnknownFormat = errors.New("unknown output format")

type tabular struct {
	header table.Row
	rows   []table.Row
}

// render writes v as indented JSON or the table as a light-styled grid.
func render(cmd *cobra.Command, format string, v any, t tabular) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if format == "json" {
		return outputJSON(cmd, v)
	}

	outputTable(cmd, t)

	return nil
}

func validateFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("%w %q: expected table or json", errUnknownFormat, format)
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func outputTable(cmd *cobra.Command, t tabular) {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(t.header)

	for _, row := range t.rows {
		tw.AppendRow(row)
	}

	tw.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.UTC().Format(time.RFC3339)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
