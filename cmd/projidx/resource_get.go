package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newResourceGetCmd(flags *globalFlags) *cobra.Command {
	var (
		version int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "get <project-id> <path>",
		Short: "Write the content of a resource version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if version < 0 {
				return fmt.Errorf("invalid version %d", version)
			}

			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			content, _, err := a.svc.RetrieveResourceContent(cmd.Context(), args[0], args[1], version)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(content)
				return err
			}

			if err := os.WriteFile(output, content, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Version index to read (0 is the current version)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", `Destination file, "-" for standard output`)

	return cmd
}
