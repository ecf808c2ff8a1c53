package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/slackmgr/projectindex/resource"
	"github.com/spf13/cobra"
)

func newResourcePutCmd(flags *globalFlags) *cobra.Command {
	var (
		file   string
		author string
		lock   bool
	)

	cmd := &cobra.Command{
		Use:   "put <project-id> <path>",
		Short: "Store a new version of a resource",
		Long: `Store a new version of a resource. Content is read from --file, or from
standard input when --file is "-".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if author == "" {
				return errors.New("--author is required")
			}

			content, err := readContent(cmd, file)
			if err != nil {
				return err
			}

			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			req := resource.StoreRequest{
				ProjectID: args[0],
				Path:      args[1],
				Author:    author,
				Content:   content,
			}

			if lock {
				req.LockHolder = author
			}

			v, err := a.svc.StoreResourceVersion(cmd.Context(), req)
			if err != nil {
				return err
			}

			return render(cmd, flags.format, v, versionTable(v))
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", `File to upload, "-" for standard input`)
	cmd.Flags().StringVar(&author, "author", "", "User storing the version (required)")
	cmd.Flags().BoolVar(&lock, "lock", false, "Keep the new version locked by the author")

	return cmd
}

func readContent(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}

		return content, nil
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	return content, nil
}
