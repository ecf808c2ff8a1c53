package main

import (
	"errors"

	"github.com/slackmgr/projectindex/resource"
	"github.com/spf13/cobra"
)

// newResourceLockCmd builds "lock" when locked is true and "unlock" otherwise.
func newResourceLockCmd(flags *globalFlags, locked bool) *cobra.Command {
	var user string

	use, short := "lock", "Lock the current version of a resource"
	if !locked {
		use, short = "unlock", "Release the lock on the current version of a resource"
	}

	cmd := &cobra.Command{
		Use:   use + " <project-id> <path>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}

			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			var v *resource.Version

			if locked {
				v, err = a.svc.LockResource(cmd.Context(), args[0], args[1], user)
			} else {
				v, err = a.svc.UnlockResource(cmd.Context(), args[0], args[1], user)
			}

			if err != nil {
				return err
			}

			return render(cmd, flags.format, v, versionTable(v))
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User taking or releasing the lock (required)")

	return cmd
}
