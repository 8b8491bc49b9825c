package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/keyshift/internal/config"
)

func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var previousOnly bool

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the file-backed session secret",
		Long: `Replace the active session secret with a freshly generated one.

The current secret is kept as the previous secret so existing sessions
stay valid while they migrate. Rotation only applies to file-backed
secrets; secrets supplied via EXPRESS_SESSION_SECRET or held in the
remote secret manager must be rotated at their source. For those, use
--previous-only first: it snapshots the current secret into the
previous-secret file so sessions survive the source-side rotation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			resolver := newResolver(cfg)

			if previousOnly {
				_, err := resolver.SnapshotPrevious(cmd.Context())
				if err != nil {
					return err
				}
				fb := resolver.FileBackend()
				fmt.Fprintf(cmd.OutOrStdout(), "Stored current secret as previous: %s\n", fb.PreviousPath())
				fmt.Fprintln(cmd.OutOrStdout(), "Now rotate the secret at its source and restart the application.")
				return nil
			}

			next, err := resolver.Rotate(cmd.Context())
			if err != nil {
				return err
			}

			fb := resolver.FileBackend()
			fmt.Fprintf(cmd.OutOrStdout(), "Rotated session secret (%d characters)\n", len(next.Value))
			fmt.Fprintf(cmd.OutOrStdout(), "  Active:   %s\n", fb.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "  Previous: %s\n", fb.PreviousPath())
			fmt.Fprintln(cmd.OutOrStdout(), "Restart the application to pick up the new secret.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&previousOnly, "previous-only", false,
		"Only store the current secret as previous; do not replace the active secret")

	return cmd
}
