package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/keyshift/internal/config"
	kserrors "github.com/systmms/keyshift/internal/errors"
	"github.com/systmms/keyshift/pkg/secret"
)

func NewGenerateCommand(cfg *config.Config) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new session secret",
		Long: `Generate a cryptographically strong session secret.

The secret is printed to stdout. Nothing is written to disk; use
'keyshift rotate' to replace the active secret in place.

Examples:
  # Generate and show usage instructions
  keyshift generate

  # Print only the secret, for scripting
  export EXPRESS_SESSION_SECRET=$(keyshift generate --raw)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := secret.Generate()
			if err != nil {
				return kserrors.UserError{
					Message:    "Failed to generate a secret",
					Details:    err.Error(),
					Suggestion: "Check that the system random source is available",
					Err:        err,
				}
			}

			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), s.Value)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated session secret (%d characters):\n\n", len(s.Value))
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n\n", s.Value)
			fmt.Fprintln(cmd.OutOrStdout(), "To use it, either:")
			fmt.Fprintln(cmd.OutOrStdout(), "  - export EXPRESS_SESSION_SECRET=<value>, or")
			fmt.Fprintln(cmd.OutOrStdout(), "  - run 'keyshift rotate' to install a fresh secret in the secret file")
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the secret value")

	return cmd
}
