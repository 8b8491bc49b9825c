package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/keyshift/internal/config"
	"github.com/systmms/keyshift/internal/logging"
)

func NewResolveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the active session secret",
		Long: `Run the full secret resolution and report the outcome.

Resolution checks, in order: the EXPRESS_SESSION_SECRET environment
variable, the remote secret manager (when configured), and the secret
file. On a fresh install this provisions a new secret.

The exit code mirrors application startup: non-zero when no usable
secret can be resolved or the resolved secret is too weak.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			resolver := newResolver(cfg)

			s, err := resolver.EnsureStartup(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Origin: %s\n", s.Origin)
			fmt.Fprintf(cmd.OutOrStdout(), "Value:  %s (%d characters)\n", logging.Secret(s.Value), len(s.Value))

			if _, ok := resolver.Previous(cmd.Context()); ok {
				fmt.Fprintln(cmd.OutOrStdout(), "A previous secret is present; sessions signed with it will be migrated.")
			}
			return nil
		},
	}

	return cmd
}
