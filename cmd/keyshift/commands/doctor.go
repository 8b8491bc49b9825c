package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/keyshift/internal/backends"
	"github.com/systmms/keyshift/internal/config"
	kserrors "github.com/systmms/keyshift/internal/errors"
	"github.com/systmms/keyshift/pkg/secret"
)

// backendCheck is one row of the doctor report.
type backendCheck struct {
	Name    string
	Status  string
	Message string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check secret backends and session store configuration",
		Long: `Diagnose the secret resolution setup without changing anything.

This command checks:
- Which backend would supply the active secret
- Whether a previous secret is present for session migration
- Secret strength
- Session store connectivity (when a store is configured)

Unlike 'keyshift resolve', doctor never provisions a secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking keyshift configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("✓ Configuration loaded")

			def := cfg.Definition
			ctx := cmd.Context()

			var (
				checks  []backendCheck
				winner  string
				active  secret.Secret
				haveOne bool
			)

			// Environment variable
			if s, err := backends.NewEnvBackend("").Lookup(); err == nil {
				checks = append(checks, backendCheck{
					Name:    "environment",
					Status:  "set",
					Message: backends.EnvVarSecret + " supplies the secret",
				})
				winner, active, haveOne = "environment", s, true
			} else {
				checks = append(checks, backendCheck{
					Name:    "environment",
					Status:  "unset",
					Message: backends.EnvVarSecret + " is not set",
				})
			}

			// Remote secret manager
			rc := def.RemoteBackendConfig()
			if rc != nil {
				check := backendCheck{Name: "remote"}
				rb, err := backends.NewRemoteBackend(*rc)
				if err != nil {
					check.Status = "error"
					check.Message = err.Error()
				} else if s, err := rb.Lookup(ctx); err == nil {
					check.Status = "ok"
					check.Message = fmt.Sprintf("secret '%s' exists", rb.SecretName())
					if !haveOne {
						winner, active, haveOne = "remote manager", s, true
					}
				} else if errors.Is(err, backends.ErrSecretNotFound) {
					check.Status = "empty"
					check.Message = fmt.Sprintf("secret '%s' would be created on startup", rb.SecretName())
				} else {
					check.Status = "error"
					check.Message = err.Error()
				}
				checks = append(checks, check)
			} else {
				checks = append(checks, backendCheck{
					Name:    "remote",
					Status:  "off",
					Message: "no remote block in configuration",
				})
			}

			// Secret file. Never wins when a remote manager is configured:
			// resolution does not fall through past a configured remote.
			fb := backends.NewFileBackend(baseDirFromConfig(def))
			if s, err := fb.Lookup(); err == nil {
				status := "ok"
				if rc != nil {
					status = "shadowed"
				}
				checks = append(checks, backendCheck{
					Name:    "file",
					Status:  status,
					Message: fb.Path(),
				})
				if !haveOne && rc == nil {
					winner, active, haveOne = "file", s, true
				}
			} else {
				msg := fb.Path() + " would be created on startup"
				if rc != nil {
					msg = "not used while the remote manager is configured"
				}
				checks = append(checks, backendCheck{
					Name:    "file",
					Status:  "empty",
					Message: msg,
				})
			}

			// Previous secret
			if _, err := fb.LookupPrevious(); err == nil {
				checks = append(checks, backendCheck{
					Name:    "previous",
					Status:  "ok",
					Message: "sessions signed with the retired secret will migrate",
				})
			} else {
				checks = append(checks, backendCheck{
					Name:    "previous",
					Status:  "absent",
					Message: "no retired secret; nothing to migrate",
				})
			}

			// Session store
			if def != nil && def.Store != nil {
				check := backendCheck{Name: "store"}
				if _, err := def.NewSessionStore(ctx); err != nil {
					check.Status = "error"
					check.Message = err.Error()
				} else {
					check.Status = "ok"
					check.Message = def.Store.Type + " store reachable"
				}
				checks = append(checks, check)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tSTATUS\tDETAIL")
			for _, c := range checks {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Status, c.Message)
			}
			w.Flush()

			fmt.Fprintln(cmd.OutOrStdout())
			if !haveOne {
				fmt.Fprintln(cmd.OutOrStdout(), "No secret present yet; one will be provisioned on first startup.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Active secret would come from: %s\n", winner)
			if !active.IsSecure() {
				return kserrors.InsecureSecretError{
					Origin: string(active.Origin),
					Length: len(active.Value),
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Strength: ok")
			return nil
		},
	}

	return cmd
}
