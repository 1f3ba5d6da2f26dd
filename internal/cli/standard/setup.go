// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package standard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/usbvlan/internal/setup"
)

func newSetupCmd() *cobra.Command {
	var format string
	var dryRun bool
	var noStart bool
	var stateDir string
	var serviceFile string
	var binary string
	var env []string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Install usbvland as a system service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if binary == "" {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("resolve executable: %w", err)
				}
				binary = filepath.Join(filepath.Dir(exe), "usbvland")
			}
			vars, err := parseEnv(env)
			if err != nil {
				return err
			}

			res, err := setup.Run(ctx, setup.Options{
				Format:      format,
				ServicePath: serviceFile,
				BinaryPath:  binary,
				StateDir:    stateDir,
				Env:         vars,
				DryRun:      dryRun,
				NoStart:     noStart,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res.Commands) > 0 {
				fmt.Fprintln(out, "Commands executed:")
				for _, line := range res.Commands {
					fmt.Fprintf(out, "  %s\n", line)
				}
			}
			if dryRun {
				fmt.Fprintln(out, "Dry run complete. Re-run without --dry-run as root to apply changes.")
			} else {
				fmt.Fprintln(out, "Setup completed successfully.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", setup.DefaultFormat(), "Service format (systemd or launchd)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print actions without executing them")
	cmd.Flags().BoolVar(&noStart, "no-start", false, "Write the service definition without loading it")
	cmd.Flags().StringVar(&stateDir, "state-dir", envOrDefault("USBVLAN_STATE_DIR", "/var/lib/usbvlan"), "State directory for the daemon")
	cmd.Flags().StringVar(&serviceFile, "service-file", "", "Service definition path (default depends on format)")
	cmd.Flags().StringVar(&binary, "binary", "", "usbvland binary path (default: next to usbvlanctl)")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "Extra KEY=VALUE for the daemon environment (repeatable)")
	return cmd
}

func parseEnv(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", pair)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}
