// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package standard

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/usbvlan/internal/cli/client"
)

// Version is stamped at build time with -ldflags "-X ...standard.Version=...".
var Version = "dev"

// Execute runs the Cobra-based CLI entry point.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "usbvlanctl",
		Short:         "USB VLAN agent command-line interface",
		Long:          "usbvlanctl inspects a running usbvland and previews what it would do on this host.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("api", "a", envOrDefault("USBVLAN_API_BASE", client.DefaultBaseURL), "usbvland status API base URL")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newSetupCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the usbvlanctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "usbvlanctl %s\n", Version)
		},
	}
}
