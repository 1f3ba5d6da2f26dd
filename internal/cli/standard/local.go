// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package standard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
	"github.com/ccheshirecat/usbvlan/internal/agent/config"
	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
	"github.com/ccheshirecat/usbvlan/internal/agent/usb"
	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
	"github.com/ccheshirecat/usbvlan/internal/shared/logging"
)

// registryFactory is swapped in tests.
var registryFactory = func() (usb.Registry, error) {
	return usb.DefaultRegistry(command.NewExecRunner())
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the adapter's interface name on this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			registry, err := registryFactory()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			name, err := usb.ResolveInterfaceName(ctx, registry, cfg.Target)
			if err != nil {
				if errors.Is(err, usb.ErrDeviceNotFound) {
					return fmt.Errorf("adapter %s is not attached", cfg.Target)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newPlanCmd() *cobra.Command {
	var iface string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the commands the agent runs on arrival and removal",
		Long: "plan drives the provisioner against a dry runner and prints every command it " +
			"would issue. Without --interface the adapter is resolved on this host.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if iface == "" {
				registry, err := registryFactory()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				if iface, err = usb.ResolveInterfaceName(ctx, registry, cfg.Target); err != nil {
					return fmt.Errorf("resolve interface (pass --interface to skip): %w", err)
				}
			}
			provision, teardown, err := planCommands(cmd.Context(), cfg, iface)
			if err != nil {
				return err
			}
			writePlan(cmd.OutOrStdout(), provision, teardown)
			return nil
		},
	}
	cmd.Flags().StringVarP(&iface, "interface", "i", "", "Physical interface to plan for")
	return cmd
}

// planCommands runs one arrival and one removal through a provisioner backed
// by a DryRunner and returns what it issued.
func planCommands(ctx context.Context, cfg config.Config, iface string) ([]command.Invocation, []command.Invocation, error) {
	runner := &command.DryRunner{}
	prov, err := provisioner.New(provisioner.Options{
		Runner:   runner,
		Registry: plannedRegistry{target: cfg.Target, iface: iface},
		Target:   cfg.Target,
		VLAN:     cfg.VLAN,
		Tools:    cfg.Tools,
		Logger:   logging.Discard(),
	})
	if err != nil {
		return nil, nil, err
	}
	prov.Configure(ctx)
	if prov.State() != provisioner.StateConfigured {
		return nil, nil, fmt.Errorf("plan: provisioner did not configure %s", iface)
	}
	provisioned := len(runner.Invocations())
	prov.HandleRemoval(ctx)

	all := runner.Invocations()
	return all[:provisioned], all[provisioned:], nil
}

func writePlan(out io.Writer, provision, teardown []command.Invocation) {
	fmt.Fprintln(out, "# on arrival")
	for _, inv := range provision {
		fmt.Fprintln(out, inv.String())
	}
	fmt.Fprintln(out, "# on removal")
	for _, inv := range teardown {
		fmt.Fprintln(out, inv.String())
	}
}

// plannedRegistry reports a single attached adapter exposing iface.
type plannedRegistry struct {
	target vlan.Target
	iface  string
}

func (r plannedRegistry) Devices(context.Context) ([]*usb.Node, error) {
	return []*usb.Node{{
		Properties: map[string]any{
			usb.PropVendorID:  r.target.VendorID,
			usb.PropProductID: r.target.ProductID,
		},
		Children: []*usb.Node{{
			Name:       r.iface,
			Properties: map[string]any{usb.PropBSDName: r.iface},
		}},
	}}, nil
}
