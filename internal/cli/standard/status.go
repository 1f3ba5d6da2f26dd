// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package standard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
	"github.com/ccheshirecat/usbvlan/internal/cli/client"
)

var (
	statusLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	statusBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	stateColors = map[provisioner.State]lipgloss.Color{
		provisioner.StateAbsent:     lipgloss.Color("245"),
		provisioner.StateWaiting:    lipgloss.Color("214"),
		provisioner.StateConfigured: lipgloss.Color("42"),
	}
)

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the agent's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			status, err := api.Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return encodeAsJSON(out, status)
			}
			writeStatus(out, status, isTerminal(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status document")
	return cmd
}

func statusLines(status *client.Status) [][2]string {
	iface := status.Interface
	if iface == "" {
		iface = "-"
	}
	configured := "-"
	if len(status.Configured) > 0 {
		configured = strings.Join(status.Configured, ", ")
	}
	updated := "-"
	if !status.UpdatedAt.IsZero() {
		updated = status.UpdatedAt.Local().Format(time.DateTime)
	}
	return [][2]string{
		{"State", string(status.State)},
		{"Adapter", status.Target.String()},
		{"Interface", iface},
		{"Configured", configured},
		{"VLAN", fmt.Sprintf("%s (tag %d, mtu %d)", status.VLAN.Name, status.VLAN.Tag, status.VLAN.MTU)},
		{"Updated", updated},
	}
}

func writeStatus(out io.Writer, status *client.Status, styled bool) {
	lines := statusLines(status)
	if !styled {
		for _, kv := range lines {
			fmt.Fprintf(out, "%-11s %s\n", kv[0]+":", kv[1])
		}
		return
	}
	rows := make([]string, 0, len(lines))
	for _, kv := range lines {
		value := kv[1]
		if kv[0] == "State" {
			value = lipgloss.NewStyle().Bold(true).Foreground(stateColors[status.State]).Render(value)
		}
		rows = append(rows, statusLabel.Render(kv[0])+value)
	}
	fmt.Fprintln(out, statusBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}
