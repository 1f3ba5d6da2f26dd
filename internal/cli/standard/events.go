// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package standard

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccheshirecat/usbvlan/internal/cli/client"
	"github.com/ccheshirecat/usbvlan/internal/cli/tui"
)

func newEventsCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent provisioning events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			items, err := api.Events(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return encodeAsJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No events recorded")
				return nil
			}
			fmt.Fprintf(out, "%-20s %-24s %-10s %s\n", "TIME", "TYPE", "INTERFACE", "DETAIL")
			for _, ev := range items {
				fmt.Fprintf(out, "%-20s %-24s %-10s %s\n", ev.Timestamp.Local().Format(time.DateTime), ev.Type, orDash(ev.Interface), eventDetail(ev))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON")
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream provisioning events as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			err = api.WatchEvents(ctx, func(ev client.Event) {
				writeEventLine(cmd.OutOrStdout(), ev)
			})
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	return cmd
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive status dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), api)
		},
	}
}

func writeEventLine(out io.Writer, ev client.Event) {
	fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", ev.Timestamp.Format(time.RFC3339), ev.Type, orDash(ev.Interface), eventDetail(ev))
}

func eventDetail(ev client.Event) string {
	switch {
	case ev.Command != "" && ev.Message != "":
		return ev.Command + ": " + ev.Message
	case ev.Command != "":
		return ev.Command
	}
	return ev.Message
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
