// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ccheshirecat/usbvlan/internal/agent/app"
	"github.com/ccheshirecat/usbvlan/internal/agent/command"
	"github.com/ccheshirecat/usbvlan/internal/agent/config"
	"github.com/ccheshirecat/usbvlan/internal/agent/usb"
	"github.com/ccheshirecat/usbvlan/internal/shared/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.New("usbvland")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	runner := command.ExecRunner{}
	registry, err := usb.DefaultRegistry(runner)
	if err != nil {
		logger.Error("initialize device registry", "error", err)
		os.Exit(1)
	}

	daemon, err := app.New(cfg, logger, app.Deps{
		Runner:   runner,
		Registry: registry,
		Nudges:   usb.LinkNudges,
	})
	if err != nil {
		logger.Error("initialize daemon", "error", err)
		os.Exit(1)
	}

	logger.Info("usb vlan agent starting",
		"target", cfg.Target.String(),
		"vlan", cfg.VLAN.Name,
		"tag", cfg.VLAN.Tag,
		"mtu", cfg.VLAN.MTU,
		"stabilization_delay", cfg.StabilizationDelay,
	)

	if err := daemon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exit", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
