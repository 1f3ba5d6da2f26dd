// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

//go:build linux

package usb

import (
	"context"
	"log/slog"

	"github.com/vishvananda/netlink"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
)

// DefaultRegistry returns the sysfs registry. Interfaces unknown to rtnetlink
// (mid-rename by udev, for example) are hidden until they settle.
func DefaultRegistry(command.Runner) (Registry, error) {
	return NewSysfsRegistryFS(sysfsRoot(), linkExists), nil
}

func linkExists(name string) bool {
	_, err := netlink.LinkByName(name)
	return err == nil
}

// LinkNudges emits a tick whenever rtnetlink reports a link change, letting
// the poller rescan immediately instead of waiting for the next interval.
func LinkNudges(ctx context.Context, logger *slog.Logger) (<-chan struct{}, error) {
	updates := make(chan netlink.LinkUpdate, 16)
	done := make(chan struct{})
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					logger.Warn("link subscription closed")
					return
				}
				logger.Debug("link update", "index", u.Index, "name", u.Attrs().Name)
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
