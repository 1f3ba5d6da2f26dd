// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package usb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
)

// EventKind distinguishes hotplug notifications.
type EventKind int

const (
	Arrived EventKind = iota + 1
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Arrived:
		return "arrived"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event signals that the target adapter appeared or went away. It carries no
// device handle; consumers re-scan the registry.
type Event struct {
	Kind EventKind
	Time time.Time
}

// Watcher delivers hotplug events for one target device. The first event
// after Subscribe replays an already-attached device as Arrived.
type Watcher interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// PollWatcher detects arrival and removal by diffing registry presence.
type PollWatcher struct {
	Registry Registry
	Target   vlan.Target
	Interval time.Duration
	// Nudge, when non-nil, triggers an immediate rescan.
	Nudge  <-chan struct{}
	Logger *slog.Logger
}

const defaultPollInterval = time.Second

// Subscribe performs the initial scan synchronously and then polls until ctx
// is done, at which point the returned channel is closed.
func (w *PollWatcher) Subscribe(ctx context.Context) (<-chan Event, error) {
	if w.Registry == nil {
		return nil, fmt.Errorf("usb: watcher requires a registry")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	present, err := Present(ctx, w.Registry, w.Target)
	if err != nil {
		return nil, fmt.Errorf("usb: initial scan: %w", err)
	}

	events := make(chan Event, 8)
	if present {
		logger.Info("target already attached", "target", w.Target.String())
		events <- Event{Kind: Arrived, Time: time.Now()}
	}

	nudge := w.Nudge
	go func() {
		defer close(events)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case _, ok := <-nudge:
				if !ok {
					nudge = nil
					continue
				}
			}

			now, err := Present(ctx, w.Registry, w.Target)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("registry scan failed", "error", err)
				continue
			}
			if now == present {
				continue
			}
			present = now

			ev := Event{Kind: Removed, Time: time.Now()}
			if now {
				ev.Kind = Arrived
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
