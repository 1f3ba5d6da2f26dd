// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package history

import (
	"context"
	"log/slog"

	"github.com/ccheshirecat/usbvlan/internal/agent/eventbus"
	"github.com/ccheshirecat/usbvlan/internal/agent/events"
)

// Recorder copies agent events from the bus into a Store.
type Recorder struct {
	store  Store
	bus    eventbus.Bus
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store, bus eventbus.Bus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, bus: bus, logger: logger.With("component", "history")}
}

// Run subscribes to agent events and appends each one until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	ch := make(chan any, 64)
	unsubscribe, err := r.bus.Subscribe(events.TopicAgentEvents, ch)
	if err != nil {
		return err
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-ch:
			ev, ok := payload.(events.AgentEvent)
			if !ok {
				continue
			}
			if err := r.store.Append(ctx, ev); err != nil && ctx.Err() == nil {
				r.logger.Warn("record event", "type", ev.Type, "error", err)
			}
		}
	}
}
