// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package provisioner maps adapter presence onto the lifecycle of the VLAN
// sub-interface: arrival provisions it, removal tears it down.
package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
	"github.com/ccheshirecat/usbvlan/internal/agent/eventbus"
	"github.com/ccheshirecat/usbvlan/internal/agent/events"
	"github.com/ccheshirecat/usbvlan/internal/agent/usb"
	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
)

// DefaultStabilizationDelay is how long the driver gets to expose the network
// interface after the device shows up.
const DefaultStabilizationDelay = 2 * time.Second

const (
	textAlreadyExists = "already exists"
	textDoesNotExist  = "does not exist"
)

// State is the lifecycle stage of the single adapter slot.
type State string

const (
	StateAbsent     State = "absent"
	StateWaiting    State = "waiting"
	StateConfigured State = "configured"
)

// Status is a point-in-time view of the provisioner.
type Status struct {
	State      State           `json:"state"`
	Interface  string          `json:"interface,omitempty"`
	Configured []string        `json:"configured"`
	Target     vlan.Target     `json:"target"`
	VLAN       vlan.Descriptor `json:"vlan"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Options configures a Provisioner.
type Options struct {
	Runner             command.Runner
	Registry           usb.Registry
	Target             vlan.Target
	VLAN               vlan.Descriptor
	Tools              Tools
	StabilizationDelay time.Duration
	// Bus is optional; lifecycle events are published on events.TopicAgentEvents.
	Bus    eventbus.Bus
	Logger *slog.Logger
}

// Provisioner owns the configured set and drives the provisioning and
// teardown command sequences. HandleArrival, Configure and HandleRemoval
// must all be called from one goroutine; Run does exactly that.
type Provisioner struct {
	runner   command.Runner
	registry usb.Registry
	target   vlan.Target
	desc     vlan.Descriptor
	tools    Tools
	delay    time.Duration
	bus      eventbus.Bus
	logger   *slog.Logger

	state      State
	configured map[string]struct{}
	pending    chan struct{}

	mu     sync.RWMutex
	status Status
}

// New validates opts and constructs a Provisioner in the absent state.
func New(opts Options) (*Provisioner, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("provisioner: runner required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("provisioner: registry required")
	}
	if err := opts.Target.Validate(); err != nil {
		return nil, fmt.Errorf("provisioner: %w", err)
	}
	if err := opts.VLAN.Validate(); err != nil {
		return nil, fmt.Errorf("provisioner: %w", err)
	}
	if opts.StabilizationDelay < 0 {
		return nil, fmt.Errorf("provisioner: negative stabilization delay")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provisioner{
		runner:     opts.Runner,
		registry:   opts.Registry,
		target:     opts.Target,
		desc:       opts.VLAN,
		tools:      opts.Tools.withDefaults(),
		delay:      opts.StabilizationDelay,
		bus:        opts.Bus,
		logger:     logger.With("component", "provisioner"),
		state:      StateAbsent,
		configured: make(map[string]struct{}),
		pending:    make(chan struct{}, 4),
	}
	p.snapshot()
	return p, nil
}

// Run consumes watcher events and deferred configuration ticks until ctx is
// done. It returns ctx.Err().
func (p *Provisioner) Run(ctx context.Context, evs <-chan usb.Event) error {
	p.logger.Info("monitoring for usb ethernet adapter", "target", p.target.String(), "vlan", p.desc.Name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-evs:
			if !ok {
				p.logger.Warn("device watcher stopped; hotplug events will no longer be handled")
				evs = nil
				continue
			}
			switch ev.Kind {
			case usb.Arrived:
				p.HandleArrival(ctx)
			case usb.Removed:
				p.HandleRemoval(ctx)
			}
		case <-p.pending:
			p.Configure(ctx)
		}
	}
}

// HandleArrival records the arrival and schedules Configure after the
// stabilization delay on the Run loop.
func (p *Provisioner) HandleArrival(ctx context.Context) {
	p.logger.Info("target usb device arrived", "target", p.target.String(), "delay", p.delay)
	if p.state != StateConfigured {
		p.state = StateWaiting
	}
	p.snapshot()
	p.publish(ctx, events.AgentEvent{Type: events.TypeDeviceArrived, Message: p.target.String()})

	time.AfterFunc(p.delay, func() {
		select {
		case p.pending <- struct{}{}:
		case <-ctx.Done():
		}
	})
}

// Configure resolves the adapter's interface name and provisions the VLAN on
// it unless that interface is already configured. A failed resolution is not
// retried.
func (p *Provisioner) Configure(ctx context.Context) {
	phys, err := usb.ResolveInterfaceName(ctx, p.registry, p.target)
	if err != nil {
		p.logger.Warn("no network interface found for target device", "target", p.target.String(), "error", err)
		if len(p.configured) == 0 {
			p.state = StateAbsent
		}
		p.snapshot()
		p.publish(ctx, events.AgentEvent{Type: events.TypeResolutionFailed, Message: err.Error()})
		return
	}

	if _, ok := p.configured[phys]; ok {
		p.logger.Info("interface already configured", "interface", phys)
		p.state = StateConfigured
		p.snapshot()
		p.publish(ctx, events.AgentEvent{Type: events.TypeVLANAlreadyConfigured, Interface: phys})
		return
	}

	p.logger.Info("interface identified as target adapter",
		"interface", phys, "vendor_id", p.target.VendorID, "product_id", p.target.ProductID)
	p.provision(ctx, phys)

	p.configured[phys] = struct{}{}
	p.state = StateConfigured
	p.snapshot()
	p.publish(ctx, events.AgentEvent{Type: events.TypeVLANConfigured, Interface: phys})
}

// provision runs every step even when an earlier one fails. An "already
// exists" failure destroys the VLAN and replays the whole sequence once.
func (p *Provisioner) provision(ctx context.Context, phys string) {
	p.logger.Info("configuring vlan", "interface", phys, "vlan", p.desc.Name, "tag", p.desc.Tag, "mtu", p.desc.MTU)
	plan := ProvisionPlan(p.tools, p.desc, phys)

	for _, step := range plan {
		res := p.exec(ctx, step)
		if res.Succeeded {
			p.logger.Info("success", "command", step.String())
			continue
		}
		text := failureText(res)
		p.logger.Error("command failed", "command", step.String(), "output", text)
		p.publish(ctx, events.AgentEvent{Type: events.TypeCommandFailed, Interface: phys, Command: step.String(), Message: text})

		if strings.Contains(text, textAlreadyExists) {
			p.logger.Info("vlan interface already exists, destroying and recreating", "vlan", p.desc.Name)
			p.exec(ctx, TeardownCommand(p.tools, p.desc))
			for _, retry := range plan {
				r := p.exec(ctx, retry)
				if !r.Succeeded {
					p.logger.Error("retry failed", "command", retry.String(), "output", failureText(r))
				}
			}
			break
		}
	}

	p.logger.Info("vlan configuration complete", "interface", phys)
}

// HandleRemoval destroys the VLAN interface and forgets every configured
// interface, whatever the outcome of the destroy command.
func (p *Provisioner) HandleRemoval(ctx context.Context) {
	p.logger.Info("target usb device removed", "target", p.target.String())
	p.publish(ctx, events.AgentEvent{Type: events.TypeDeviceRemoved, Message: p.target.String()})

	destroy := TeardownCommand(p.tools, p.desc)
	res := p.exec(ctx, destroy)

	var removed []string
	for name := range p.configured {
		removed = append(removed, name)
	}
	sort.Strings(removed)
	clear(p.configured)
	p.state = StateAbsent
	p.snapshot()

	if !res.Succeeded && !benignTeardownFailure(failureText(res)) {
		p.logger.Error("failed to destroy vlan interface", "vlan", p.desc.Name, "output", failureText(res))
		p.publish(ctx, events.AgentEvent{Type: events.TypeCommandFailed, Command: destroy.String(), Message: failureText(res)})
		return
	}
	p.logger.Info("vlan interface destroyed", "vlan", p.desc.Name, "interfaces", removed)
	p.publish(ctx, events.AgentEvent{Type: events.TypeVLANDestroyed, Interface: strings.Join(removed, ",")})
}

// Configured returns the configured interface names, sorted. It reads
// loop-owned state and is meant for the Run goroutine and tests; other
// goroutines use Status.
func (p *Provisioner) Configured() []string {
	names := make([]string, 0, len(p.configured))
	for name := range p.configured {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State returns the loop-owned lifecycle stage. See Configured.
func (p *Provisioner) State() State {
	return p.state
}

// Status returns the latest snapshot. Safe for concurrent use.
func (p *Provisioner) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.status
	s.Configured = append([]string{}, p.status.Configured...)
	return s
}

func (p *Provisioner) snapshot() {
	names := p.Configured()
	s := Status{
		State:      p.state,
		Configured: names,
		Target:     p.target,
		VLAN:       p.desc,
		UpdatedAt:  time.Now().UTC(),
	}
	if len(names) > 0 {
		s.Interface = names[0]
	}
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

func (p *Provisioner) exec(ctx context.Context, inv command.Invocation) command.Result {
	p.logger.Debug("exec", "command", inv.String())
	return p.runner.Run(ctx, inv.Path, inv.Args...)
}

func (p *Provisioner) publish(ctx context.Context, ev events.AgentEvent) {
	if p.bus == nil {
		return
	}
	if ev.VLAN == "" {
		ev.VLAN = p.desc.Name
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := p.bus.Publish(ctx, events.TopicAgentEvents, ev); err != nil && ctx.Err() == nil {
		p.logger.Debug("publish event", "type", ev.Type, "error", err)
	}
}

// failureText is the error output the failure policy inspects.
func failureText(res command.Result) string {
	return strings.TrimSpace(res.Stderr)
}

// benignTeardownFailure reports whether a destroy failure only means the
// interface was already gone.
func benignTeardownFailure(text string) bool {
	return text == "" || strings.Contains(text, textDoesNotExist)
}
