// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package standard

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ccheshirecat/usbvlan/internal/agent/eventbus/memory"
	"github.com/ccheshirecat/usbvlan/internal/agent/events"
	"github.com/ccheshirecat/usbvlan/internal/agent/history"
	"github.com/ccheshirecat/usbvlan/internal/agent/httpapi"
	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
	"github.com/ccheshirecat/usbvlan/internal/agent/usb"
	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
	"github.com/ccheshirecat/usbvlan/internal/shared/logging"
)

type configuredStatus struct{}

func (configuredStatus) Status() provisioner.Status {
	return provisioner.Status{
		State:      provisioner.StateConfigured,
		Interface:  "en5",
		Configured: []string{"en5"},
		Target:     vlan.DefaultTarget(),
		VLAN:       vlan.Default(),
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func startAPI(t *testing.T) (string, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore(8)
	srv := httptest.NewServer(httpapi.New(configuredStatus{}, store, memory.New(), logging.Discard()))
	t.Cleanup(srv.Close)
	return srv.URL, store
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "usbvlanctl ") {
		t.Fatalf("out = %q", out)
	}
}

func TestStatusPlain(t *testing.T) {
	base, _ := startAPI(t)
	out, err := runCLI(t, "--api", base, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"State:      configured", "Interface:  en5", "VLAN:       vlan10 (tag 10, mtu 1450)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEventsTable(t *testing.T) {
	base, store := startAPI(t)
	ctx := context.Background()
	_ = store.Append(ctx, events.AgentEvent{Type: events.TypeDeviceArrived})
	_ = store.Append(ctx, events.AgentEvent{Type: events.TypeCommandFailed, Command: "/sbin/ifconfig vlan10 up", Message: "boom"})

	out, err := runCLI(t, "-a", base, "events", "--limit", "5")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows:\n%s", out)
	}
	if !strings.Contains(lines[1], events.TypeCommandFailed) || !strings.Contains(lines[1], "/sbin/ifconfig vlan10 up: boom") {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestEventsEmpty(t *testing.T) {
	base, _ := startAPI(t)
	out, err := runCLI(t, "-a", base, "events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if strings.TrimSpace(out) != "No events recorded" {
		t.Fatalf("out = %q", out)
	}
}

func TestPlanWithInterface(t *testing.T) {
	out, err := runCLI(t, "plan", "--interface", "en7")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := strings.Join([]string{
		"# on arrival",
		"/sbin/ifconfig vlan10 create",
		"/sbin/ifconfig vlan10 vlan 10 vlandev en7",
		"/sbin/ifconfig vlan10 up",
		"/usr/sbin/ipconfig set vlan10 DHCP",
		"/sbin/ifconfig vlan10 mtu 1450",
		"# on removal",
		"/sbin/ifconfig vlan10 destroy",
	}, "\n") + "\n"
	if out != want {
		t.Fatalf("plan output:\n%s\nwant:\n%s", out, want)
	}
}

func TestPlanHonoursEnv(t *testing.T) {
	t.Setenv("USBVLAN_VLAN_TAG", "20")
	t.Setenv("USBVLAN_VLAN_NAME", "vlan20")
	out, err := runCLI(t, "plan", "-i", "eth1")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, "/sbin/ifconfig vlan20 vlan 20 vlandev eth1") {
		t.Fatalf("plan output:\n%s", out)
	}
}

type fixedRegistry []*usb.Node

func (r fixedRegistry) Devices(context.Context) ([]*usb.Node, error) { return r, nil }

func swapRegistry(t *testing.T, reg usb.Registry) {
	t.Helper()
	prev := registryFactory
	registryFactory = func() (usb.Registry, error) { return reg, nil }
	t.Cleanup(func() { registryFactory = prev })
}

func TestResolve(t *testing.T) {
	swapRegistry(t, plannedRegistry{target: vlan.DefaultTarget(), iface: "en9"})
	out, err := runCLI(t, "resolve")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.TrimSpace(out) != "en9" {
		t.Fatalf("out = %q", out)
	}
}

func TestResolveMissingAdapter(t *testing.T) {
	swapRegistry(t, fixedRegistry{})
	_, err := runCLI(t, "resolve")
	if err == nil || !strings.Contains(err.Error(), "not attached") {
		t.Fatalf("err = %v", err)
	}
}

func TestSetupDryRun(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, "setup", "--dry-run", "--format", "systemd",
		"--state-dir", dir, "--service-file", dir+"/usbvland.service", "--binary", "/opt/usbvland")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !strings.Contains(out, "systemctl enable --now usbvland") || !strings.Contains(out, "Dry run complete") {
		t.Fatalf("out:\n%s", out)
	}
}

func TestParseEnv(t *testing.T) {
	vars, err := parseEnv([]string{"A=1", "B=x=y"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if vars["A"] != "1" || vars["B"] != "x=y" {
		t.Fatalf("vars = %v", vars)
	}
	if _, err := parseEnv([]string{"novalue"}); err == nil {
		t.Fatalf("expected error")
	}
}
