// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package setup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"howett.net/plist"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
)

func asRoot(t *testing.T) {
	t.Helper()
	prev := geteuid
	geteuid = func() int { return 0 }
	t.Cleanup(func() { geteuid = prev })
}

func TestRunRequiresRoot(t *testing.T) {
	prev := geteuid
	geteuid = func() int { return 501 }
	defer func() { geteuid = prev }()

	_, err := Run(context.Background(), Options{BinaryPath: "/usr/local/bin/usbvland"})
	if err == nil || !strings.Contains(err.Error(), "root") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	servicePath := filepath.Join(dir, "unit.service")
	runner := &command.DryRunner{}
	res, err := Run(context.Background(), Options{
		Format:      FormatSystemd,
		ServicePath: servicePath,
		BinaryPath:  "/usr/local/bin/usbvland",
		StateDir:    filepath.Join(dir, "state"),
		DryRun:      true,
		Runner:      runner,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(servicePath); !os.IsNotExist(err) {
		t.Fatalf("service file written during dry run")
	}
	if len(runner.Invocations()) != 0 {
		t.Fatalf("dry run executed commands: %v", runner.Invocations())
	}
	last := res.Commands[len(res.Commands)-1]
	if last != "systemctl enable --now usbvland" {
		t.Fatalf("last command = %q", last)
	}
}

func TestRunWritesSystemdUnit(t *testing.T) {
	asRoot(t)
	dir := t.TempDir()
	servicePath := filepath.Join(dir, "systemd", "usbvland.service")
	runner := &command.DryRunner{}
	_, err := Run(context.Background(), Options{
		Format:      FormatSystemd,
		ServicePath: servicePath,
		BinaryPath:  "/usr/local/bin/usbvland",
		StateDir:    filepath.Join(dir, "state"),
		Env:         map[string]string{"USBVLAN_VLAN_TAG": "20"},
		Runner:      runner,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(servicePath)
	if err != nil {
		t.Fatalf("read unit: %v", err)
	}
	unit := string(data)
	for _, want := range []string{
		"ExecStart=/usr/local/bin/usbvland",
		"Environment=USBVLAN_VLAN_TAG=20",
		"Environment=USBVLAN_STATE_DIR=" + filepath.Join(dir, "state"),
		"StandardOutput=append:" + filepath.Join(dir, "state", "logs", "usbvland.log"),
	} {
		if !strings.Contains(unit, want) {
			t.Fatalf("unit missing %q:\n%s", want, unit)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "state", "logs")); err != nil {
		t.Fatalf("log dir not created: %v", err)
	}

	calls := runner.Invocations()
	if len(calls) != 2 || calls[1].String() != "systemctl enable --now usbvland" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestRunWritesLaunchdPlist(t *testing.T) {
	asRoot(t)
	dir := t.TempDir()
	servicePath := filepath.Join(dir, "com.usbvlan.usbvland.plist")
	_, err := Run(context.Background(), Options{
		Format:      FormatLaunchd,
		ServicePath: servicePath,
		BinaryPath:  "/usr/local/bin/usbvland",
		StateDir:    filepath.Join(dir, "state"),
		NoStart:     true,
		Runner:      &command.DryRunner{},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(servicePath)
	if err != nil {
		t.Fatalf("read plist: %v", err)
	}
	var job launchdJob
	if _, err := plist.Unmarshal(data, &job); err != nil {
		t.Fatalf("decode plist: %v", err)
	}
	if job.Label != launchdLabel || !job.RunAtLoad || !job.KeepAlive {
		t.Fatalf("job = %+v", job)
	}
	if len(job.ProgramArguments) != 1 || job.ProgramArguments[0] != "/usr/local/bin/usbvland" {
		t.Fatalf("program = %v", job.ProgramArguments)
	}
	if job.EnvironmentVariables["USBVLAN_STATE_DIR"] != filepath.Join(dir, "state") {
		t.Fatalf("env = %v", job.EnvironmentVariables)
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	if _, err := Run(context.Background(), Options{Format: "upstart", DryRun: true}); err == nil {
		t.Fatalf("expected error")
	}
}
