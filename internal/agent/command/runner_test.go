// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package command

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func lookShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecRunnerSuccessCapturesStdout(t *testing.T) {
	sh := lookShell(t)
	res := NewExecRunner().Run(context.Background(), sh, "-c", "echo hello")
	if !res.Succeeded {
		t.Fatalf("expected success, got %+v", res)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestExecRunnerFailureCapturesStderr(t *testing.T) {
	sh := lookShell(t)
	res := NewExecRunner().Run(context.Background(), sh, "-c", "echo 'vlan10: already exists' >&2; exit 1")
	if res.Succeeded {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(res.Stderr, "already exists") {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestExecRunnerLargeOutputDoesNotDeadlock(t *testing.T) {
	sh := lookShell(t)
	// Well past a typical 64KiB pipe buffer on both streams.
	script := "i=0; while [ $i -lt 20000 ]; do echo xxxxxxxxxxxxxxxx; echo yyyyyyyyyyyyyyyy >&2; i=$((i+1)); done"
	res := NewExecRunner().Run(context.Background(), sh, "-c", script)
	if !res.Succeeded {
		t.Fatalf("expected success, got stderr len %d", len(res.Stderr))
	}
	if len(res.Stdout) < 20000*17 || len(res.Stderr) < 20000*17 {
		t.Fatalf("output truncated: stdout=%d stderr=%d", len(res.Stdout), len(res.Stderr))
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-binary")
	res := NewExecRunner().Run(context.Background(), missing)
	if res.Succeeded {
		t.Fatalf("expected failure")
	}
	if !strings.HasPrefix(res.Stderr, "failed to execute:") {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestDryRunnerRecords(t *testing.T) {
	var dr DryRunner
	dr.Run(context.Background(), "/sbin/ifconfig", "vlan10", "create")
	dr.Run(context.Background(), "/usr/sbin/ipconfig", "set", "vlan10", "DHCP")

	calls := dr.Invocations()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if got := calls[0].String(); got != "/sbin/ifconfig vlan10 create" {
		t.Fatalf("first call = %q", got)
	}
	if got := calls[1].String(); got != "/usr/sbin/ipconfig set vlan10 DHCP" {
		t.Fatalf("second call = %q", got)
	}
}
