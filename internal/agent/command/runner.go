// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package command runs the host network configuration tools.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Result captures the outcome of one external command.
type Result struct {
	Succeeded bool
	Stdout    string
	Stderr    string
}

// Invocation is a command path plus its arguments.
type Invocation struct {
	Path string
	Args []string
}

func (i Invocation) String() string {
	if len(i.Args) == 0 {
		return i.Path
	}
	return i.Path + " " + strings.Join(i.Args, " ")
}

// Runner executes a command synchronously and reports its outcome.
type Runner interface {
	Run(ctx context.Context, path string, args ...string) Result
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by real processes.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run blocks until the process exits. Both output streams are fully drained
// before the exit status is collected.
func (ExecRunner) Run(ctx context.Context, path string, args ...string) Result {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{Stderr: fmt.Sprintf("failed to execute: %v", err)}
	}
	err := cmd.Wait()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		res.Succeeded = true
		return res
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) && res.Stderr == "" {
		res.Stderr = fmt.Sprintf("failed to execute: %v", err)
	}
	return res
}

// DryRunner records invocations instead of executing them. Every command
// succeeds with empty output.
type DryRunner struct {
	mu    sync.Mutex
	calls []Invocation
}

// Run records the invocation.
func (d *DryRunner) Run(_ context.Context, path string, args ...string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Invocation{Path: path, Args: append([]string(nil), args...)})
	return Result{Succeeded: true}
}

// Invocations returns a copy of everything recorded so far.
func (d *DryRunner) Invocations() []Invocation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Invocation, len(d.calls))
	copy(out, d.calls)
	return out
}
