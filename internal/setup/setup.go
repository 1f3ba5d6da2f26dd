// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package setup installs usbvland as a system service.
package setup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/template"

	"howett.net/plist"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
)

// Service formats.
const (
	FormatSystemd = "systemd"
	FormatLaunchd = "launchd"
)

const (
	serviceName  = "usbvland"
	launchdLabel = "com.usbvlan.usbvland"

	defaultSystemdPath = "/etc/systemd/system/usbvland.service"
	defaultLaunchdPath = "/Library/LaunchDaemons/com.usbvlan.usbvland.plist"
)

var geteuid = os.Geteuid

// Options controls the behaviour of the setup routine.
type Options struct {
	// Format is FormatSystemd or FormatLaunchd; empty picks the host's.
	Format      string
	ServicePath string
	BinaryPath  string
	StateDir    string
	LogDir      string
	// Env is written into the service definition.
	Env    map[string]string
	DryRun bool
	// NoStart skips loading the service after writing it.
	NoStart bool
	Runner  command.Runner
}

// Result collects the actions taken, in order.
type Result struct {
	Commands []string
}

// DefaultFormat returns the service format native to this host.
func DefaultFormat() string {
	if runtime.GOOS == "darwin" {
		return FormatLaunchd
	}
	return FormatSystemd
}

// Run writes the service definition and loads it.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Format == "" {
		opts.Format = DefaultFormat()
	}
	if opts.Format != FormatSystemd && opts.Format != FormatLaunchd {
		return nil, fmt.Errorf("unknown service format %q", opts.Format)
	}
	if opts.ServicePath == "" {
		opts.ServicePath = defaultSystemdPath
		if opts.Format == FormatLaunchd {
			opts.ServicePath = defaultLaunchdPath
		}
	}
	if opts.StateDir == "" {
		opts.StateDir = "~/.usbvlan"
	}
	if opts.LogDir == "" {
		opts.LogDir = filepath.Join(opts.StateDir, "logs")
	}
	if opts.Runner == nil {
		opts.Runner = command.NewExecRunner()
	}

	res := &Result{}

	if !opts.DryRun && geteuid() != 0 {
		return nil, errors.New("usbvlanctl setup must be run as root (use --dry-run to preview)")
	}

	binaryPath, err := expand(opts.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("expand binary path: %w", err)
	}
	if binaryPath == "" {
		return nil, errors.New("daemon binary path required")
	}
	stateDir, err := expand(opts.StateDir)
	if err != nil {
		return nil, fmt.Errorf("expand state dir: %w", err)
	}
	logDir, err := expand(opts.LogDir)
	if err != nil {
		return nil, fmt.Errorf("expand log dir: %w", err)
	}

	if err := ensureDir(stateDir, opts.DryRun, res); err != nil {
		return nil, err
	}
	if err := ensureDir(logDir, opts.DryRun, res); err != nil {
		return nil, err
	}

	env := map[string]string{"USBVLAN_STATE_DIR": stateDir}
	for k, v := range opts.Env {
		env[k] = v
	}
	spec := unitSpec{
		Binary:  binaryPath,
		WorkDir: stateDir,
		LogFile: filepath.Join(logDir, serviceName+".log"),
		Env:     env,
	}

	var data []byte
	var load [][]string
	switch opts.Format {
	case FormatSystemd:
		data, err = renderSystemd(spec)
		load = [][]string{
			{"systemctl", "daemon-reload"},
			{"systemctl", "enable", "--now", serviceName},
		}
	case FormatLaunchd:
		data, err = renderLaunchd(spec)
		load = [][]string{
			{"launchctl", "bootout", "system/" + launchdLabel},
			{"launchctl", "bootstrap", "system", opts.ServicePath},
		}
	}
	if err != nil {
		return nil, err
	}

	if err := writeFile(opts.ServicePath, data, opts.DryRun, res); err != nil {
		return nil, err
	}
	if opts.NoStart {
		return res, nil
	}
	for i, args := range load {
		// launchctl bootout fails when nothing is loaded yet.
		ignore := opts.Format == FormatLaunchd && i == 0
		if err := runCommand(ctx, opts.Runner, args, opts.DryRun, res, ignore); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type unitSpec struct {
	Binary  string
	WorkDir string
	LogFile string
	Env     map[string]string
}

func (s unitSpec) SortedEnv() []string {
	out := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

var systemdTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=USB Ethernet VLAN agent
After=network.target

[Service]
Type=simple
User=root
Group=root
WorkingDirectory={{.WorkDir}}
{{- range .SortedEnv}}
Environment={{.}}
{{- end}}
ExecStart={{.Binary}}
Restart=always
RestartSec=5
StandardOutput=append:{{.LogFile}}
StandardError=append:{{.LogFile}}

[Install]
WantedBy=multi-user.target
`))

func renderSystemd(spec unitSpec) ([]byte, error) {
	var buf bytes.Buffer
	if err := systemdTemplate.Execute(&buf, spec); err != nil {
		return nil, fmt.Errorf("render systemd unit: %w", err)
	}
	return buf.Bytes(), nil
}

type launchdJob struct {
	Label                string            `plist:"Label"`
	ProgramArguments     []string          `plist:"ProgramArguments"`
	EnvironmentVariables map[string]string `plist:"EnvironmentVariables,omitempty"`
	WorkingDirectory     string            `plist:"WorkingDirectory"`
	RunAtLoad            bool              `plist:"RunAtLoad"`
	KeepAlive            bool              `plist:"KeepAlive"`
	StandardOutPath      string            `plist:"StandardOutPath"`
	StandardErrorPath    string            `plist:"StandardErrorPath"`
}

func renderLaunchd(spec unitSpec) ([]byte, error) {
	job := launchdJob{
		Label:                launchdLabel,
		ProgramArguments:     []string{spec.Binary},
		EnvironmentVariables: spec.Env,
		WorkingDirectory:     spec.WorkDir,
		RunAtLoad:            true,
		KeepAlive:            true,
		StandardOutPath:      spec.LogFile,
		StandardErrorPath:    spec.LogFile,
	}
	data, err := plist.MarshalIndent(job, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("render launchd plist: %w", err)
	}
	return data, nil
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = os.Getenv("HOME")
		}
		if home == "" {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

func ensureDir(path string, dryRun bool, res *Result) error {
	if path == "" {
		return errors.New("directory path cannot be empty")
	}
	res.Commands = append(res.Commands, fmt.Sprintf("mkdir -p %s", path))
	if dryRun {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", path, err)
	}
	return nil
}

func writeFile(path string, data []byte, dryRun bool, res *Result) error {
	res.Commands = append(res.Commands, fmt.Sprintf("write service file %s", path))
	if dryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare service directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write service file: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, runner command.Runner, args []string, dryRun bool, res *Result, ignoreErrors bool) error {
	res.Commands = append(res.Commands, strings.Join(args, " "))
	if dryRun {
		return nil
	}
	result := runner.Run(ctx, args[0], args[1:]...)
	if !result.Succeeded && !ignoreErrors {
		return fmt.Errorf("run %v: %s", args, strings.TrimSpace(result.Stderr))
	}
	return nil
}

