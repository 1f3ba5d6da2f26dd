// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
)

const (
	defaultHTTPListen   = "127.0.0.1:9310"
	defaultStateDir     = "~/.usbvlan"
	defaultPollInterval = time.Second

	listenDisabled = "off"
)

// Config captures runtime settings for the agent. Every field has a
// compiled-in default; environment variables only override.
type Config struct {
	Target             vlan.Target
	VLAN               vlan.Descriptor
	Tools              provisioner.Tools
	StabilizationDelay time.Duration
	PollInterval       time.Duration
	// HTTPListen is empty when the status API is disabled.
	HTTPListen   string
	StateDir     string
	DatabasePath string
}

// FromEnv loads configuration using environment variables with defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Target: vlan.DefaultTarget(),
		VLAN: vlan.Descriptor{
			Name: getenv("USBVLAN_VLAN_NAME", vlan.DefaultName),
		},
		Tools: provisioner.Tools{
			Ifconfig: getenv("USBVLAN_IFCONFIG", provisioner.DefaultIfconfigPath),
			Ipconfig: getenv("USBVLAN_IPCONFIG", provisioner.DefaultIpconfigPath),
		},
		HTTPListen:   getenv("USBVLAN_HTTP_LISTEN", defaultHTTPListen),
		StateDir:     expandPath(getenv("USBVLAN_STATE_DIR", defaultStateDir)),
		DatabasePath: expandPath(getenv("USBVLAN_DB_PATH", "")),
	}

	var err error
	if cfg.Target.VendorID, err = getint("USBVLAN_VENDOR_ID", vlan.DefaultVendorID); err != nil {
		return Config{}, err
	}
	if cfg.Target.ProductID, err = getint("USBVLAN_PRODUCT_ID", vlan.DefaultProductID); err != nil {
		return Config{}, err
	}
	if cfg.VLAN.Tag, err = getint("USBVLAN_VLAN_TAG", vlan.DefaultTag); err != nil {
		return Config{}, err
	}
	if cfg.VLAN.MTU, err = getint("USBVLAN_MTU", vlan.DefaultMTU); err != nil {
		return Config{}, err
	}
	if cfg.StabilizationDelay, err = getduration("USBVLAN_STABILIZATION_DELAY", provisioner.DefaultStabilizationDelay); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = getduration("USBVLAN_POLL_INTERVAL", defaultPollInterval); err != nil {
		return Config{}, err
	}

	if err := cfg.Target.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.VLAN.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.StabilizationDelay < 0 {
		return Config{}, fmt.Errorf("stabilization delay must not be negative")
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be positive")
	}

	if strings.EqualFold(cfg.HTTPListen, listenDisabled) {
		cfg.HTTPListen = ""
	}

	if cfg.StateDir == "" {
		return Config{}, fmt.Errorf("state directory required")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.StateDir, "history.db")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getint accepts decimal or 0x-prefixed hex, matching how USB IDs are quoted.
func getint(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return int(v), nil
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(path)
}
