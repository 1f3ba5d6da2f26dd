// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package usb

import (
	"context"
	"fmt"
	"strings"

	"howett.net/plist"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
)

const (
	defaultIORegPath  = "/usr/sbin/ioreg"
	defaultIORegClass = "IOUSBHostDevice"

	keyChildren = "IORegistryEntryChildren"
	keyName     = "IORegistryEntryName"
	keyClass    = "IOObjectClass"
)

// IORegRegistry reads the IOKit service plane through `ioreg -a`, which emits
// the matching devices and their subtrees as a property list.
type IORegRegistry struct {
	runner command.Runner
	path   string
	class  string
}

// NewIORegRegistry returns a registry that shells out to ioreg. Empty path
// and class select the defaults.
func NewIORegRegistry(runner command.Runner, path, class string) *IORegRegistry {
	if path == "" {
		path = defaultIORegPath
	}
	if class == "" {
		class = defaultIORegClass
	}
	return &IORegRegistry{runner: runner, path: path, class: class}
}

// Devices lists every instance of the USB device class with its descendants.
func (r *IORegRegistry) Devices(ctx context.Context) ([]*Node, error) {
	res := r.runner.Run(ctx, r.path, "-a", "-r", "-l", "-c", r.class)
	if !res.Succeeded {
		return nil, fmt.Errorf("ioreg: %s", strings.TrimSpace(res.Stderr))
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return nil, nil
	}
	return ParseIORegPlist([]byte(res.Stdout))
}

// ParseIORegPlist decodes the archive produced by `ioreg -a -r`.
func ParseIORegPlist(data []byte) ([]*Node, error) {
	var roots []map[string]any
	if _, err := plist.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("ioreg: decode plist: %w", err)
	}
	nodes := make([]*Node, 0, len(roots))
	for _, root := range roots {
		nodes = append(nodes, nodeFromPlist(root))
	}
	return nodes, nil
}

func nodeFromPlist(entry map[string]any) *Node {
	n := &Node{Properties: make(map[string]any, len(entry))}
	for k, v := range entry {
		switch k {
		case keyChildren:
			children, _ := v.([]any)
			for _, c := range children {
				if child, ok := c.(map[string]any); ok {
					n.Children = append(n.Children, nodeFromPlist(child))
				}
			}
		case keyName:
			n.Name, _ = v.(string)
		case keyClass:
			n.Class, _ = v.(string)
		default:
			n.Properties[k] = v
		}
	}
	return n
}
