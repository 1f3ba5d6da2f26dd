// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package usb

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

const sysfsUSBDevicesPath = "/sys/bus/usb/devices"

// SysfsRegistry builds the registry tree from /sys/bus/usb/devices:
// "2-1" (device) → "2-1:1.0" (interface) → "net/<ifname>".
type SysfsRegistry struct {
	fsys fs.FS
	// linkExists filters interface names the network stack does not know yet.
	linkExists func(name string) bool
}

// NewSysfsRegistryFS reads the device tree from fsys, whose root corresponds
// to /sys/bus/usb/devices. linkExists may be nil.
func NewSysfsRegistryFS(fsys fs.FS, linkExists func(string) bool) *SysfsRegistry {
	return &SysfsRegistry{fsys: fsys, linkExists: linkExists}
}

// Devices returns every USB device that reports vendor and product IDs.
func (r *SysfsRegistry) Devices(ctx context.Context) ([]*Node, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read usb devices: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var devices []*Node
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.Contains(name, ":") {
			continue
		}
		dev, ok := r.device(name)
		if !ok {
			continue
		}
		for _, child := range names {
			if strings.HasPrefix(child, name+":") {
				dev.Children = append(dev.Children, r.usbInterface(child))
			}
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (r *SysfsRegistry) device(name string) (*Node, bool) {
	vid, err := r.readHex(path.Join(name, "idVendor"))
	if err != nil {
		return nil, false
	}
	pid, err := r.readHex(path.Join(name, "idProduct"))
	if err != nil {
		return nil, false
	}
	props := map[string]any{PropVendorID: vid, PropProductID: pid}
	if product, err := fs.ReadFile(r.fsys, path.Join(name, "product")); err == nil {
		props["product"] = strings.TrimSpace(string(product))
	}
	return &Node{Name: name, Class: "usb_device", Properties: props}, true
}

func (r *SysfsRegistry) usbInterface(name string) *Node {
	iface := &Node{Name: name, Class: "usb_interface", Properties: map[string]any{}}
	entries, err := fs.ReadDir(r.fsys, path.Join(name, "net"))
	if err != nil {
		return iface
	}
	for _, e := range entries {
		ifname := e.Name()
		if r.linkExists != nil && !r.linkExists(ifname) {
			continue
		}
		iface.Children = append(iface.Children, &Node{
			Name:       ifname,
			Class:      "net",
			Properties: map[string]any{PropBSDName: ifname},
		})
	}
	return iface
}

func (r *SysfsRegistry) readHex(p string) (int, error) {
	data, err := fs.ReadFile(r.fsys, p)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", p, err)
	}
	return int(v), nil
}

func sysfsRoot() fs.FS {
	return os.DirFS(sysfsUSBDevicesPath)
}
