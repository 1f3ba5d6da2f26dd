// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package usb finds the target USB adapter in the host device registry,
// resolves the network interface it exposes, and reports hotplug changes.
package usb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
)

// Registry property keys.
const (
	PropBSDName   = "BSD Name"
	PropVendorID  = "idVendor"
	PropProductID = "idProduct"
)

var (
	// ErrDeviceNotFound means no registry entry matches the target IDs.
	ErrDeviceNotFound = errors.New("usb: device not found")
	// ErrInterfaceNotFound means the device subtree exposes no interface name.
	ErrInterfaceNotFound = errors.New("usb: no network interface under device")
	// ErrUnsupported marks a capability that is missing on this platform.
	ErrUnsupported = errors.New("usb: unsupported platform")
)

// Node is one entry of the device registry tree.
type Node struct {
	Name       string
	Class      string
	Properties map[string]any
	Children   []*Node
}

// StringProperty returns a string-valued property.
func (n *Node) StringProperty(key string) (string, bool) {
	if n == nil || n.Properties == nil {
		return "", false
	}
	v, ok := n.Properties[key].(string)
	return v, ok && v != ""
}

// IntProperty returns an integer-valued property, accepting any integer kind
// and decimal strings.
func (n *Node) IntProperty(key string) (int, bool) {
	if n == nil || n.Properties == nil {
		return 0, false
	}
	switch v := n.Properties[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case string:
		i, err := strconv.Atoi(v)
		return i, err == nil
	default:
		return 0, false
	}
}

// Matches reports whether the node carries the target vendor and product IDs.
func (n *Node) Matches(target vlan.Target) bool {
	vid, ok := n.IntProperty(PropVendorID)
	if !ok || vid != target.VendorID {
		return false
	}
	pid, ok := n.IntProperty(PropProductID)
	return ok && pid == target.ProductID
}

// Registry enumerates USB device nodes together with their descendants.
type Registry interface {
	Devices(ctx context.Context) ([]*Node, error)
}

// FindDevice returns the first device matching target.
func FindDevice(ctx context.Context, reg Registry, target vlan.Target) (*Node, error) {
	devices, err := reg.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("usb: enumerate devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Matches(target) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, target)
}

// Present reports whether a matching device is attached.
func Present(ctx context.Context, reg Registry, target vlan.Target) (bool, error) {
	_, err := FindDevice(ctx, reg, target)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrDeviceNotFound) {
		return false, nil
	}
	return false, err
}

// FirstInterfaceName walks the descendants of dev depth-first and returns the
// first interface name found. The device node itself is not inspected.
func FirstInterfaceName(dev *Node) (string, bool) {
	if dev == nil {
		return "", false
	}
	for _, child := range dev.Children {
		if name, ok := child.StringProperty(PropBSDName); ok {
			return name, true
		}
		if name, ok := FirstInterfaceName(child); ok {
			return name, true
		}
	}
	return "", false
}

// ResolveInterfaceName maps the target adapter to the interface name the OS
// assigned to it: USB device → host interface → ethernet interface → name.
func ResolveInterfaceName(ctx context.Context, reg Registry, target vlan.Target) (string, error) {
	dev, err := FindDevice(ctx, reg, target)
	if err != nil {
		return "", err
	}
	name, ok := FirstInterfaceName(dev)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInterfaceNotFound, target)
	}
	return name, nil
}
