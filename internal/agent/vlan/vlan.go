// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package vlan holds the fixed descriptors the agent provisions against: the
// USB adapter model it watches for and the VLAN sub-interface it creates.
package vlan

import (
	"fmt"
	"strings"
)

const (
	// WisdPi USB 5G Ethernet (0x0BDA/0x8157).
	DefaultVendorID  = 3034
	DefaultProductID = 33111

	DefaultTag  = 10
	DefaultMTU  = 1450
	DefaultName = "vlan10"

	minTag = 1
	maxTag = 4094
	minMTU = 68
	maxMTU = 9216
)

// Target identifies the one USB adapter model the agent cares about.
type Target struct {
	VendorID  int `json:"vendor_id"`
	ProductID int `json:"product_id"`
}

// DefaultTarget returns the built-in adapter identity.
func DefaultTarget() Target {
	return Target{VendorID: DefaultVendorID, ProductID: DefaultProductID}
}

func (t Target) String() string {
	return fmt.Sprintf("VID:%d PID:%d", t.VendorID, t.ProductID)
}

// Validate rejects identities outside the 16-bit USB ID range.
func (t Target) Validate() error {
	if t.VendorID <= 0 || t.VendorID > 0xFFFF {
		return fmt.Errorf("vendor id %d out of range", t.VendorID)
	}
	if t.ProductID <= 0 || t.ProductID > 0xFFFF {
		return fmt.Errorf("product id %d out of range", t.ProductID)
	}
	return nil
}

// Descriptor describes the VLAN sub-interface created on top of the adapter.
type Descriptor struct {
	Tag  int    `json:"tag"`
	MTU  int    `json:"mtu"`
	Name string `json:"name"`
}

// Default returns the built-in VLAN definition.
func Default() Descriptor {
	return Descriptor{Tag: DefaultTag, MTU: DefaultMTU, Name: DefaultName}
}

// Validate checks tag, MTU and interface name bounds.
func (d Descriptor) Validate() error {
	if d.Tag < minTag || d.Tag > maxTag {
		return fmt.Errorf("vlan tag %d out of range %d-%d", d.Tag, minTag, maxTag)
	}
	if d.MTU < minMTU || d.MTU > maxMTU {
		return fmt.Errorf("mtu %d out of range %d-%d", d.MTU, minMTU, maxMTU)
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("vlan interface name required")
	}
	if name != d.Name || strings.ContainsAny(name, " \t/") {
		return fmt.Errorf("invalid vlan interface name %q", d.Name)
	}
	// IFNAMSIZ counts the trailing NUL.
	if len(name) >= maxInterfaceNameLen {
		return fmt.Errorf("vlan interface name %q longer than %d bytes", name, maxInterfaceNameLen-1)
	}
	return nil
}
