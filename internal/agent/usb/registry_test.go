// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package usb

import (
	"context"
	"errors"
	"testing"

	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
)

type staticRegistry struct {
	devices []*Node
	err     error
}

func (s staticRegistry) Devices(context.Context) ([]*Node, error) { return s.devices, s.err }

func device(vid, pid int, children ...*Node) *Node {
	return &Node{
		Name:       "USB 10/100/1G/2.5G/5G LAN",
		Class:      "IOUSBHostDevice",
		Properties: map[string]any{PropVendorID: vid, PropProductID: pid},
		Children:   children,
	}
}

func node(name string, props map[string]any, children ...*Node) *Node {
	return &Node{Name: name, Properties: props, Children: children}
}

func TestResolveInterfaceNameWalksToEthernetNode(t *testing.T) {
	target := vlan.DefaultTarget()
	reg := staticRegistry{devices: []*Node{
		device(0x05ac, 0x1234, node("other", nil, node("en", map[string]any{PropBSDName: "en9"}))),
		device(3034, 33111,
			node("IOUSBHostInterface", nil),
			node("IOUSBHostInterface", nil,
				node("AppleUSBNCMData", nil,
					node("IOEthernetInterface", map[string]any{PropBSDName: "en5"}),
				),
			),
		),
	}}

	name, err := ResolveInterfaceName(context.Background(), reg, target)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if name != "en5" {
		t.Fatalf("name = %q, want en5", name)
	}
}

func TestResolveInterfaceNameFirstMatchDepthFirst(t *testing.T) {
	dev := device(1, 2,
		node("a", nil, node("a1", map[string]any{PropBSDName: "en7"})),
		node("b", map[string]any{PropBSDName: "en8"}),
	)
	name, ok := FirstInterfaceName(dev)
	if !ok || name != "en7" {
		t.Fatalf("FirstInterfaceName = %q, %v; want en7", name, ok)
	}
}

func TestResolveInterfaceNameIgnoresDeviceNodeName(t *testing.T) {
	dev := device(1, 2)
	dev.Properties[PropBSDName] = "en1"
	if _, ok := FirstInterfaceName(dev); ok {
		t.Fatalf("device node itself must not be inspected")
	}
}

func TestResolveInterfaceNameErrors(t *testing.T) {
	target := vlan.DefaultTarget()
	tests := []struct {
		name string
		reg  Registry
		want error
	}{
		{name: "no device", reg: staticRegistry{}, want: ErrDeviceNotFound},
		{name: "no interface", reg: staticRegistry{devices: []*Node{device(3034, 33111, node("iface", nil))}}, want: ErrInterfaceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveInterfaceName(context.Background(), tt.reg, target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPresent(t *testing.T) {
	target := vlan.DefaultTarget()
	ok, err := Present(context.Background(), staticRegistry{devices: []*Node{device(3034, 33111)}}, target)
	if err != nil || !ok {
		t.Fatalf("Present = %v, %v", ok, err)
	}
	ok, err = Present(context.Background(), staticRegistry{}, target)
	if err != nil || ok {
		t.Fatalf("Present on empty registry = %v, %v", ok, err)
	}
	boom := errors.New("boom")
	if _, err := Present(context.Background(), staticRegistry{err: boom}, target); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped registry error, got %v", err)
	}
}

func TestIntPropertyKinds(t *testing.T) {
	n := &Node{Properties: map[string]any{
		"a": uint64(3034), "b": int64(7), "c": "42", "d": 1.5,
	}}
	if v, ok := n.IntProperty("a"); !ok || v != 3034 {
		t.Fatalf("uint64: %v %v", v, ok)
	}
	if v, ok := n.IntProperty("b"); !ok || v != 7 {
		t.Fatalf("int64: %v %v", v, ok)
	}
	if v, ok := n.IntProperty("c"); !ok || v != 42 {
		t.Fatalf("string: %v %v", v, ok)
	}
	if _, ok := n.IntProperty("d"); ok {
		t.Fatalf("float must not convert")
	}
}
