// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package usb

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
)

func sysfsFixture() fstest.MapFS {
	return fstest.MapFS{
		"usb2/idVendor":               {Data: []byte("1d6b\n")},
		"usb2/idProduct":              {Data: []byte("0003\n")},
		"2-1/idVendor":                {Data: []byte("0bda\n")},
		"2-1/idProduct":               {Data: []byte("8157\n")},
		"2-1/product":                 {Data: []byte("USB 10/100/1G/2.5G/5G LAN\n")},
		"2-1:1.0/bInterfaceClass":     {Data: []byte("02\n")},
		"2-1:1.1/net/enx00e04c680001": {Mode: fs.ModeDir | 0o755},
		"2-2/idVendor":                {Data: []byte("046d\n")},
		"2-2/idProduct":               {Data: []byte("c52b\n")},
	}
}

func TestSysfsRegistryResolvesNetName(t *testing.T) {
	reg := NewSysfsRegistryFS(sysfsFixture(), nil)
	name, err := ResolveInterfaceName(context.Background(), reg, vlan.DefaultTarget())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if name != "enx00e04c680001" {
		t.Fatalf("name = %q", name)
	}
}

func TestSysfsRegistryDevices(t *testing.T) {
	reg := NewSysfsRegistryFS(sysfsFixture(), nil)
	devices, err := reg.Devices(context.Background())
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(devices))
	}
	var target *Node
	for _, d := range devices {
		if d.Name == "2-1" {
			target = d
		}
	}
	if target == nil {
		t.Fatalf("device 2-1 missing")
	}
	if len(target.Children) != 2 {
		t.Fatalf("expected 2 interfaces, got %d", len(target.Children))
	}
	if p, _ := target.StringProperty("product"); p != "USB 10/100/1G/2.5G/5G LAN" {
		t.Fatalf("product = %q", p)
	}
}

func TestSysfsRegistryLinkFilter(t *testing.T) {
	reg := NewSysfsRegistryFS(sysfsFixture(), func(string) bool { return false })
	_, err := ResolveInterfaceName(context.Background(), reg, vlan.DefaultTarget())
	if !errors.Is(err, ErrInterfaceNotFound) {
		t.Fatalf("err = %v, want ErrInterfaceNotFound", err)
	}
}
