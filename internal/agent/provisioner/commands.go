// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package provisioner

import (
	"strconv"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
	"github.com/ccheshirecat/usbvlan/internal/agent/vlan"
)

const (
	DefaultIfconfigPath = "/sbin/ifconfig"
	DefaultIpconfigPath = "/usr/sbin/ipconfig"
)

// Tools locates the network configuration binaries.
type Tools struct {
	Ifconfig string
	Ipconfig string
}

// DefaultTools returns the stock macOS tool paths.
func DefaultTools() Tools {
	return Tools{Ifconfig: DefaultIfconfigPath, Ipconfig: DefaultIpconfigPath}
}

func (t Tools) withDefaults() Tools {
	if t.Ifconfig == "" {
		t.Ifconfig = DefaultIfconfigPath
	}
	if t.Ipconfig == "" {
		t.Ipconfig = DefaultIpconfigPath
	}
	return t
}

// ProvisionPlan returns the five provisioning commands, in order, that bind
// desc on top of the physical interface phys.
func ProvisionPlan(tools Tools, desc vlan.Descriptor, phys string) []command.Invocation {
	tools = tools.withDefaults()
	return []command.Invocation{
		{Path: tools.Ifconfig, Args: []string{desc.Name, "create"}},
		{Path: tools.Ifconfig, Args: []string{desc.Name, "vlan", strconv.Itoa(desc.Tag), "vlandev", phys}},
		{Path: tools.Ifconfig, Args: []string{desc.Name, "up"}},
		{Path: tools.Ipconfig, Args: []string{"set", desc.Name, "DHCP"}},
		{Path: tools.Ifconfig, Args: []string{desc.Name, "mtu", strconv.Itoa(desc.MTU)}},
	}
}

// TeardownCommand returns the command that destroys the VLAN interface.
func TeardownCommand(tools Tools, desc vlan.Descriptor) command.Invocation {
	tools = tools.withDefaults()
	return command.Invocation{Path: tools.Ifconfig, Args: []string{desc.Name, "destroy"}}
}
