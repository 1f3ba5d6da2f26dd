// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package events

import "time"

// AgentEvent describes a provisioning lifecycle change.
type AgentEvent struct {
	Type      string    `json:"type"`
	Interface string    `json:"interface,omitempty"`
	VLAN      string    `json:"vlan,omitempty"`
	Command   string    `json:"command,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	TypeDeviceArrived         = "DEVICE_ARRIVED"
	TypeDeviceRemoved         = "DEVICE_REMOVED"
	TypeVLANConfigured        = "VLAN_CONFIGURED"
	TypeVLANAlreadyConfigured = "VLAN_ALREADY_CONFIGURED"
	TypeResolutionFailed      = "RESOLUTION_FAILED"
	TypeVLANDestroyed         = "VLAN_DESTROYED"
	TypeCommandFailed         = "COMMAND_FAILED"
)

// TopicAgentEvents is the event bus topic for provisioning lifecycle.
const TopicAgentEvents = "agent.vlan.events"
