// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

//go:build darwin

package usb

import "github.com/ccheshirecat/usbvlan/internal/agent/command"

// DefaultRegistry returns the IOKit registry reader.
func DefaultRegistry(runner command.Runner) (Registry, error) {
	return NewIORegRegistry(runner, "", ""), nil
}
