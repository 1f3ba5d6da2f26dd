// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

//go:build !linux && !darwin

package usb

import (
	"context"
	"log/slog"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
)

// DefaultRegistry is unavailable on this platform.
func DefaultRegistry(command.Runner) (Registry, error) {
	return nil, ErrUnsupported
}

// LinkNudges is unavailable on this platform.
func LinkNudges(context.Context, *slog.Logger) (<-chan struct{}, error) {
	return nil, ErrUnsupported
}
