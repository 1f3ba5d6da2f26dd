// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

//go:build darwin

package usb

import (
	"context"
	"log/slog"
)

// LinkNudges is not wired on darwin; the poller interval alone drives discovery.
func LinkNudges(context.Context, *slog.Logger) (<-chan struct{}, error) {
	return nil, ErrUnsupported
}
