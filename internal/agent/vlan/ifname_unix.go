// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

//go:build unix

package vlan

import "golang.org/x/sys/unix"

const maxInterfaceNameLen = unix.IFNAMSIZ
