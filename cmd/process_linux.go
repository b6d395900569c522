// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package cmd

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// comm is 16 bytes including the terminator.
const maxProcessName = 15

// SetProcessName renames the calling thread's comm, which is what ps and top
// show for the helper.
func SetProcessName(name string) error {
	if len(name) > maxProcessName {
		name = name[:maxProcessName]
	}
	buf := append([]byte(name), 0)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}
