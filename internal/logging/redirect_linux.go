// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package logging

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// RedirectStdio opens (or creates) the log file at path. Unless stdout is a
// terminal, fds 1 and 2 are replaced by the log file so everything the process
// prints lands there. A duplicate of the original stdout is kept in
// OriginalStdout either way. It reports whether the redirect happened.
func RedirectStdio(path string) (bool, error) {
	f, err := openLogFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer f.Close()

	stdoutFd := int(os.Stdout.Fd())
	if dup, err := unix.Dup(stdoutFd); err == nil {
		unix.CloseOnExec(dup)
		OriginalStdout = os.NewFile(uintptr(dup), "/dev/stdout")
	}

	if term.IsTerminal(stdoutFd) {
		return false, nil
	}

	if err := unix.Dup3(int(f.Fd()), stdoutFd, 0); err != nil {
		return false, fmt.Errorf("failed to redirect stdout: %w", err)
	}
	if err := unix.Dup3(int(f.Fd()), int(os.Stderr.Fd()), 0); err != nil {
		return false, fmt.Errorf("failed to redirect stderr: %w", err)
	}
	return true, nil
}
