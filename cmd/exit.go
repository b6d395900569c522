// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import "grimm.is/appwall/internal/errors"

const (
	ExitOK    = 0
	ExitSetup = 1 // helper could not acquire its capture device or sockets
	ExitUsage = 2 // bad config, missing file or bad arguments
)

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsFatal(err):
		return ExitSetup
	default:
		return ExitUsage
	}
}
