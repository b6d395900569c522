// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package logging

import "fmt"

// RedirectStdio only validates that the log file can be opened on this
// platform; output stays on the inherited descriptors.
func RedirectStdio(path string) (bool, error) {
	f, err := openLogFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return false, f.Close()
}
