// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"os"
	"path/filepath"
)

// OriginalStdout is the process stdout as it was before RedirectStdio.
// Child processes that must keep printing to the launching terminal or
// supervisor get this file rather than the log.
var OriginalStdout = os.Stdout

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
}
