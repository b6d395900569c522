// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package inject

import "grimm.is/appwall/internal/errors"

func openRaw() (rawConn, error) {
	return nil, errors.New(errors.KindSetup, "raw packet injection not supported on this platform")
}
