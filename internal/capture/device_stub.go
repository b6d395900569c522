// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package capture

import "grimm.is/appwall/internal/errors"

func defaultRouteDevice() (string, error) {
	return "", errors.New(errors.KindNotFound, "default route lookup not supported")
}
