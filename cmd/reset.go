// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"time"

	"grimm.is/appwall/internal/ctlplane"
	"grimm.is/appwall/internal/inject"
	"grimm.is/appwall/internal/logging"
)

// RunReset asks the helper at addr to reset one connection.
func RunReset(addr string, req inject.Request, timeout time.Duration) error {
	client, err := ctlplane.Dial(addr, timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Reset(req); err != nil {
		return err
	}
	logging.Info("Reset sent", "conn", req.String())
	return nil
}
