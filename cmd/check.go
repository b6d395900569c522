// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"io"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/hostlist"
	"grimm.is/appwall/internal/logging"
	"grimm.is/appwall/internal/policy"
	"grimm.is/appwall/internal/rules"
)

// CheckResult is the verdict for one (app, domain) pair.
type CheckResult struct {
	Decision policy.Decision
	HostRule bool // blocked by a domain-wide rule
	Loaded   int
}

func (r CheckResult) String() string {
	if r.HostRule {
		return "block (host)"
	}
	return r.Decision.String()
}

// Check loads rulesFile into a fresh store and decides app -> domain.
func Check(rulesFile, app, domain string, logger *logging.Logger) (CheckResult, error) {
	if logger == nil {
		logger = logging.WithComponent("check")
	}
	store := policy.NewStore(policy.DefaultTableHint)
	hosts := hostlist.New(policy.DefaultTableHint)

	n, err := rules.NewLoader(store, hosts, logger).Load(rulesFile)
	if err != nil {
		return CheckResult{}, err
	}
	if hosts.Contains(domain) {
		return CheckResult{Decision: policy.Block, HostRule: true, Loaded: n}, nil
	}
	return CheckResult{Decision: store.Decide(app, domain), Loaded: n}, nil
}

// RunCheck prints the verdict for app -> domain under rulesFile.
func RunCheck(w io.Writer, rulesFile, app, domain string, verbose bool) error {
	if rulesFile == "" {
		return errors.New(errors.KindInput, "no rules file given")
	}
	res, err := Check(rulesFile, app, domain, nil)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(w, "%d rules loaded from %s\n", res.Loaded, rulesFile)
	}
	fmt.Fprintln(w, res)
	return nil
}
