// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rules loads app/domain rule files into a policy store.
//
// One rule per line, comma separated:
//
//	app,domain     block the pair
//	app,-domain    allow the pair, overriding blacklists
//	app,*          block every connection from app
//	*,domain       block domain for every app (host blocklist)
//	# comment
//
// A line whose first field is an IPv4 or IPv6 address means the file is a
// hosts-style address list, not a rule list, and loading stops there.
package rules

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
	"grimm.is/appwall/internal/policy"
)

// ErrCannotOpen is matched by errors.Is when the rule file cannot be opened.
var ErrCannotOpen = stderrors.New("cannot open rule file")

// HostBlocker receives domain-wide rules.
type HostBlocker interface {
	Add(domain string) error
}

// loopback names are never recorded in any table
var loopbackNames = map[string]bool{
	"localhost":             true,
	"localhost.localdomain": true,
	"local":                 true,
	"ip6-localhost":         true,
	"ip6-loopback":          true,
}

// Loader populates a Store (and a HostBlocker for "*,domain" rules).
type Loader struct {
	Store  *policy.Store
	Hosts  HostBlocker
	Logger *logging.Logger
}

// NewLoader creates a loader. hosts may be nil, in which case domain-wide
// rules are counted but dropped.
func NewLoader(store *policy.Store, hosts HostBlocker, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.WithComponent("rules")
	}
	return &Loader{Store: store, Hosts: hosts, Logger: logger}
}

// Load resets the store and fills it from the file at path, returning the
// number of rules recorded. The store is reset even when the file cannot
// be opened.
func (l *Loader) Load(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		l.Store.Reset()
		err = errors.Wrap(fmt.Errorf("%w: %w", ErrCannotOpen, err), errors.KindNotFound, "load rules")
		err = errors.Attr(err, "path", path)
		l.Logger.Warn("Problem opening rule file", errors.LogArgs(err)...)
		return 0, err
	}
	defer f.Close()

	count, err := l.LoadReader(f)
	if err != nil {
		return count, errors.Attr(err, "path", path)
	}
	l.Logger.Info("Loaded rules", "path", path, "entries", count)
	return count, nil
}

// LoadReader is Load for an already-open stream.
func (l *Loader) LoadReader(r io.Reader) (int, error) {
	count := 0
	err := l.Store.Reload(func(w *policy.Writer) error {
		br := bufio.NewReader(r)
		lineNo := 0
		for {
			line, readErr := br.ReadString('\n')
			if line != "" {
				lineNo++
				switch l.apply(w, line, lineNo) {
				case recorded:
					count++
				case halt:
					return nil
				}
			}
			if readErr == io.EOF {
				return nil
			}
			if readErr != nil {
				return errors.Wrapf(readErr, errors.KindIO, "read rules at line %d", lineNo+1)
			}
		}
	})
	return count, err
}

type outcome int

const (
	skipped outcome = iota
	recorded
	halt
)

// fields splits on commas the way strtok does: empty fields are dropped.
func fields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool { return r == ',' })
}

func (l *Loader) apply(w *policy.Writer, line string, lineNo int) outcome {
	parts := fields(line)
	if len(parts) == 0 {
		return skipped
	}

	first := strings.TrimSpace(parts[0])
	if first == "" || strings.HasPrefix(first, "#") {
		return skipped
	}
	if net.ParseIP(first) != nil {
		l.Logger.Warn("Address literal in rule file, stopping load", "line", lineNo, "field", first)
		return halt
	}

	allApps := first == "*"
	app := first

	if len(parts) < 2 {
		return skipped
	}
	second := strings.TrimSpace(parts[1])

	if second == "*" {
		if allApps {
			return skipped
		}
		w.AddAppBlacklist(app)
		return recorded
	}

	whitelist := strings.HasPrefix(second, "-")
	domain := strings.TrimPrefix(second, "-")
	if domain == "" || loopbackNames[domain] {
		return skipped
	}

	if allApps {
		if l.Hosts != nil {
			if err := l.Hosts.Add(domain); err != nil {
				l.Logger.Warn("Host blocklist rejected domain", append(errors.LogArgs(err), "line", lineNo)...)
			}
		}
		return recorded
	}

	if whitelist {
		w.AddPairWhitelist(app, domain)
	} else {
		w.AddPairBlacklist(app, domain)
	}
	return recorded
}
