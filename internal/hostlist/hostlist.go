// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hostlist is the app-independent domain blocklist. Rule files
// route "*,domain" lines here instead of into the per-app policy tables.
package hostlist

import (
	"sort"
	"sync"

	"github.com/miekg/dns"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/htable"
)

// List is a concurrency-safe set of blocked domains, stored in canonical
// (lower-case, fully-qualified) form.
type List struct {
	mu   sync.RWMutex
	hint int
	set  *htable.Set
}

// New creates an empty list sized from hint.
func New(hint int) *List {
	return &List{hint: hint, set: htable.NewSet(hint)}
}

// Canonical returns the lookup form of domain, or an error if it is not a
// syntactically valid domain name.
func Canonical(domain string) (string, error) {
	if _, ok := dns.IsDomainName(domain); !ok || domain == "" {
		return "", errors.Attr(errors.New(errors.KindInput, "invalid domain name"), "domain", domain)
	}
	return dns.CanonicalName(domain), nil
}

// Add blocks domain for every application.
func (l *List) Add(domain string) error {
	name, err := Canonical(domain)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set.Add(name)
	return nil
}

// Contains reports whether domain is blocked. Matching is exact after
// canonicalisation; parent domains do not cover subdomains.
func (l *List) Contains(domain string) bool {
	name, err := Canonical(domain)
	if err != nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Contains(name)
}

func (l *List) Remove(domain string) bool {
	name, err := Canonical(domain)
	if err != nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.Remove(name)
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Len()
}

// Reset empties the list.
func (l *List) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set = htable.NewSet(l.hint)
}

// Domains returns the blocked names, sorted.
func (l *List) Domains() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, l.set.Len())
	l.set.Range(func(k string) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}
