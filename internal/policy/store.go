// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package policy decides whether an application may connect to a domain.
//
// Three presence tables express the rules:
//
//	pair whitelist  (app, domain)  force-allow, beats both blacklists
//	app blacklist   app            block everything the app does
//	pair blacklist  (app, domain)  block this pair
//
// Anything not matched is allowed. Loading "app,*" plus a few "app,-domain"
// rules locks an app down to named exceptions; loading only "app,domain"
// rules lets an app run with specific domains blocked.
package policy

import (
	"sync"

	"grimm.is/appwall/internal/htable"
)

const (
	// DefaultTableHint sizes each table (rounded up to 16381 chains).
	DefaultTableHint = 10000

	// MaxAppNameLen matches the process names attribution reports
	// (MAXCOMLEN less the terminator).
	MaxAppNameLen = 15
	MaxDomainLen  = 255
)

// Decision is the outcome of Decide.
type Decision int

const (
	Allow Decision = iota
	Block
)

func (d Decision) String() string {
	if d == Block {
		return "block"
	}
	return "allow"
}

// Item is an (application, domain) pair. Both fields are bounded.
type Item struct {
	App    string
	Domain string
}

// NewItem builds an Item, truncating oversize fields.
func NewItem(app, domain string) Item {
	return Item{App: bound(app, MaxAppNameLen), Domain: bound(domain, MaxDomainLen)}
}

func bound(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// keySep cannot occur in an app or domain, so distinct pairs never share a key.
const keySep = "\x00"

// Key is the table key for the pair.
func (i Item) Key() string {
	return i.App + keySep + i.Domain
}

// AppKey is the table key for app-wide rules.
func (i Item) AppKey() string {
	return i.App
}

type tables struct {
	pairBlacklist *htable.Set
	appBlacklist  *htable.Set
	pairWhitelist *htable.Set
}

func newTables(hint int) tables {
	return tables{
		pairBlacklist: htable.NewSet(hint),
		appBlacklist:  htable.NewSet(hint),
		pairWhitelist: htable.NewSet(hint),
	}
}

// Store holds the three rule tables.
//
// Decide may run concurrently with itself. Mutations and Reload take the
// write lock, so a Decide never sees a half-rebuilt store.
type Store struct {
	mu   sync.RWMutex
	hint int
	t    tables
}

// NewStore creates an empty store whose tables are sized from hint.
func NewStore(hint int) *Store {
	if hint <= 0 {
		hint = DefaultTableHint
	}
	return &Store{hint: hint, t: newTables(hint)}
}

// Decide returns Allow or Block for a connection by app to domain.
func (s *Store) Decide(app, domain string) Decision {
	it := NewItem(app, domain)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.t.pairWhitelist.Contains(it.Key()) {
		return Allow
	}
	if s.t.appBlacklist.Contains(it.AppKey()) {
		return Block
	}
	if s.t.pairBlacklist.Contains(it.Key()) {
		return Block
	}
	return Allow
}

// Writer mutates a store from inside Reload. It must not escape the callback.
type Writer struct {
	t *tables
}

func (w *Writer) AddPairBlacklist(app, domain string) {
	w.t.pairBlacklist.Add(NewItem(app, domain).Key())
}

func (w *Writer) AddAppBlacklist(app string) {
	w.t.appBlacklist.Add(NewItem(app, "").AppKey())
}

func (w *Writer) AddPairWhitelist(app, domain string) {
	w.t.pairWhitelist.Add(NewItem(app, domain).Key())
}

// Reload discards every rule and lets fn repopulate the store while the
// write lock is held. The store is left with whatever fn added, even when
// fn returns an error.
func (s *Store) Reload(fn func(w *Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.t = newTables(s.hint)
	return fn(&Writer{t: &s.t})
}

// Reset discards every rule.
func (s *Store) Reset() {
	_ = s.Reload(func(*Writer) error { return nil })
}

func (s *Store) update(fn func(w *Writer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Writer{t: &s.t})
}

// AddPairBlacklist blocks app from reaching domain.
func (s *Store) AddPairBlacklist(app, domain string) {
	s.update(func(w *Writer) { w.AddPairBlacklist(app, domain) })
}

// AddAppBlacklist blocks every connection from app.
func (s *Store) AddAppBlacklist(app string) {
	s.update(func(w *Writer) { w.AddAppBlacklist(app) })
}

// AddPairWhitelist allows app to reach domain regardless of blacklists.
func (s *Store) AddPairWhitelist(app, domain string) {
	s.update(func(w *Writer) { w.AddPairWhitelist(app, domain) })
}

func (s *Store) RemovePairBlacklist(app, domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.pairBlacklist.Remove(NewItem(app, domain).Key())
}

func (s *Store) RemoveAppBlacklist(app string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.appBlacklist.Remove(NewItem(app, "").AppKey())
}

func (s *Store) RemovePairWhitelist(app, domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.pairWhitelist.Remove(NewItem(app, domain).Key())
}

// InPairBlacklist, InAppBlacklist and InPairWhitelist report raw table
// membership, without precedence.
func (s *Store) InPairBlacklist(app, domain string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.pairBlacklist.Contains(NewItem(app, domain).Key())
}

func (s *Store) InAppBlacklist(app string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.appBlacklist.Contains(NewItem(app, "").AppKey())
}

func (s *Store) InPairWhitelist(app, domain string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.pairWhitelist.Contains(NewItem(app, domain).Key())
}

// Stats reports how many entries each table holds.
type Stats struct {
	PairBlacklist int
	AppBlacklist  int
	PairWhitelist int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		PairBlacklist: s.t.pairBlacklist.Len(),
		AppBlacklist:  s.t.appBlacklist.Len(),
		PairWhitelist: s.t.pairWhitelist.Len(),
	}
}
