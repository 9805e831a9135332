// Package registry holds the in-memory server list: interned game/mission
// type strings, per-server records, query filtering, and list-page packing.
//
// Everything here is owned by the single event-loop goroutine, so nothing
// takes locks.
package registry

import (
	"strings"
)

// PoolString is a reference-counted interned string. Two servers sharing a
// game type hold the same *PoolString, so filter matching is pointer
// equality instead of a string compare per server.
type PoolString struct {
	text string
	refs int
}

// String returns the canonical text, which keeps the case of whichever
// server first registered it.
func (s *PoolString) String() string { return s.text }

// StringPool interns strings case-insensitively.
type StringPool struct {
	entries []*PoolString
}

// Intern returns the pool entry for s, creating one if needed, and takes a
// reference. Matching is case-insensitive; the stored text keeps the first
// registrant's casing.
func (p *StringPool) Intern(s string) *PoolString {
	for _, e := range p.entries {
		if strings.EqualFold(e.text, s) {
			e.refs++
			return e
		}
	}
	e := &PoolString{text: s, refs: 1}
	p.entries = append(p.entries, e)
	return e
}

// Lookup returns the pool entry for s without taking a reference, or nil if
// no server has registered it. Filters use this: a miss means no server can
// match.
func (p *StringPool) Lookup(s string) *PoolString {
	for _, e := range p.entries {
		if strings.EqualFold(e.text, s) {
			return e
		}
	}
	return nil
}

// Release drops a reference, removing the entry once unreferenced.
func (p *StringPool) Release(e *PoolString) {
	if e == nil {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	for i, x := range p.entries {
		if x == e {
			p.entries[i] = p.entries[len(p.entries)-1]
			p.entries[len(p.entries)-1] = nil
			p.entries = p.entries[:len(p.entries)-1]
			return
		}
	}
}

// Count returns the number of distinct interned strings.
func (p *StringPool) Count() int { return len(p.entries) }

// TotalSize returns the wire size of all entries, one length byte plus the
// text each.
func (p *StringPool) TotalSize() int {
	n := 0
	for _, e := range p.entries {
		n += len(e.text) + 1
	}
	return n
}

// Each calls fn for every interned string in insertion-ish order.
func (p *StringPool) Each(fn func(s string)) {
	for _, e := range p.entries {
		fn(e.text)
	}
}
