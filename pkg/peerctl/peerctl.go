// Package peerctl tracks per-peer reputation and query sessions.
//
// Flood control is ticket based: every packet charges the sender one ticket,
// malformed packets charge a configurable penalty, and crossing the ticket
// threshold bans the peer for a fixed duration. The same record carries the
// peer's list-query sessions, since both expire on the same cadence.
//
// Like registry, everything here belongs to the event-loop goroutine.
package peerctl

import (
	"crypto/rand"
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/registry"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/wire"
)

// MaxSessionsPerPeer is the hard cap; the config knob can lower it but
// never raise it.
const MaxSessionsPerPeer = 10

// Session is one list query in flight for a peer. Pages hold the pre-packed
// response so resend requests replay without re-running the query.
type Session struct {
	ID          uint16
	Flags       uint8
	AuthSession uint32
	LastUsed    time.Time

	Total uint16
	Pages []registry.Page
}

// Authenticated reports whether a challenge has been completed for this
// session.
func (s *Session) Authenticated() bool { return s.AuthSession != 0 }

// PackTotal returns the number of response pages held.
func (s *Session) PackTotal() uint8 { return uint8(len(s.Pages)) }

// Peer is the reputation record for one remote address.
type Peer struct {
	Addr netip.AddrPort

	Created         time.Time
	LastSeen        time.Time
	LastTicketReset time.Time
	BannedUntil     time.Time // zero when not banned

	Tickets   int
	TotalBans int

	Sessions []*Session
}

// Banned reports whether the peer is currently serving a ban.
func (p *Peer) Banned() bool { return !p.BannedUntil.IsZero() }

// Config are the flood-control tunables.
type Config struct {
	ResetPeriod time.Duration // ticket counter reset interval
	ForgetAfter time.Duration // drop idle peer records after this
	BanDuration time.Duration
	MaxTickets  int
	SessionIdle time.Duration // session expiry
	MaxSessions int           // per peer, clamped to MaxSessionsPerPeer
}

// Table holds every known peer.
type Table struct {
	cfg    Config
	peers  map[netip.AddrPort]*Peer
	keys   []netip.AddrPort
	cursor int

	banned   func(*Peer)
	unbanned func(*Peer)

	__clock func() time.Time
}

func NewTable(cfg Config) *Table {
	if cfg.MaxSessions <= 0 || cfg.MaxSessions > MaxSessionsPerPeer {
		cfg.MaxSessions = MaxSessionsPerPeer
	}
	return &Table{
		cfg:     cfg,
		peers:   map[netip.AddrPort]*Peer{},
		__clock: time.Now,
	}
}

// OnBan and OnUnban register observers for ban transitions; the server uses
// them for logging and metrics.
func (t *Table) OnBan(fn func(*Peer))   { t.banned = fn }
func (t *Table) OnUnban(fn func(*Peer)) { t.unbanned = fn }

func (t *Table) now() time.Time { return t.__clock() }

// Count returns the number of tracked peers.
func (t *Table) Count() int { return len(t.peers) }

// SessionCount returns the number of live sessions across all peers.
func (t *Table) SessionCount() int {
	n := 0
	for _, p := range t.peers {
		n += len(p.Sessions)
	}
	return n
}

// Lookup returns the record for addr without creating one.
func (t *Table) Lookup(addr netip.AddrPort) *Peer { return t.peers[addr] }

func (t *Table) get(addr netip.AddrPort) *Peer {
	p := t.peers[addr]
	if p == nil {
		now := t.now()
		p = &Peer{Addr: addr, Created: now, LastSeen: now, LastTicketReset: now}
		t.peers[addr] = p
		t.keys = append(t.keys, addr)
	}
	return p
}

// CheckPeer fetches (creating if needed) the record for addr and decides
// whether the peer may be served. charge adds the standard one-ticket cost
// of having sent a packet; sweeps pass false.
func (t *Table) CheckPeer(addr netip.AddrPort, charge bool) (*Peer, bool) {
	p := t.get(addr)
	return p, t.check(p, charge)
}

func (t *Table) check(p *Peer, charge bool) bool {
	if charge {
		t.Rep(p, 1)
	}
	now := t.now()

	if !p.LastTicketReset.Add(t.cfg.ResetPeriod).After(now) {
		p.LastTicketReset = now
		p.Tickets = 0
	}

	// lift an expired ban; refreshing LastSeen here keeps the record from
	// being forgotten right after the unban
	if p.Banned() && !p.BannedUntil.After(now) {
		p.BannedUntil = time.Time{}
		p.LastSeen = now
		if t.unbanned != nil {
			t.unbanned(p)
		}
	}

	return !p.Banned()
}

// Rep charges tickets against the peer. Crossing the threshold bans it for
// BanDuration, resets the counter, and destroys all its sessions. Further
// charges during a ban do not extend it.
func (t *Table) Rep(p *Peer, tickets int) {
	now := t.now()
	p.Tickets += tickets
	p.LastSeen = now

	if p.Tickets < t.cfg.MaxTickets {
		return
	}
	if !p.Banned() {
		p.BannedUntil = now.Add(t.cfg.BanDuration)
		p.TotalBans++
		if t.banned != nil {
			t.banned(p)
		}
	}
	p.Tickets = 0
	t.ExpireSessions(p, true)
}

// ExpireSessions drops the peer's sessions that have been idle past the
// configured limit; forceAll drops all of them.
func (t *Table) ExpireSessions(p *Peer, forceAll bool) {
	cutoff := t.now().Add(-t.cfg.SessionIdle)
	kept := p.Sessions[:0]
	for _, s := range p.Sessions {
		if !forceAll && s.LastUsed.After(cutoff) {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(p.Sessions); i++ {
		p.Sessions[i] = nil
	}
	p.Sessions = kept
}

// Sweep examines up to budget peer records, continuing from the previous
// sweep's position. Idle records are forgotten, except while banned so a ban
// cannot be waited out by silence; survivors get their ticket reset and
// session expiry checks run.
func (t *Table) Sweep(budget int) int {
	if len(t.keys) == 0 {
		return 0
	}
	cutoff := t.now().Add(-t.cfg.ForgetAfter)
	dropped := 0
	for i := 0; i < budget && len(t.keys) > 0; i++ {
		if t.cursor >= len(t.keys) {
			t.cursor = 0
		}
		addr := t.keys[t.cursor]
		p := t.peers[addr]
		if !p.Banned() && p.LastSeen.Before(cutoff) {
			t.remove(addr)
			dropped++
			continue
		}
		t.check(p, false)
		t.ExpireSessions(p, false)
		t.cursor++
	}
	return dropped
}

func (t *Table) remove(addr netip.AddrPort) {
	delete(t.peers, addr)
	for i, k := range t.keys {
		if k == addr {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			if t.cursor > i {
				t.cursor--
			}
			return
		}
	}
}

// CreateSession opens a plain session for the header's 16-bit session value.
// Returns nil when the peer is at its session cap. The stored flags never
// include the authenticated bit; that is earned via a challenge.
func (t *Table) CreateSession(p *Peer, hdr wire.Header) *Session {
	if len(p.Sessions) >= t.cfg.MaxSessions {
		return nil
	}
	s := &Session{
		ID:       uint16(hdr.Session),
		Flags:    hdr.Flags &^ wire.FlagAuthenticatedSession,
		LastUsed: t.now(),
	}
	p.Sessions = append(p.Sessions, s)
	return s
}

// GetSession finds the peer's session matching the header's 16-bit session
// value, refreshing its idle timer.
func (t *Table) GetSession(p *Peer, hdr wire.Header) *Session {
	for _, s := range p.Sessions {
		if s.ID == uint16(hdr.Session) {
			s.LastUsed = t.now()
			return s
		}
	}
	return nil
}

// GetAuthenticatedSession finds the session whose issued 32-bit auth value
// matches the header's session field. When none matches and mayCreate is
// set, a fresh unauthenticated session is opened instead so the caller can
// issue a challenge for it.
func (t *Table) GetAuthenticatedSession(p *Peer, hdr wire.Header, mayCreate bool) *Session {
	for _, s := range p.Sessions {
		if s.AuthSession != 0 && s.AuthSession == hdr.Session {
			s.LastUsed = t.now()
			return s
		}
	}
	if mayCreate {
		return t.CreateSession(p, hdr)
	}
	return nil
}

// Authenticate issues a nonzero auth session value unique among the peer's
// sessions and marks the session as challenge-issued. The value doubles as
// the proof the client must echo, so it comes from the CSPRNG rather than a
// guessable sequence.
func (t *Table) Authenticate(p *Peer, s *Session) uint32 {
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err) // kernel CSPRNG failure is unrecoverable
		}
		v := binary.LittleEndian.Uint32(buf[:])
		if v == 0 {
			continue
		}
		inUse := false
		for _, other := range p.Sessions {
			if other.AuthSession == v {
				inUse = true
				break
			}
		}
		if !inUse {
			s.AuthSession = v
			s.Flags |= wire.FlagAuthenticatedSession | wire.FlagNewStyleResponse
			return v
		}
	}
}
