package registry

import (
	"math/rand"
	"net/netip"
	"time"
)

// Region family bits. The low 30 bits are free-form operator regions; the
// top two are reserved and always forced by the store to reflect the
// address family the server actually registered from.
const (
	RegionIsIPv4 uint32 = 1 << 30
	RegionIsIPv6 uint32 = 1 << 31
	RegionAddrMask      = RegionIsIPv4 | RegionIsIPv6
)

// ServerInfo is one registered game server.
type ServerInfo struct {
	Addr        netip.AddrPort
	GameType    *PoolString
	MissionType *PoolString
	Regions     uint32
	Version     uint32
	CPUSpeed    uint16
	PlayerCount uint8
	MaxPlayers  uint8
	InfoFlags   uint8
	NumBots     uint8
	PlayerGUIDs []uint32

	LastInfo   time.Time
	TestServer bool
}

// Store is the authoritative server list.
type Store struct {
	servers map[netip.AddrPort]*ServerInfo
	keys    []netip.AddrPort
	cursor  int

	gameTypes    StringPool
	missionTypes StringPool

	// Timeout is how stale a server's last info response may be before a
	// sweep drops it.
	Timeout time.Duration

	// TestingMode keeps synthetic servers (TestServer set) alive forever.
	TestingMode bool

	__clock func() time.Time
}

func NewStore(timeout time.Duration) *Store {
	return &Store{
		servers: map[netip.AddrPort]*ServerInfo{},
		Timeout: timeout,
		__clock: time.Now,
	}
}

func (s *Store) now() time.Time { return s.__clock() }

// Count returns the number of registered servers.
func (s *Store) Count() int { return len(s.servers) }

// GameTypes exposes the interned game type pool for the types response.
func (s *Store) GameTypes() *StringPool { return &s.gameTypes }

// MissionTypes exposes the interned mission type pool.
func (s *Store) MissionTypes() *StringPool { return &s.missionTypes }

// Get returns the record for addr, or nil.
func (s *Store) Get(addr netip.AddrPort) *ServerInfo {
	return s.servers[addr]
}

// Heartbeat produces a correlation pair for the info request that answers a
// server's heartbeat. Nothing is stored; a server's identity is its address
// and registration happens on the info response.
func (s *Store) Heartbeat(netip.AddrPort) (session, key uint16) {
	return uint16(rand.Uint32()), uint16(rand.Uint32())
}

// Update inserts or refreshes the record for info.Addr. The game and
// mission type strings are interned; on refresh the previous interned
// references are released first so pool counts stay exact. The address
// family bits of Regions are forced from the address regardless of what the
// server claimed.
func (s *Store) Update(info ServerInfo, gameType, missionType string) *ServerInfo {
	rec := s.servers[info.Addr]
	if rec == nil {
		rec = &ServerInfo{Addr: info.Addr}
		s.servers[info.Addr] = rec
		s.keys = append(s.keys, info.Addr)
	} else {
		s.gameTypes.Release(rec.GameType)
		s.missionTypes.Release(rec.MissionType)
	}

	rec.GameType = s.gameTypes.Intern(gameType)
	rec.MissionType = s.missionTypes.Intern(missionType)

	rec.Regions = info.Regions &^ RegionAddrMask
	if info.Addr.Addr().Is4() || info.Addr.Addr().Is4In6() {
		rec.Regions |= RegionIsIPv4
	} else {
		rec.Regions |= RegionIsIPv6
	}

	rec.Version = info.Version
	rec.CPUSpeed = info.CPUSpeed
	rec.PlayerCount = info.PlayerCount
	rec.MaxPlayers = info.MaxPlayers
	rec.InfoFlags = info.InfoFlags
	rec.NumBots = info.NumBots
	rec.PlayerGUIDs = info.PlayerGUIDs
	rec.TestServer = info.TestServer
	rec.LastInfo = s.now()
	return rec
}

// Remove drops the record for addr, releasing its interned strings.
func (s *Store) Remove(addr netip.AddrPort) bool {
	rec := s.servers[addr]
	if rec == nil {
		return false
	}
	s.gameTypes.Release(rec.GameType)
	s.missionTypes.Release(rec.MissionType)
	delete(s.servers, addr)
	for i, k := range s.keys {
		if k == addr {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			if s.cursor > i {
				s.cursor--
			}
			break
		}
	}
	return true
}

// Sweep examines up to budget servers, continuing from where the previous
// sweep stopped, and drops any whose last info response is older than
// Timeout. Synthetic test servers are exempt while TestingMode is on.
// Returns the number of servers dropped.
func (s *Store) Sweep(budget int) int {
	if len(s.keys) == 0 {
		return 0
	}
	cutoff := s.now().Add(-s.Timeout)
	dropped := 0
	for i := 0; i < budget && len(s.keys) > 0; i++ {
		if s.cursor >= len(s.keys) {
			s.cursor = 0
		}
		addr := s.keys[s.cursor]
		rec := s.servers[addr]
		if rec.TestServer && s.TestingMode {
			s.cursor++
			continue
		}
		if rec.LastInfo.Before(cutoff) {
			s.Remove(addr) // keeps cursor stable via the shift in Remove
			dropped++
			continue
		}
		s.cursor++
	}
	return dropped
}

// Each calls fn for every server in insertion order.
func (s *Store) Each(fn func(*ServerInfo)) {
	for _, k := range s.keys {
		fn(s.servers[k])
	}
}
