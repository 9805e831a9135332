package masterd

import (
	"net/netip"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/registry"
)

// Synthetic-server counts for testing mode; enough to exercise pagination
// in both list formats without exhausting the page cap.
const (
	testIPv4Count = 255 * 128
	testIPv6Count = 255 * 128
	testBasePort  = 28022
)

// seedTestServers fills the registry with synthetic servers so list queries
// and pagination can be exercised against a freshly started daemon. The
// servers are marked so the expiry sweep leaves them alone.
func (s *Server) seedTestServers() {
	s.Log.Info().
		Int("ipv4", testIPv4Count).
		Int("ipv6", testIPv6Count).
		Msg("testing mode: seeding synthetic servers")

	addServer := func(addr netip.AddrPort) {
		s.store.Update(registry.ServerInfo{
			Addr:       addr,
			MaxPlayers: 16,
			TestServer: true,
		}, "TEST", "NORMAL")
	}

	// walk ports first, then the low address octets, starting at
	// 192.168.80.0 and 2001:db8::1
	ip4 := [4]byte{192, 168, 80, 0}
	port := uint16(testBasePort)
	for i := 0; i < testIPv4Count; i++ {
		addServer(netip.AddrPortFrom(netip.AddrFrom4(ip4), port))
		port++
		if port > testBasePort+255 {
			port = testBasePort
			ip4[3]++
			if ip4[3] == 255 {
				ip4[3] = 0
				ip4[2]++
			}
		}
	}

	ip6 := [16]byte{0x20, 0x01, 0x0D, 0xB8}
	ip6[15] = 1
	port = testBasePort
	for i := 0; i < testIPv6Count; i++ {
		addServer(netip.AddrPortFrom(netip.AddrFrom16(ip6), port))
		port++
		if port > testBasePort+255 {
			port = testBasePort
			ip6[15]++
			if ip6[15] == 0 {
				ip6[14]++
			}
		}
	}
}
