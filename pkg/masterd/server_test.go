package masterd

import (
	"bytes"
	"fmt"
	"net/netip"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/registry"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/transport"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/wire"
)

type capture struct {
	payload []byte
	addr    netip.AddrPort
	sock    int
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *[]capture) {
	t.Helper()
	cfg := Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.Clamp()
	s := NewServer(cfg, zerolog.Nop())
	sent := &[]capture{}
	s.send = func(sock int, payload []byte, to netip.AddrPort) error {
		p := make([]byte, len(payload))
		copy(p, payload)
		*sent = append(*sent, capture{payload: p, addr: to, sock: sock})
		return nil
	}
	return s, sent
}

func inject(s *Server, from netip.AddrPort, payload []byte) {
	s.ProcMessage(transport.Datagram{Payload: payload, Addr: from, Sock: 0})
}

var clientAddr = netip.AddrPortFrom(netip.MustParseAddr("203.0.113.9"), 31000)
var serverAddr = netip.AddrPortFrom(netip.MustParseAddr("198.51.100.4"), 28001)

func buildListRequest(hdr wire.Header, index uint8, gameType, missionType string) []byte {
	p := wire.NewWriter(wire.MaxPacketSize)
	p.WriteHeader(hdr)
	p.WriteU8(index)
	if index != wire.QueryPacketIndex {
		return p.Bytes()
	}
	p.WriteString(gameType)
	p.WriteString(missionType)
	p.WriteU8(0)  // minPlayers
	p.WriteU8(0)  // maxPlayers
	p.WriteU32(0) // regions
	p.WriteU32(0) // version
	p.WriteU8(0)  // filterFlags
	p.WriteU8(0)  // maxBots
	p.WriteU16(0) // minCPU
	p.WriteU8(0)  // buddyCount
	return p.Bytes()
}

func buildInfoResponse(hdr wire.Header, gameType, missionType string, maxPlayers, playerCount uint8, version uint32) []byte {
	p := wire.NewWriter(wire.MaxPacketSize)
	p.WriteHeader(hdr)
	p.WriteString(gameType)
	p.WriteString(missionType)
	p.WriteU8(maxPlayers)
	p.WriteU32(0) // regions
	p.WriteU32(version)
	p.WriteU8(0) // infoFlags
	p.WriteU8(0) // numBots
	p.WriteU32(2400)
	p.WriteU8(playerCount)
	return p.Bytes()
}

func TestHappyPath(t *testing.T) {
	s, sent := newTestServer(t, nil)

	// heartbeat gets answered with an info request carrying a fresh pair
	hb := wire.NewWriter(wire.HeaderSize)
	hb.WriteHeader(wire.Header{Type: wire.GameHeartbeat})
	inject(s, serverAddr, hb.Bytes())

	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	hdr := r.ReadHeader()
	if hdr.Type != wire.GameMasterInfoRequest {
		t.Fatalf("reply type = %d", hdr.Type)
	}
	if (*sent)[0].addr != serverAddr {
		t.Error("info request must go to the heartbeating server")
	}

	// server replies with its info, echoing the pair
	inject(s, serverAddr, buildInfoResponse(wire.Header{
		Type:    wire.GameMasterInfoResponse,
		Session: hdr.Session,
		Key:     hdr.Key,
	}, "CTF", "Flag", 16, 4, 1000))

	if s.Store().Count() != 1 {
		t.Fatalf("store count = %d", s.Store().Count())
	}
	rec := s.Store().Get(serverAddr)
	if rec == nil || rec.GameType.String() != "CTF" || rec.PlayerCount != 4 {
		t.Fatalf("record = %+v", rec)
	}

	// a wildcard query returns it
	*sent = nil
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 0x42,
	}, wire.QueryPacketIndex, "any", "any"))

	if len(*sent) != 1 {
		t.Fatalf("sent %d list pages", len(*sent))
	}
	r = wire.NewReader((*sent)[0].payload)
	hdr = r.ReadHeader()
	if hdr.Type != wire.MasterServerListResponse {
		t.Fatalf("reply type = %d", hdr.Type)
	}
	if idx, total, count := r.ReadU8(), r.ReadU8(), r.ReadU16(); idx != 0 || total != 1 || count != 1 {
		t.Errorf("idx=%d total=%d count=%d", idx, total, count)
	}
}

func TestFilterMatch(t *testing.T) {
	s, sent := newTestServer(t, nil)
	s.Store().Update(registry.ServerInfo{Addr: serverAddr, Version: 1000}, "CTF", "Flag")
	b := netip.AddrPortFrom(netip.MustParseAddr("198.51.100.5"), 28001)
	s.Store().Update(registry.ServerInfo{Addr: b, Version: 900}, "DM", "Dm")

	p := wire.NewWriter(wire.MaxPacketSize)
	p.WriteHeader(wire.Header{Type: wire.MasterServerListRequest, Session: 1})
	p.WriteU8(wire.QueryPacketIndex)
	p.WriteString("ctf") // case-insensitive
	p.WriteString("")
	p.WriteU8(0)
	p.WriteU8(0)
	p.WriteU32(0)
	p.WriteU32(950)
	p.WriteU8(0)
	p.WriteU8(0)
	p.WriteU16(0)
	p.WriteU8(0)
	inject(s, clientAddr, p.Bytes())

	if len(*sent) != 1 {
		t.Fatalf("sent %d pages", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	r.ReadHeader()
	r.ReadU8()
	r.ReadU8()
	if count := r.ReadU16(); count != 1 {
		t.Errorf("count = %d, want only the CTF server", count)
	}
	// record is ip then little-endian port
	want := []byte{198, 51, 100, 4, 0x61, 0x6D} // 28001 = 0x6D61
	if got := r.ReadBytes(6); !bytes.Equal(got, want) {
		t.Errorf("record = % x, want % x", got, want)
	}
}

func TestPaginationAndResend(t *testing.T) {
	s, sent := newTestServer(t, nil)
	for i := 0; i < 500; i++ {
		addr := netip.AddrPortFrom(
			netip.AddrFrom4([4]byte{10, byte(i / 250), byte(i % 250), 1}),
			uint16(28000+i))
		s.Store().Update(registry.ServerInfo{Addr: addr}, "CTF", "Flag")
	}

	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 0x77,
	}, wire.QueryPacketIndex, "", ""))

	if len(*sent) != 3 {
		t.Fatalf("sent %d pages, want 3", len(*sent))
	}
	var totalServers int
	for i, c := range *sent {
		r := wire.NewReader(c.payload)
		r.ReadHeader()
		if idx := r.ReadU8(); int(idx) != i {
			t.Errorf("page %d has index %d", i, idx)
		}
		if total := r.ReadU8(); total != 3 {
			t.Errorf("packTotal = %d", total)
		}
		totalServers += int(r.ReadU16())
		if len(c.payload) > wire.MaxPacketSize {
			t.Errorf("page %d is %d bytes", i, len(c.payload))
		}
	}
	if totalServers != 500 {
		t.Errorf("packed %d servers", totalServers)
	}

	secondPage := (*sent)[1].payload

	// resend of page 1 replays it byte for byte
	*sent = nil
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 0x77,
	}, 1, "", ""))
	if len(*sent) != 1 {
		t.Fatalf("resend sent %d packets", len(*sent))
	}
	if !bytes.Equal((*sent)[0].payload, secondPage) {
		t.Error("resent page differs from original")
	}

	// out-of-range index is silently ignored, no penalty
	*sent = nil
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 0x77,
	}, 9, "", ""))
	if len(*sent) != 0 {
		t.Error("out-of-range resend should send nothing")
	}

	// resend for a session we never had is ignored too
	*sent = nil
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 0xAAAA,
	}, 0, "", ""))
	if len(*sent) != 0 {
		t.Error("unknown-session resend should send nothing")
	}
	if p := s.Peers().Lookup(clientAddr); p.Banned() {
		t.Error("silent ignores must not ban the peer")
	}
}

func TestEmptyQueryStillAnswers(t *testing.T) {
	s, sent := newTestServer(t, nil)
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 1,
	}, wire.QueryPacketIndex, "Bounty", ""))

	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	r.ReadHeader()
	if idx, total, count := r.ReadU8(), r.ReadU8(), r.ReadU16(); idx != 0 || total != 1 || count != 0 {
		t.Errorf("idx=%d total=%d count=%d", idx, total, count)
	}
}

func TestExtendedListRequestForcesNewStyle(t *testing.T) {
	s, sent := newTestServer(t, nil)
	v6 := netip.AddrPortFrom(netip.MustParseAddr("2001:db8::5"), 28001)
	s.Store().Update(registry.ServerInfo{Addr: v6}, "CTF", "Flag")

	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerExtendedListRequest,
		Session: 1,
	}, wire.QueryPacketIndex, "", ""))

	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	hdr := r.ReadHeader()
	if hdr.Type != wire.MasterServerExtendedListResponse {
		t.Fatalf("reply type = %d", hdr.Type)
	}
	r.ReadU8()
	r.ReadU8()
	if count := r.ReadU16(); count != 1 {
		t.Fatalf("count = %d (v6 server must be visible new-style)", count)
	}
	if at := r.ReadU8(); at != wire.AddrTypeIPv6 {
		t.Errorf("addr type = %d", at)
	}
}

func TestChallengeFlow(t *testing.T) {
	s, sent := newTestServer(t, func(c *Config) { c.ChallengeMode = 1 })
	s.Store().Update(registry.ServerInfo{Addr: serverAddr}, "CTF", "Flag")

	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 0x1234,
		Key:     7,
	}, wire.QueryPacketIndex, "", ""))

	// no pages yet, only the challenge
	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	hdr := r.ReadHeader()
	if hdr.Type != wire.MasterServerChallenge {
		t.Fatalf("reply type = %d", hdr.Type)
	}
	if hdr.Flags&(wire.FlagAuthenticatedSession|wire.FlagNewStyleResponse) != wire.FlagAuthenticatedSession|wire.FlagNewStyleResponse {
		t.Errorf("challenge flags = %#x", hdr.Flags)
	}
	auth := hdr.Session
	if auth == 0 {
		t.Fatal("auth session must be nonzero")
	}
	if sess, key := r.ReadU16(), r.ReadU16(); sess != 0x1234 || key != 7 {
		t.Errorf("challenge body = %#x %#x", sess, key)
	}

	// echoing the auth session back unlocks the query
	*sent = nil
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Flags:   wire.FlagAuthenticatedSession,
		Session: auth,
	}, wire.QueryPacketIndex, "", ""))

	if len(*sent) != 1 {
		t.Fatalf("sent %d pages after auth", len(*sent))
	}
	r = wire.NewReader((*sent)[0].payload)
	hdr = r.ReadHeader()
	if hdr.Type != wire.MasterServerExtendedListResponse {
		t.Fatalf("post-auth reply type = %d", hdr.Type)
	}
	if hdr.Session != auth {
		t.Error("response must echo the authenticated session")
	}
	r.ReadU8()
	r.ReadU8()
	if count := r.ReadU16(); count != 1 {
		t.Errorf("count = %d", count)
	}

	// a wrong echo gets a fresh challenge, not results
	*sent = nil
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Flags:   wire.FlagAuthenticatedSession,
		Session: auth + 1,
	}, wire.QueryPacketIndex, "", ""))
	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r = wire.NewReader((*sent)[0].payload)
	if hdr := r.ReadHeader(); hdr.Type != wire.MasterServerChallenge {
		t.Errorf("reply type = %d, want another challenge", hdr.Type)
	}
}

func TestFloodBan(t *testing.T) {
	s, sent := newTestServer(t, nil)

	// each malformed packet costs 1 (arrival) + 50 (penalty) tickets; the
	// threshold of 300 is crossed on the 6th
	for i := 0; i < 6; i++ {
		inject(s, clientAddr, []byte{0x01})
	}
	p := s.Peers().Lookup(clientAddr)
	if p == nil || !p.Banned() {
		t.Fatal("peer should be banned after 6 bad packets")
	}
	if p.TotalBans != 1 {
		t.Errorf("totalBans = %d", p.TotalBans)
	}

	// while banned, even valid packets are dropped without replies
	*sent = nil
	hb := wire.NewWriter(wire.HeaderSize)
	hb.WriteHeader(wire.Header{Type: wire.GameHeartbeat})
	inject(s, clientAddr, hb.Bytes())
	if len(*sent) != 0 {
		t.Error("banned peer must get no replies")
	}
}

func TestUnknownTypePenalized(t *testing.T) {
	s, _ := newTestServer(t, nil)
	p := wire.NewWriter(wire.HeaderSize)
	p.WriteHeader(wire.Header{Type: 0xEE})
	inject(s, clientAddr, p.Bytes())

	rec := s.Peers().Lookup(clientAddr)
	if rec == nil {
		t.Fatal("peer record missing")
	}
	if rec.Tickets != 1+int(s.cfg.FloodBadMsgTicket) {
		t.Errorf("tickets = %d", rec.Tickets)
	}
}

func TestNonPrintableStringsRejected(t *testing.T) {
	s, sent := newTestServer(t, nil)
	inject(s, serverAddr, buildInfoResponse(wire.Header{
		Type: wire.GameMasterInfoResponse,
	}, "CTF\x01", "Flag", 16, 0, 1000))

	if s.Store().Count() != 0 {
		t.Error("record must not be stored")
	}
	rec := s.Peers().Lookup(serverAddr)
	if rec.Tickets != 1+int(s.cfg.FloodBadMsgTicket) {
		t.Errorf("tickets = %d", rec.Tickets)
	}
	if len(*sent) != 0 {
		t.Error("no reply expected")
	}
}

func TestTypesResponse(t *testing.T) {
	s, sent := newTestServer(t, nil)
	s.Store().Update(registry.ServerInfo{Addr: serverAddr}, "CTF", "Flag")
	b := netip.AddrPortFrom(netip.MustParseAddr("198.51.100.5"), 28001)
	s.Store().Update(registry.ServerInfo{Addr: b}, "DM", "Flag")

	p := wire.NewWriter(wire.HeaderSize)
	p.WriteHeader(wire.Header{Type: wire.MasterServerGameTypesRequest, Session: 3, Key: 4})
	inject(s, clientAddr, p.Bytes())

	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	hdr := r.ReadHeader()
	if hdr.Type != wire.MasterServerGameTypesResponse {
		t.Fatalf("reply type = %d", hdr.Type)
	}
	if n := r.ReadU8(); n != 2 {
		t.Fatalf("game type count = %d", n)
	}
	if a, b := r.ReadString(), r.ReadString(); a != "CTF" || b != "DM" {
		t.Errorf("game types = %q %q", a, b)
	}
	if n := r.ReadU8(); n != 1 {
		t.Fatalf("mission type count = %d", n)
	}
	if m := r.ReadString(); m != "Flag" {
		t.Errorf("mission type = %q", m)
	}
}

func TestMasterInfoResponse(t *testing.T) {
	s, sent := newTestServer(t, func(c *Config) {
		c.Name = "TestMaster"
		c.Region = "Mars"
	})
	s.Store().Update(registry.ServerInfo{Addr: serverAddr}, "CTF", "Flag")

	p := wire.NewWriter(wire.HeaderSize)
	p.WriteHeader(wire.Header{Type: wire.MasterServerInfoRequest, Session: 1, Key: 2})
	inject(s, clientAddr, p.Bytes())

	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	hdr := r.ReadHeader()
	if hdr.Type != wire.MasterServerInfoResponse {
		t.Fatalf("reply type = %d", hdr.Type)
	}
	if hdr.Session != 1 || hdr.Key != 2 {
		t.Error("session pair must be echoed")
	}
	if name := r.ReadString(); name != "TestMaster" {
		t.Errorf("name = %q", name)
	}
	if region := r.ReadString(); region != "Mars" {
		t.Errorf("region = %q", region)
	}
	if count := r.ReadU16(); count != 1 {
		t.Errorf("count = %d", count)
	}
}

func TestMaxServersInResponseCap(t *testing.T) {
	s, sent := newTestServer(t, func(c *Config) { c.MaxServersInResponse = 10 })
	for i := 0; i < 50; i++ {
		addr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, byte(i + 1)}), 28000)
		s.Store().Update(registry.ServerInfo{Addr: addr}, "CTF", "Flag")
	}
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 1,
	}, wire.QueryPacketIndex, "", ""))

	if len(*sent) != 1 {
		t.Fatalf("sent %d pages", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	r.ReadHeader()
	r.ReadU8()
	r.ReadU8()
	if count := r.ReadU16(); count != 10 {
		t.Errorf("count = %d, want capped 10", count)
	}
}

func TestTestingModeSeedsServers(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.TestingMode = 1 })
	if s.Store().Count() == 0 {
		t.Fatal("testing mode should seed servers")
	}
	if s.Store().GameTypes().Lookup("TEST") == nil {
		t.Error("synthetic game type missing")
	}
	// synthetic servers survive sweeps no matter how stale
	before := s.Store().Count()
	for i := 0; i < before; i++ {
		s.Store().Sweep(100)
	}
	if s.Store().Count() != before {
		t.Error("synthetic servers must not expire in testing mode")
	}
}

func TestSessionCapRefusesQuietly(t *testing.T) {
	s, sent := newTestServer(t, nil)
	for i := 0; i < 12; i++ {
		inject(s, clientAddr, buildListRequest(wire.Header{
			Type:    wire.MasterServerListRequest,
			Session: uint32(i),
		}, wire.QueryPacketIndex, "", ""))
	}
	p := s.Peers().Lookup(clientAddr)
	if len(p.Sessions) != 10 {
		t.Errorf("sessions = %d, want hard cap 10", len(p.Sessions))
	}
	// 10 served queries, then silence; never a crash or a ban
	if len(*sent) != 10 {
		t.Errorf("sent %d pages", len(*sent))
	}
	if p.Banned() {
		t.Error("cap refusal must not ban the peer")
	}
}

func TestHexAddressEncoding(t *testing.T) {
	// guard against accidental byte-order changes in the page records
	s, sent := newTestServer(t, nil)
	addr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{1, 2, 3, 4}), 0x1234)
	s.Store().Update(registry.ServerInfo{Addr: addr}, "CTF", "Flag")
	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerListRequest,
		Session: 1,
	}, wire.QueryPacketIndex, "", ""))
	r := wire.NewReader((*sent)[0].payload)
	r.ReadHeader()
	r.ReadU8()
	r.ReadU8()
	r.ReadU16()
	got := r.ReadBytes(6)
	want := []byte{1, 2, 3, 4, 0x34, 0x12}
	if !bytes.Equal(got, want) {
		t.Errorf("record = %s, want %s", fmt.Sprintf("% x", got), fmt.Sprintf("% x", want))
	}
}

func TestServerCapCutsOnRecordBoundary(t *testing.T) {
	s, sent := newTestServer(t, func(c *Config) { c.MaxServersInResponse = 1 })
	s.Store().Update(registry.ServerInfo{Addr: serverAddr}, "CTF", "Flag")
	v6 := netip.AddrPortFrom(netip.MustParseAddr("2001:db8::9"), 28001)
	s.Store().Update(registry.ServerInfo{Addr: v6}, "CTF", "Flag")

	inject(s, clientAddr, buildListRequest(wire.Header{
		Type:    wire.MasterServerExtendedListRequest,
		Session: 1,
	}, wire.QueryPacketIndex, "", ""))

	if len(*sent) != 1 {
		t.Fatalf("sent %d pages", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	r.ReadHeader()
	r.ReadU8()
	r.ReadU8()
	count := r.ReadU16()
	if count != 1 {
		t.Fatalf("count = %d, want capped 1", count)
	}
	// the single record must be whole, with no partial record trailing it
	for i := 0; i < int(count); i++ {
		switch at := r.ReadU8(); at {
		case wire.AddrTypeIPv4:
			r.ReadBytes(4)
		case wire.AddrTypeIPv6:
			r.ReadBytes(16)
		default:
			t.Fatalf("record %d has addr type %d", i, at)
		}
		r.ReadU16()
	}
	if !r.OK() || r.Remaining() != 0 {
		t.Errorf("page not cut on a record boundary: ok=%v remaining=%d", r.OK(), r.Remaining())
	}
}

func TestTypesResponseCountByte(t *testing.T) {
	s, sent := newTestServer(t, nil)
	// hundreds of tiny type strings fit the halved byte budget, but the
	// count field is a single byte
	const cs = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	typeName := func(i int) string {
		if i < len(cs) {
			return string(cs[i])
		}
		i -= len(cs)
		return string([]byte{cs[i/len(cs)], cs[i%len(cs)]})
	}
	for i := 0; i < 300; i++ {
		addr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 1, byte(i / 250), byte(i % 250)}), 28000)
		s.Store().Update(registry.ServerInfo{Addr: addr}, typeName(i), "Flag")
	}

	p := wire.NewWriter(wire.HeaderSize)
	p.WriteHeader(wire.Header{Type: wire.MasterServerGameTypesRequest, Session: 1})
	inject(s, clientAddr, p.Bytes())

	if len(*sent) != 1 {
		t.Fatalf("sent %d packets", len(*sent))
	}
	r := wire.NewReader((*sent)[0].payload)
	r.ReadHeader()
	gameCount := int(r.ReadU8())
	if gameCount != 0xFF {
		t.Errorf("game type count = %d, want 255", gameCount)
	}
	for i := 0; i < gameCount; i++ {
		r.ReadString()
	}
	missionCount := int(r.ReadU8())
	for i := 0; i < missionCount; i++ {
		r.ReadString()
	}
	// the count bytes must describe exactly what the packet carries
	if !r.OK() || r.Remaining() != 0 {
		t.Errorf("counts inconsistent with payload: ok=%v remaining=%d", r.OK(), r.Remaining())
	}
}
