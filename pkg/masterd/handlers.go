package masterd

import (
	"net/netip"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/peerctl"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/registry"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/wire"
)

// message carries everything a handler needs about one inbound packet.
type message struct {
	addr netip.AddrPort
	sock int
	hdr  wire.Header
	pkt  *wire.Packet
	peer *peerctl.Peer
	sess *peerctl.Session
}

// authenticate resolves the session for a message according to the
// challenge-mode policy. The bool result is whether the handler should
// continue; a false return with no error means a challenge was sent (or the
// lookup intentionally found nothing) and the packet is considered handled.
func (s *Server) authenticate(msg *message, lookupOnly bool) bool {
	if s.cfg.ChallengeMode != 0 {
		sess := s.peers.GetAuthenticatedSession(msg.peer, msg.hdr, !lookupOnly)
		if sess == nil {
			// session cap reached, or a resend for a session we no longer
			// hold; either way there is nothing to do
			s.m().list_sessions_rejected_total.Inc()
			return false
		}
		msg.sess = sess
		if !sess.Authenticated() {
			s.sendChallenge(msg)
			return false
		}
		return true
	}
	if lookupOnly {
		msg.sess = s.peers.GetSession(msg.peer, msg.hdr)
		return msg.sess != nil
	}
	msg.sess = s.peers.CreateSession(msg.peer, msg.hdr)
	if msg.sess == nil {
		s.m().list_sessions_rejected_total.Inc()
		return false
	}
	return true
}

// sendChallenge issues an auth session for msg.sess and sends the challenge
// packet. The header carries the issued 32-bit value; the body echoes the
// inbound session so old clients can correlate.
func (s *Server) sendChallenge(msg *message) {
	auth := s.peers.Authenticate(msg.peer, msg.sess)
	s.m().challenges_issued_total.Inc()
	s.Log.Debug().
		Stringer("peer", msg.addr).
		Uint32("auth_session", auth).
		Msg("sending authentication challenge")

	reply := wire.NewWriter(wire.HeaderSize + 4)
	reply.WriteHeader(wire.Header{
		Type:    wire.MasterServerChallenge,
		Flags:   msg.sess.Flags,
		Session: auth,
	})
	if msg.hdr.Flags&wire.FlagAuthenticatedSession != 0 {
		// client sent a stale 32-bit session; echo the whole value back
		reply.WriteU32(msg.hdr.Session)
	} else {
		reply.WriteU16(msg.sess.ID)
		reply.WriteU16(msg.hdr.Key)
	}
	s.reply(msg, reply)
}

// handleChallengeAck restarts the handshake when a client pokes the
// challenge type directly. Outside challenge mode it is a no-op.
func (s *Server) handleChallengeAck(msg *message) bool {
	if s.cfg.ChallengeMode != 0 {
		s.authenticate(msg, false)
	}
	return true
}

// handleHeartbeat answers a server's liveness announcement by asking it for
// its current info with a fresh correlation pair.
func (s *Server) handleHeartbeat(msg *message) bool {
	session, key := s.store.Heartbeat(msg.addr)
	s.m().heartbeats_total.Inc()
	s.Log.Debug().Stringer("server", msg.addr).Msg("heartbeat, requesting info")

	reply := wire.NewWriter(wire.HeaderSize)
	reply.WriteHeader(wire.Header{
		Type:    wire.GameMasterInfoRequest,
		Session: uint32(session),
		Key:     key,
	})
	s.reply(msg, reply)
	return true
}

// handleInfoResponse stores or refreshes the sending server's registry
// record.
func (s *Server) handleInfoResponse(msg *message) bool {
	gameType := msg.pkt.ReadString()
	missionType := msg.pkt.ReadString()

	var info registry.ServerInfo
	info.Addr = msg.addr
	info.MaxPlayers = msg.pkt.ReadU8()
	info.Regions = msg.pkt.ReadU32()
	info.Version = msg.pkt.ReadU32()
	info.InfoFlags = msg.pkt.ReadU8()
	info.NumBots = msg.pkt.ReadU8()
	info.CPUSpeed = uint16(msg.pkt.ReadU32())
	info.PlayerCount = msg.pkt.ReadU8()

	if !wire.Printable(gameType) || !wire.Printable(missionType) {
		s.Log.Debug().Stringer("server", msg.addr).Msg("non-printable type strings in info response")
		return false
	}
	if !msg.pkt.OK() {
		return false
	}

	// Torque never sends player GUIDs while Tribes 2 did; only read them
	// when the tail is large enough to hold the whole list
	if n := int(info.PlayerCount); n > 0 && msg.pkt.Remaining()/4 >= n {
		info.PlayerGUIDs = make([]uint32, n)
		for i := range info.PlayerGUIDs {
			info.PlayerGUIDs[i] = msg.pkt.ReadU32()
		}
	}

	s.store.Update(info, gameType, missionType)
	s.m().info_responses_total.Inc()
	s.Log.Debug().
		Stringer("server", msg.addr).
		Str("game_type", gameType).
		Str("mission_type", missionType).
		Uint8("players", info.PlayerCount).
		Msg("server info stored")
	return true
}

// handleListRequest services both fresh queries and page resends; the
// extended variant forces the new-style response format.
func (s *Server) handleListRequest(msg *message, extended bool) bool {
	index := msg.pkt.ReadU8()
	if !msg.pkt.OK() {
		return false
	}
	if extended {
		msg.hdr.Flags |= wire.FlagNewStyleResponse
	}

	if index != wire.QueryPacketIndex {
		// resend of a previously built page; an absent session is not the
		// client's fault (it may simply have expired), so never penalize
		s.m().list_requests_total.resend.Inc()
		if s.authenticate(msg, true) && msg.sess != nil {
			s.sendListPage(msg, index)
		}
		return true
	}
	s.m().list_requests_total.fresh.Inc()

	var filter registry.Filter
	filter.GameType = msg.pkt.ReadString()
	filter.MissionType = msg.pkt.ReadString()
	if !wire.Printable(filter.GameType) || !wire.Printable(filter.MissionType) {
		s.Log.Debug().Stringer("peer", msg.addr).Msg("non-printable type strings in list request")
		return false
	}
	filter.MinPlayers = msg.pkt.ReadU8()
	filter.MaxPlayers = msg.pkt.ReadU8()
	filter.Regions = msg.pkt.ReadU32()
	filter.Version = msg.pkt.ReadU32()
	filter.Flags = msg.pkt.ReadU8()
	filter.MaxBots = msg.pkt.ReadU8()
	filter.MinCPUSpeed = msg.pkt.ReadU16()
	if n := int(msg.pkt.ReadU8()); n > 0 && msg.pkt.OK() {
		filter.Buddies = make([]uint32, n)
		for i := range filter.Buddies {
			filter.Buddies[i] = msg.pkt.ReadU32()
		}
	}
	if !msg.pkt.OK() {
		return false
	}
	if filter.MaxPlayers < filter.MinPlayers {
		filter.MaxPlayers = filter.MinPlayers
	}

	if !s.authenticate(msg, false) {
		return true
	}

	// force the address-family bits to match what the response format can
	// actually carry
	newStyle := msg.sess.Flags&wire.FlagNewStyleResponse != 0
	if newStyle {
		if filter.Regions&registry.RegionAddrMask == 0 {
			filter.Regions |= registry.RegionAddrMask
		}
	} else {
		if filter.Regions&registry.RegionAddrMask == 0 {
			filter.Regions |= registry.RegionIsIPv4
		}
		filter.Regions &^= registry.RegionIsIPv6
	}

	pages, total := s.store.Query(&filter, newStyle)
	pages = s.capResponse(pages, newStyle)
	msg.sess.Pages = pages
	msg.sess.Total = uint16(total)

	packed := 0
	for i := range pages {
		packed += int(pages[i].Count)
	}
	if packed < total {
		s.Log.Warn().
			Stringer("peer", msg.addr).
			Int("total", total).
			Int("packed", packed).
			Msg("list response clipped")
	}

	s.Log.Debug().
		Stringer("peer", msg.addr).
		Str("game_type", filter.GameType).
		Int("total", total).
		Int("pages", len(pages)).
		Msg("list query")

	for i := 0; i < len(pages); i++ {
		s.sendListPage(msg, uint8(i))
	}
	return true
}

// capResponse applies the configured response caps on top of the protocol
// page limit.
func (s *Server) capResponse(pages []registry.Page, newStyle bool) []registry.Page {
	if max := int(s.cfg.MaxPacketsInResponse); max > 0 && len(pages) > max {
		pages = pages[:max]
	}
	if max := int(s.cfg.MaxServersInResponse); max > 0 {
		n := 0
		for i := range pages {
			if n+int(pages[i].Count) < max {
				n += int(pages[i].Count)
				continue
			}
			keep := max - n
			pages[i].Count = uint16(keep)
			pages[i].Data = pages[i].Data[:recordsEnd(pages[i].Data, keep, newStyle)]
			pages = pages[:i+1]
			break
		}
	}
	return pages
}

// recordsEnd returns the byte offset just past the first n records of a
// packed page. New-style records vary in size with the address family, so
// the page has to be walked.
func recordsEnd(data []byte, n int, newStyle bool) int {
	off := 0
	for ; n > 0; n-- {
		if !newStyle {
			off += wire.OldStyleServerSize
		} else if data[off] == wire.AddrTypeIPv6 {
			off += wire.NewStyleIPv6ServerSize
		} else {
			off += wire.NewStyleIPv4ServerSize
		}
	}
	return off
}

// sendListPage replays one stored response page. Out-of-range indexes are
// ignored.
func (s *Server) sendListPage(msg *message, index uint8) {
	if int(index) >= len(msg.sess.Pages) {
		return
	}
	page := msg.sess.Pages[index]

	typ := wire.MasterServerListResponse
	if msg.sess.Flags&wire.FlagNewStyleResponse != 0 {
		typ = wire.MasterServerExtendedListResponse
	}
	reply := wire.NewWriter(wire.MaxPacketSize)
	reply.WriteHeader(wire.Header{
		Type:    typ,
		Flags:   msg.sess.Flags,
		Session: msg.hdr.Session,
		Key:     msg.hdr.Key,
	})
	reply.WriteU8(index)
	reply.WriteU8(msg.sess.PackTotal())
	reply.WriteU16(page.Count)
	reply.WriteBytes(page.Data)
	s.reply(msg, reply)
}

// handleTypesRequest sends the distinct game and mission types currently
// registered. When the full lists would overflow a packet, each list gets
// half the payload budget and the rest is clipped.
func (s *Server) handleTypesRequest(msg *message) bool {
	games := s.store.GameTypes()
	missions := s.store.MissionTypes()

	const budget = wire.MaxPacketSize - wire.HeaderSize - 2
	gameCount := games.Count()
	missionCount := missions.Count()
	if games.TotalSize()+missions.TotalSize() > budget || gameCount > 0xFF || missionCount > 0xFF {
		gameCount = clipTypes(games, budget/2)
		missionCount = clipTypes(missions, budget/2)
	}

	reply := wire.NewWriter(wire.MaxPacketSize)
	reply.WriteHeader(wire.Header{
		Type:    wire.MasterServerGameTypesResponse,
		Session: msg.hdr.Session,
		Key:     msg.hdr.Key,
	})
	writeTypes(reply, games, gameCount)
	writeTypes(reply, missions, missionCount)
	s.reply(msg, reply)
	return true
}

// clipTypes counts how many whole strings fit in limit bytes; the result
// never exceeds what the u8 count field can carry.
func clipTypes(pool *registry.StringPool, limit int) int {
	n, count := 0, 0
	full := false
	pool.Each(func(t string) {
		if full || count == 0xFF || n+len(t)+1 > limit {
			full = true
			return
		}
		n += len(t) + 1
		count++
	})
	return count
}

func writeTypes(p *wire.Packet, pool *registry.StringPool, count int) {
	p.WriteU8(uint8(count))
	i := 0
	pool.Each(func(t string) {
		if i < count {
			p.WriteString(t)
		}
		i++
	})
}

// handleInfoRequest reports the master's own name, region, and server
// count.
func (s *Server) handleInfoRequest(msg *message) bool {
	reply := wire.NewWriter(wire.MaxPacketSize)
	reply.WriteHeader(wire.Header{
		Type:    wire.MasterServerInfoResponse,
		Session: msg.hdr.Session,
		Key:     msg.hdr.Key,
	})
	reply.WriteString(s.cfg.Name)
	reply.WriteString(s.cfg.Region)
	reply.WriteU16(uint16(s.store.Count()))
	s.reply(msg, reply)
	return true
}
