package registry

import (
	"net/netip"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/wire"
)

// Page is one pre-packed list-response page: the packed address records plus
// how many servers they encode. Pages are built once per query and replayed
// verbatim on resend requests.
type Page struct {
	Count uint16
	Data  []byte
}

// appendServer packs addr into buf in the requested format. Old-style
// records are 6 bytes (v4 only); new-style records carry a family tag and
// support v6.
func appendServer(buf []byte, addr netip.AddrPort, newStyle bool) []byte {
	if a := addr.Addr(); a.Is4() || a.Is4In6() {
		b := a.As4()
		if newStyle {
			buf = append(buf, wire.AddrTypeIPv4)
		}
		buf = append(buf, b[:]...)
	} else {
		b := a.As16()
		buf = append(buf, wire.AddrTypeIPv6)
		buf = append(buf, b[:]...)
	}
	port := addr.Port()
	return append(buf, byte(port), byte(port>>8))
}

func serverSize(addr netip.AddrPort, newStyle bool) int {
	if a := addr.Addr(); a.Is4() || a.Is4In6() {
		if newStyle {
			return wire.NewStyleIPv4ServerSize
		}
		return wire.OldStyleServerSize
	}
	return wire.NewStyleIPv6ServerSize
}

// Query runs filter over the store and packs the matches into response
// pages. Old-style (newStyle false) queries only ever see IPv4 servers.
// Returns the pages and the total number of matching servers; the total can
// exceed what the pages hold when the result is clipped at the page cap.
// A query with no matches still yields one empty page so the client gets a
// definitive answer.
func (s *Store) Query(filter *Filter, newStyle bool) ([]Page, int) {
	var gameRef, missionRef *PoolString
	noMatch := false
	if !isAny(filter.GameType) {
		if gameRef = s.gameTypes.Lookup(filter.GameType); gameRef == nil {
			noMatch = true
		}
	}
	if !noMatch && !isAny(filter.MissionType) {
		if missionRef = s.missionTypes.Lookup(filter.MissionType); missionRef == nil {
			noMatch = true
		}
	}

	var matches []netip.AddrPort
	if !noMatch {
		for _, k := range s.keys {
			info := s.servers[k]
			if !newStyle {
				if a := info.Addr.Addr(); !a.Is4() && !a.Is4In6() {
					continue
				}
			}
			if filter.match(info, gameRef, missionRef) {
				matches = append(matches, info.Addr)
			}
		}
	}

	var pages []Page
	cur := Page{Data: make([]byte, 0, wire.MaxListPayload)}
	clipped := false
	for _, addr := range matches {
		if len(cur.Data)+serverSize(addr, newStyle) > wire.MaxListPayload {
			if len(pages)+1 >= wire.MaxListPackets {
				clipped = true
				break
			}
			pages = append(pages, cur)
			cur = Page{Data: make([]byte, 0, wire.MaxListPayload)}
		}
		cur.Data = appendServer(cur.Data, addr, newStyle)
		cur.Count++
	}
	if !clipped || cur.Count > 0 {
		pages = append(pages, cur)
	}
	return pages, len(matches)
}
