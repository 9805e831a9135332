// Package wire implements the legacy master-server packet framing used by
// Torque-derived game clients. All multi-byte integers are little-endian to
// match the layout the original clients put on the wire.
package wire

import (
	"encoding/binary"
)

// Packet type codes. The even-numbered block is the classic engine sequence;
// the server-info and challenge types were added later by master forks.
const (
	MasterServerGameTypesRequest     uint8 = 2
	MasterServerGameTypesResponse    uint8 = 4
	MasterServerListRequest          uint8 = 6
	MasterServerListResponse         uint8 = 8
	GameMasterInfoRequest            uint8 = 10
	GameMasterInfoResponse           uint8 = 12
	GameInfoRequest                  uint8 = 14 // reserved, not consumed by the master
	GameInfoResponse                 uint8 = 16 // reserved, not consumed by the master
	GameHeartbeat                    uint8 = 22
	MasterServerInfoRequest          uint8 = 25
	MasterServerInfoResponse         uint8 = 26
	MasterServerExtendedListResponse uint8 = 28
	MasterServerChallenge            uint8 = 30
	MasterServerExtendedListRequest  uint8 = 32
)

// Session flags (header byte 2).
const (
	FlagOfflineQuery         uint8 = 1 << 0
	FlagNoStringCompress     uint8 = 1 << 1
	FlagNewStyleResponse     uint8 = 1 << 2 // IPv6-capable list format
	FlagAuthenticatedSession uint8 = 1 << 3 // header carries a 32-bit session, no key
)

// Address family tags used by the extended (new-style) list format.
const (
	AddrTypeIPv4 uint8 = 0
	AddrTypeIPv6 uint8 = 1
)

// Size constants. The MTU budget assumes DSL w/ PPPoE (1492) minus IP/UDP
// overhead; staying under it avoids fragmentation on the worst links the
// legacy clients were ever deployed on.
const (
	MaxMTU        = 1492
	UDPHeaderSize = 48
	MaxPacketSize = MaxMTU - UDPHeaderSize // 1444

	// HeaderSize is the worst-case header length (the u32-session variant).
	HeaderSize = 8

	// ListPrefixSize covers packetIndex, packetTotal and serverCount.
	ListPrefixSize = 4

	// MaxListPayload is the per-page budget for packed server addresses.
	MaxListPayload = MaxPacketSize - HeaderSize - ListPrefixSize // 1432

	// MaxListPackets is the hard page cap; index 0xFF is the fresh-query
	// sentinel, so a response can never legitimately reference page 255.
	MaxListPackets = 254

	// QueryPacketIndex marks a list request as a fresh query rather than a
	// resend of a previously built page.
	QueryPacketIndex uint8 = 0xFF
)

// Bytes per packed server record in each list format.
const (
	OldStyleServerSize     = 6  // u32 ip + u16 port
	NewStyleIPv4ServerSize = 7  // u8 type + u32 ip + u16 port
	NewStyleIPv6ServerSize = 19 // u8 type + 16 bytes + u16 port
)

// Header is the framing every packet starts with. When Flags has
// FlagAuthenticatedSession set, Session holds the full 32-bit authenticated
// session and Key is meaningless; otherwise Session holds the peer-chosen
// 16-bit value and Key the matching 16-bit key.
type Header struct {
	Type    uint8
	Flags   uint8
	Session uint32
	Key     uint16
}

// Packet is a byte buffer with a cursor and a sticky OK flag. Reading past
// the end or writing past capacity clears OK and leaves the cursor where it
// was; subsequent reads return zero values. This mirrors how the legacy
// protocol treats short packets: the whole datagram is judged malformed at
// the end instead of erroring out mid-parse.
type Packet struct {
	buf []byte
	off int
	ok  bool
}

// NewReader wraps an inbound datagram for parsing. The buffer is not copied;
// the caller must not reuse it while the Packet is live.
func NewReader(buf []byte) *Packet {
	return &Packet{buf: buf, ok: true}
}

// NewWriter creates an outbound packet with a fixed capacity.
func NewWriter(capacity int) *Packet {
	return &Packet{buf: make([]byte, 0, capacity), ok: true}
}

// OK reports whether every read/write so far stayed in bounds.
func (p *Packet) OK() bool { return p.ok }

// Bytes returns the written portion of the packet.
func (p *Packet) Bytes() []byte { return p.buf }

// Remaining returns the number of unread bytes.
func (p *Packet) Remaining() int { return len(p.buf) - p.off }

func (p *Packet) ReadU8() uint8 {
	if !p.ok || p.off+1 > len(p.buf) {
		p.ok = false
		return 0
	}
	v := p.buf[p.off]
	p.off++
	return v
}

func (p *Packet) ReadU16() uint16 {
	if !p.ok || p.off+2 > len(p.buf) {
		p.ok = false
		return 0
	}
	v := binary.LittleEndian.Uint16(p.buf[p.off:])
	p.off += 2
	return v
}

func (p *Packet) ReadU32() uint32 {
	if !p.ok || p.off+4 > len(p.buf) {
		p.ok = false
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.off:])
	p.off += 4
	return v
}

// ReadBytes returns the next n bytes of the buffer without copying.
func (p *Packet) ReadBytes(n int) []byte {
	if !p.ok || n < 0 || p.off+n > len(p.buf) {
		p.ok = false
		return nil
	}
	v := p.buf[p.off : p.off+n : p.off+n]
	p.off += n
	return v
}

// ReadString reads a length-prefixed string (u8 length, raw bytes, no
// terminator).
func (p *Packet) ReadString() string {
	n := int(p.ReadU8())
	return string(p.ReadBytes(n))
}

func (p *Packet) WriteU8(v uint8) {
	if !p.ok || len(p.buf)+1 > cap(p.buf) {
		p.ok = false
		return
	}
	p.buf = append(p.buf, v)
}

func (p *Packet) WriteU16(v uint16) {
	if !p.ok || len(p.buf)+2 > cap(p.buf) {
		p.ok = false
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
}

func (p *Packet) WriteU32(v uint32) {
	if !p.ok || len(p.buf)+4 > cap(p.buf) {
		p.ok = false
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *Packet) WriteBytes(b []byte) {
	if !p.ok || len(p.buf)+len(b) > cap(p.buf) {
		p.ok = false
		return
	}
	p.buf = append(p.buf, b...)
}

// WriteString writes a length-prefixed string, truncating at 255 bytes since
// the length field is a single byte.
func (p *Packet) WriteString(s string) {
	if len(s) > 0xFF {
		s = s[:0xFF]
	}
	p.WriteU8(uint8(len(s)))
	p.WriteBytes([]byte(s))
}

// ReadHeader decodes the packet header, branching on the authenticated-
// session flag for the session field layout.
func (p *Packet) ReadHeader() Header {
	var h Header
	h.Type = p.ReadU8()
	h.Flags = p.ReadU8()
	if h.Flags&FlagAuthenticatedSession != 0 {
		h.Session = p.ReadU32()
	} else {
		h.Session = uint32(p.ReadU16())
		h.Key = p.ReadU16()
	}
	return h
}

// WriteHeader encodes the packet header using the same flag branch as
// ReadHeader.
func (p *Packet) WriteHeader(h Header) {
	p.WriteU8(h.Type)
	p.WriteU8(h.Flags)
	if h.Flags&FlagAuthenticatedSession != 0 {
		p.WriteU32(h.Session)
	} else {
		p.WriteU16(uint16(h.Session))
		p.WriteU16(h.Key)
	}
}

// Printable reports whether s consists solely of printable ASCII. It is
// applied to every string that gets logged or interned; anything else is
// treated as a malformed packet.
func Printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}
