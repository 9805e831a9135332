// Package transport owns the daemon's UDP sockets. Each socket gets a reader
// goroutine that feeds a shared channel; the event loop drains the channel
// so all protocol state stays single-threaded. Replies go out the
// socket the request arrived on, which matters for dual-stack binds.
package transport

import (
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/wire"
)

// Datagram is one received packet. Sock identifies the receiving socket so
// the reply can be sent from the same local address.
type Datagram struct {
	Payload []byte
	Addr    netip.AddrPort
	Sock    int
}

// Stats counts traffic through all sockets.
type Stats struct {
	RxCount   atomic.Uint64
	RxBytes   atomic.Uint64
	RxErrors  atomic.Uint64
	RxDropped atomic.Uint64 // channel full
	TxCount   atomic.Uint64
	TxBytes   atomic.Uint64
	TxErrors  atomic.Uint64
}

// WritePrometheus writes the counters in text exposition format.
func (s *Stats) WritePrometheus(w io.Writer) {
	fmt.Fprintf(w, "masterd_transport_rx_count %d\n", s.RxCount.Load())
	fmt.Fprintf(w, "masterd_transport_rx_bytes %d\n", s.RxBytes.Load())
	fmt.Fprintf(w, "masterd_transport_rx_errors %d\n", s.RxErrors.Load())
	fmt.Fprintf(w, "masterd_transport_rx_dropped %d\n", s.RxDropped.Load())
	fmt.Fprintf(w, "masterd_transport_tx_count %d\n", s.TxCount.Load())
	fmt.Fprintf(w, "masterd_transport_tx_bytes %d\n", s.TxBytes.Load())
	fmt.Fprintf(w, "masterd_transport_tx_errors %d\n", s.TxErrors.Load())
}

// Transport is a set of bound UDP sockets with a shared receive queue.
type Transport struct {
	log    zerolog.Logger
	conns  []*net.UDPConn
	queue  chan Datagram
	stats  Stats
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Listen binds a UDP socket on every address in addrs (host:port strings).
// Binding fails fatally only when no address could be bound; a partial bind
// is logged and kept, since a v6 bind commonly fails on v4-only hosts.
func Listen(log zerolog.Logger, addrs []string) (*Transport, error) {
	t := &Transport{
		log:   log,
		queue: make(chan Datagram, 256),
	}
	var lastErr error
	for _, a := range addrs {
		ua, err := net.ResolveUDPAddr("udp", a)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("addr", a).Msg("failed to resolve bind address")
			continue
		}
		conn, err := net.ListenUDP("udp", ua)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("addr", a).Msg("failed to bind")
			continue
		}
		log.Info().Stringer("addr", conn.LocalAddr()).Msg("listening")
		t.conns = append(t.conns, conn)
	}
	if len(t.conns) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no bind addresses configured")
		}
		return nil, fmt.Errorf("bind: %w", lastErr)
	}
	for i, conn := range t.conns {
		t.wg.Add(1)
		go t.reader(i, conn)
	}
	return t, nil
}

// Stats returns the traffic counters.
func (t *Transport) Stats() *Stats { return &t.stats }

func (t *Transport) reader(sock int, conn *net.UDPConn) {
	defer t.wg.Done()
	for {
		buf := make([]byte, wire.MaxPacketSize+1)
		n, raddr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if t.closed.Load() {
				return
			}
			t.stats.RxErrors.Add(1)
			t.log.Warn().Err(err).Int("sock", sock).Msg("read error")
			continue
		}
		if n > wire.MaxPacketSize {
			// oversized datagrams cannot be legitimate protocol traffic
			t.stats.RxErrors.Add(1)
			continue
		}
		t.stats.RxCount.Add(1)
		t.stats.RxBytes.Add(uint64(n))
		select {
		case t.queue <- Datagram{Payload: buf[:n], Addr: raddr, Sock: sock}:
		default:
			t.stats.RxDropped.Add(1)
		}
	}
}

// Queue exposes the receive channel for select-based pumping.
func (t *Transport) Queue() <-chan Datagram { return t.queue }

// Send transmits payload to the given peer from the identified socket.
func (t *Transport) Send(sock int, payload []byte, to netip.AddrPort) error {
	if sock < 0 || sock >= len(t.conns) {
		sock = 0
	}
	n, err := t.conns[sock].WriteToUDPAddrPort(payload, to)
	if err != nil {
		t.stats.TxErrors.Add(1)
		return err
	}
	t.stats.TxCount.Add(1)
	t.stats.TxBytes.Add(uint64(n))
	return nil
}

// Close shuts the sockets and waits for the readers to exit. Queued
// datagrams are discarded.
func (t *Transport) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	for _, conn := range t.conns {
		conn.Close()
	}
	t.wg.Wait()
}
