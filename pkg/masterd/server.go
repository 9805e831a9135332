package masterd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"

	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/peerctl"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/registry"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/transport"
	"github.com/Torque3D-Resources/PushButton-Master-Server/pkg/wire"
)

// sweepBudget bounds how many records each housekeeping pass may touch so a
// large table cannot starve packet processing.
const sweepBudget = 5

// pollTimeout is how long one loop iteration waits for a datagram before
// running housekeeping again.
const pollTimeout = 10 * time.Millisecond

// Server is the master server daemon. All protocol state is owned by the
// goroutine running Run; the transport readers and the metrics endpoint are
// the only other goroutines.
type Server struct {
	Log zerolog.Logger

	// NotifySocket is the systemd notification socket path, if any.
	NotifySocket string

	cfg   Config
	store *registry.Store
	peers *peerctl.Table
	tr    *transport.Transport

	// send is swappable for tests that run handlers without sockets.
	send func(sock int, payload []byte, to netip.AddrPort) error

	metricsObj  daemonMetrics
	metricsInit sync.Once
	counts      struct {
		servers  atomic.Int64
		peers    atomic.Int64
		sessions atomic.Int64
	}

	closed bool
}

// NewServer wires up the daemon from a clamped configuration.
func NewServer(cfg Config, log zerolog.Logger) *Server {
	s := &Server{
		Log:   log,
		cfg:   cfg,
		store: registry.NewStore(time.Duration(cfg.Heartbeat) * time.Second),
		peers: peerctl.NewTable(peerctl.Config{
			ResetPeriod: time.Duration(cfg.FloodResetTime) * time.Second,
			ForgetAfter: time.Duration(cfg.FloodForgetTime) * time.Second,
			BanDuration: time.Duration(cfg.FloodBanTime) * time.Second,
			MaxTickets:  int(cfg.FloodMaxTickets),
			SessionIdle: time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
			MaxSessions: int(cfg.MaxSessionsPerPeer),
		}),
	}
	s.store.TestingMode = cfg.TestingMode != 0
	s.peers.OnBan(func(p *peerctl.Peer) {
		s.m().bans_total.Inc()
		s.Log.Info().
			Stringer("peer", p.Addr).
			Int("total_bans", p.TotalBans).
			Time("until", p.BannedUntil).
			Msg("peer banned")
	})
	s.peers.OnUnban(func(p *peerctl.Peer) {
		s.m().unbans_total.Inc()
		s.Log.Debug().
			Stringer("peer", p.Addr).
			Int("total_bans", p.TotalBans).
			Msg("peer unbanned")
	})
	if s.store.TestingMode {
		s.seedTestServers()
	}
	return s
}

// Store exposes the server registry, mainly for tests and the seeder.
func (s *Server) Store() *registry.Store { return s.store }

// Peers exposes the peer table.
func (s *Server) Peers() *peerctl.Table { return s.peers }

// reply sends an outbound packet back to the message's source, out of the
// socket the request came in on. Send failures are logged and swallowed;
// UDP gives no delivery promise anyway.
func (s *Server) reply(msg *message, p *wire.Packet) {
	if !p.OK() {
		s.Log.Error().Stringer("peer", msg.addr).Msg("reply overflowed its buffer, dropping")
		return
	}
	if s.send == nil {
		return
	}
	if err := s.send(msg.sock, p.Bytes(), msg.addr); err != nil {
		s.Log.Warn().Err(err).Stringer("peer", msg.addr).Msg("send failed")
	}
}

// ProcMessage runs one inbound datagram through flood control, header
// decoding, and the packet-type handlers.
func (s *Server) ProcMessage(dg transport.Datagram) {
	peer, allowed := s.peers.CheckPeer(dg.Addr, true)
	if !allowed {
		s.m().packets_dropped_total.banned.Inc()
		return
	}

	msg := &message{
		addr: dg.Addr,
		sock: dg.Sock,
		pkt:  wire.NewReader(dg.Payload),
		peer: peer,
	}
	msg.hdr = msg.pkt.ReadHeader()
	if !msg.pkt.OK() {
		s.penalize(msg, "truncated header")
		return
	}

	var handled bool
	switch msg.hdr.Type {
	case wire.GameHeartbeat:
		s.m().packets_total("heartbeat").Inc()
		handled = s.handleHeartbeat(msg)
	case wire.GameMasterInfoResponse:
		s.m().packets_total("info_response").Inc()
		handled = s.handleInfoResponse(msg)
	case wire.MasterServerListRequest:
		s.m().packets_total("list_request").Inc()
		handled = s.handleListRequest(msg, false)
	case wire.MasterServerExtendedListRequest:
		s.m().packets_total("extended_list_request").Inc()
		handled = s.handleListRequest(msg, true)
	case wire.MasterServerGameTypesRequest:
		s.m().packets_total("types_request").Inc()
		handled = s.handleTypesRequest(msg)
	case wire.MasterServerInfoRequest:
		s.m().packets_total("master_info_request").Inc()
		handled = s.handleInfoRequest(msg)
	case wire.MasterServerChallenge:
		s.m().packets_total("challenge").Inc()
		handled = s.handleChallengeAck(msg)
	default:
		s.m().packets_dropped_total.unknown.Inc()
		s.penalize(msg, "unknown packet type")
		return
	}
	if !handled {
		s.m().packets_dropped_total.malformed.Inc()
		s.penalize(msg, "malformed packet")
	}
}

// penalize charges the bad-message ticket penalty and leaves a trace-level
// dump of the offending datagram for protocol debugging.
func (s *Server) penalize(msg *message, reason string) {
	s.peers.Rep(msg.peer, int(s.cfg.FloodBadMsgTicket))
	s.Log.Debug().
		Stringer("peer", msg.addr).
		Uint8("type", msg.hdr.Type).
		Str("reason", reason).
		Msg("bad packet")
	if e := s.Log.Trace(); e.Enabled() {
		e.Str("dump", fmt.Sprintf("% x", msg.pkt.Bytes())).Msg("bad packet dump")
	}
}

// Run executes the event loop until ctx is cancelled: housekeeping sweeps
// with a bounded budget, then a short poll for datagrams, repeated forever.
func (s *Server) Run(ctx context.Context) error {
	tr, err := transport.Listen(s.Log.With().Str("component", "transport").Logger(), s.cfg.BindAddrs())
	if err != nil {
		return err
	}
	s.tr = tr
	s.send = tr.Send
	defer tr.Close()

	var pid *pidFile
	if s.cfg.PIDFile != "" {
		if pid, err = writePIDFile(s.cfg.PIDFile); err != nil {
			return err
		}
		defer pid.Remove()
	}

	var msrv *http.Server
	if s.cfg.MetricsAddr != "" {
		msrv = s.serveMetrics()
		defer msrv.Close()
	}

	s.Log.Info().
		Str("name", s.cfg.Name).
		Str("region", s.cfg.Region).
		Msg("master server running")
	go s.sdnotify("READY=1")

	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()
	for {
		s.store.Sweep(sweepBudget)
		s.peers.Sweep(sweepBudget)
		s.counts.servers.Store(int64(s.store.Count()))
		s.counts.peers.Store(int64(s.peers.Count()))
		s.counts.sessions.Store(int64(s.peers.SessionCount()))

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(pollTimeout)

		select {
		case <-ctx.Done():
			s.closed = true
			s.Log.Info().Msg("shutting down")
			go s.sdnotify("STOPPING=1")
			return nil
		case dg := <-tr.Queue():
			s.ProcMessage(dg)
			// drain whatever else is already queued before sweeping again
			for more := true; more; {
				select {
				case dg := <-tr.Queue():
					s.ProcMessage(dg)
				default:
					more = false
				}
			}
		case <-timer.C:
		}
	}
}

// HandleSIGHUP is reserved for configuration reload; for now the signal is
// acknowledged and ignored.
func (s *Server) HandleSIGHUP() {
	if s.closed {
		return
	}
	s.Log.Info().Msg("SIGHUP received and ignored (reload not implemented)")
}

func (s *Server) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		var b bytes.Buffer
		metrics.WriteProcessMetrics(&b)
		s.WritePrometheus(&b)
		w.Header().Set("Cache-Control", "private, no-cache, no-store")
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Header().Set("Content-Length", strconv.Itoa(b.Len()))
		b.WriteTo(w)
	})
	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Log.Warn().Err(err).Msg("metrics endpoint failed")
		}
	}()
	s.Log.Info().Str("addr", s.cfg.MetricsAddr).Msg("metrics endpoint up")
	return srv
}

func (s *Server) sdnotify(state string) (bool, error) {
	if s.NotifySocket == "" {
		return false, nil
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{
		Name: s.NotifySocket,
		Net:  "unixgram",
	})
	if err != nil {
		return false, err
	}
	defer conn.Close()
	if _, err = conn.Write([]byte(state)); err != nil {
		return false, err
	}
	return true, nil
}
