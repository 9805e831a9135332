package masterd

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

type daemonMetrics struct {
	set                   *metrics.Set
	packets_total         func(kind string) *metrics.Counter
	packets_dropped_total struct {
		banned    *metrics.Counter
		malformed *metrics.Counter
		unknown   *metrics.Counter
	}
	heartbeats_total        *metrics.Counter
	info_responses_total    *metrics.Counter
	list_requests_total     struct {
		fresh  *metrics.Counter
		resend *metrics.Counter
	}
	list_sessions_rejected_total *metrics.Counter
	challenges_issued_total      *metrics.Counter
	bans_total                   *metrics.Counter
	unbans_total                 *metrics.Counter
}

func (s *Server) m() *daemonMetrics {
	s.metricsInit.Do(func() {
		mo := &s.metricsObj
		mo.set = metrics.NewSet()
		mo.packets_total = func(kind string) *metrics.Counter {
			return mo.set.GetOrCreateCounter(`masterd_packets_total{type="` + kind + `"}`)
		}
		mo.packets_dropped_total.banned = mo.set.NewCounter(`masterd_packets_dropped_total{reason="banned"}`)
		mo.packets_dropped_total.malformed = mo.set.NewCounter(`masterd_packets_dropped_total{reason="malformed"}`)
		mo.packets_dropped_total.unknown = mo.set.NewCounter(`masterd_packets_dropped_total{reason="unknown"}`)
		mo.heartbeats_total = mo.set.NewCounter(`masterd_heartbeats_total`)
		mo.info_responses_total = mo.set.NewCounter(`masterd_info_responses_total`)
		mo.list_requests_total.fresh = mo.set.NewCounter(`masterd_list_requests_total{kind="fresh"}`)
		mo.list_requests_total.resend = mo.set.NewCounter(`masterd_list_requests_total{kind="resend"}`)
		mo.list_sessions_rejected_total = mo.set.NewCounter(`masterd_list_sessions_rejected_total`)
		mo.challenges_issued_total = mo.set.NewCounter(`masterd_challenges_issued_total`)
		mo.bans_total = mo.set.NewCounter(`masterd_bans_total`)
		mo.unbans_total = mo.set.NewCounter(`masterd_unbans_total`)
		mo.set.NewGauge(`masterd_servers_current`, func() float64 {
			return float64(s.counts.servers.Load())
		})
		mo.set.NewGauge(`masterd_peers_current`, func() float64 {
			return float64(s.counts.peers.Load())
		})
		mo.set.NewGauge(`masterd_sessions_current`, func() float64 {
			return float64(s.counts.sessions.Load())
		})
	})
	return &s.metricsObj
}

// WritePrometheus writes all daemon metrics, including the transport
// counters, in text exposition format.
func (s *Server) WritePrometheus(w io.Writer) {
	s.m().set.WritePrometheus(w)
	if s.tr != nil {
		s.tr.Stats().WritePrometheus(w)
	}
}
