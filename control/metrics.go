// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for system-level monitoring.
// Exposes counters and gauges through a prometheus registry.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry wraps a dedicated prometheus.Registry with the gauges and
// counters a running context exposes: pipe backpressure state, queue depth,
// and reaper-tracked socket teardown. Kept separate from the global
// prometheus registry so a process embedding serverlink alongside its own
// metrics doesn't collide on names.
type MetricsRegistry struct {
	reg *prometheus.Registry

	PipesActive      prometheus.Gauge
	PipeHWMHits      prometheus.Counter
	QueueDepth       *prometheus.GaugeVec
	MessagesSent     prometheus.Counter
	MessagesRecv     prometheus.Counter
	ReconnectsTotal  prometheus.Counter
	SocketsReaped    prometheus.Counter
	SocketsLive      prometheus.Gauge
}

// NewMetricsRegistry creates a registry with all series pre-registered.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	mr := &MetricsRegistry{
		reg: reg,
		PipesActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "serverlink_pipes_active",
			Help: "Number of pipes currently attached to a live socket.",
		}),
		PipeHWMHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "serverlink_pipe_hwm_hits_total",
			Help: "Number of times a pipe write hit its high-water mark.",
		}),
		QueueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "serverlink_queue_depth",
			Help: "Depth of a named internal queue (ypipe segment count, timer wheel size, etc).",
		}, []string{"queue"}),
		MessagesSent: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "serverlink_messages_sent_total",
			Help: "Messages handed off to an engine's write loop.",
		}),
		MessagesRecv: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "serverlink_messages_received_total",
			Help: "Messages decoded off the wire and pushed into a pipe.",
		}),
		ReconnectsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "serverlink_reconnects_total",
			Help: "Active-side connecter redial attempts.",
		}),
		SocketsReaped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "serverlink_sockets_reaped_total",
			Help: "Sockets the reaper has finished tearing down.",
		}),
		SocketsLive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "serverlink_sockets_live",
			Help: "Sockets currently registered with the context.",
		}),
	}
	return mr
}

// Registry exposes the underlying prometheus.Registry so a caller can mount
// it behind promhttp.HandlerFor on its own HTTP mux; serverlink itself never
// opens a listening port for metrics.
func (mr *MetricsRegistry) Registry() *prometheus.Registry { return mr.reg }
