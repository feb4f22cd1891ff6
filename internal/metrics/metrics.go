// Package metrics defines the prometheus counters and gauges the reactor
// updates as it runs. They are not served over HTTP by this core (there is
// no admin/metrics endpoint — spec.md's core only serves static files,
// uploads, and CGI); a caller embedding the reactor can expose Registry
// itself via an external promhttp.Handler.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "localserver"

// Set is the collection of metrics the reactor updates. Call New to create
// one registered against a dedicated registry (never the global default
// registry, so tests can create as many Sets as they like without
// colliding).
type Set struct {
	Registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	RequestsTotal       *prometheus.CounterVec // label: status_class (2xx,4xx,5xx)
	CGISpawned          prometheus.Counter
	CGITimedOut         prometheus.Counter
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
}

// New builds a fresh, independently-registered Set.
func New() *Set {
	reg := prometheus.NewRegistry()
	s := &Set{
		Registry: reg,
		ConnectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total TCP connections accepted across all listeners.",
		}),
		ConnectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently tracked by the reactor.",
		}),
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests completed, labeled by response status class.",
		}, []string{"status_class"}),
		CGISpawned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cgi_spawned_total",
			Help:      "CGI child processes spawned.",
		}),
		CGITimedOut: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cgi_timed_out_total",
			Help:      "CGI child processes killed for exceeding the idle timeout.",
		}),
		BytesRead: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes read from client sockets.",
		}),
		BytesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to client sockets.",
		}),
	}
	return s
}

// StatusClass returns the "Nxx" label for a status code, e.g. 404 -> "4xx".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ObserveResponse increments RequestsTotal for the status class of code.
func (s *Set) ObserveResponse(code int) {
	s.RequestsTotal.WithLabelValues(StatusClass(code)).Inc()
}
