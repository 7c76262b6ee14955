package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instance-level counters for the chat fabric.
type Metrics struct {
	registry *prometheus.Registry

	connsActive     prometheus.Gauge
	handshakes      *prometheus.CounterVec
	framesMalformed prometheus.Counter
	persisted       prometheus.Counter
	persistErrors   prometheus.Counter
	published       prometheus.Counter
	publishErrors   prometheus.Counter
	delivered       prometheus.Counter
	dropped         prometheus.Counter
}

func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	connsActive := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ws_connections_active"})
	handshakes := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "ws_handshakes_total"}, []string{"result"})
	framesMalformed := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "ws_frames_malformed_total"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_persisted_total"})
	persistErrors := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_persist_errors_total"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bus_published_total"})
	publishErrors := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bus_publish_errors_total"})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "envelopes_delivered_total"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "envelopes_dropped_total"})
	r.MustRegister(connsActive, handshakes, framesMalformed, persisted, persistErrors, published, publishErrors, delivered, dropped)

	return &Metrics{
		registry:        r,
		connsActive:     connsActive,
		handshakes:      handshakes,
		framesMalformed: framesMalformed,
		persisted:       persisted,
		persistErrors:   persistErrors,
		published:       published,
		publishErrors:   publishErrors,
		delivered:       delivered,
		dropped:         dropped,
	}
}

func (m *Metrics) ConnOpened() {
	m.connsActive.Inc()
	m.handshakes.WithLabelValues("accepted").Inc()
}

func (m *Metrics) ConnClosed() {
	m.connsActive.Dec()
}

func (m *Metrics) HandshakeRejected() {
	m.handshakes.WithLabelValues("rejected").Inc()
}

func (m *Metrics) FrameMalformed() {
	m.framesMalformed.Inc()
}

func (m *Metrics) MessagePersisted() {
	m.persisted.Inc()
}

func (m *Metrics) PersistError() {
	m.persistErrors.Inc()
}

func (m *Metrics) Published() {
	m.published.Inc()
}

func (m *Metrics) PublishError() {
	m.publishErrors.Inc()
}

func (m *Metrics) Delivered() {
	m.delivered.Inc()
}

func (m *Metrics) Dropped() {
	m.dropped.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
