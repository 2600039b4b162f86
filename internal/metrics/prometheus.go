package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rcerr "pcremote/internal/errors"
)

var (
	descSubmitted = prometheus.NewDesc(
		"pcremote_commands_submitted_total",
		"Commands submitted to the session.", nil, nil)
	descSucceeded = prometheus.NewDesc(
		"pcremote_commands_succeeded_total",
		"Commands that produced a Success outcome.", nil, nil)
	descFailed = prometheus.NewDesc(
		"pcremote_commands_failed_total",
		"Commands that produced a Failure outcome, by kind.", []string{"kind"}, nil)
	descQueue = prometheus.NewDesc(
		"pcremote_queue_depth",
		"Commands waiting for the session worker.", nil, nil)
	descConnActive = prometheus.NewDesc(
		"pcremote_connections_active",
		"Open connections to the remote endpoint.", nil, nil)
	descConnTotal = prometheus.NewDesc(
		"pcremote_connections_total",
		"Connections opened to the remote endpoint.", nil, nil)
	descBytes = prometheus.NewDesc(
		"pcremote_bytes_total",
		"Bytes moved over the wire, by direction.", []string{"direction"}, nil)
)

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descSubmitted
	ch <- descSucceeded
	ch <- descFailed
	ch <- descQueue
	ch <- descConnActive
	ch <- descConnTotal
	ch <- descBytes
}

// Collect implements [prometheus.Collector].  The atomic counters are
// the source of truth; Prometheus only reads them.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil {
		return
	}
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}

	counter(descSubmitted, c.Submitted())
	counter(descSucceeded, c.Succeeded())
	for _, k := range rcerr.Kinds() {
		counter(descFailed, c.Failed(k), k.String())
	}
	gauge(descQueue, c.QueueDepth())
	gauge(descConnActive, c.ActiveConnections())
	counter(descConnTotal, c.TotalConnections())
	counter(descBytes, c.TotalBytesIn(), "in")
	counter(descBytes, c.TotalBytesOut(), "out")
}

// Handler returns an HTTP handler exposing c on a private registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
