package metrics

import "github.com/prometheus/client_golang/prometheus"

// LiveStats provides the metrics collector access to in-memory state.
type LiveStats interface {
	ConnectionCount() int
	ActiveCallCount() int
	PhraseReloads() int64
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats LiveStats

	connections   *prometheus.Desc
	activeCalls   *prometheus.Desc
	phraseReloads *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (metrics will report 0).
func NewCollector(stats LiveStats) *Collector {
	return &Collector{
		stats: stats,
		connections: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "call_connections"),
			"Current number of open call WebSocket connections.",
			nil, nil,
		),
		activeCalls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_calls"),
			"Current number of calls in the active state.",
			nil, nil,
		),
		phraseReloads: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "phrases", "reloads_total"),
			"Times the phrase list has been reloaded from disk.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.activeCalls
	ch <- c.phraseReloads
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var conns, active, reloads float64
	if c.stats != nil {
		conns = float64(c.stats.ConnectionCount())
		active = float64(c.stats.ActiveCallCount())
		reloads = float64(c.stats.PhraseReloads())
	}
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, conns)
	ch <- prometheus.MustNewConstMetric(c.activeCalls, prometheus.GaugeValue, active)
	ch <- prometheus.MustNewConstMetric(c.phraseReloads, prometheus.CounterValue, reloads)
}
