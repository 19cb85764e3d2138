// Package promstats exports container statistics as Prometheus metrics.
// It reads through the stats surface only, so collection never contends with
// the container lock for longer than a stats snapshot.
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cachelab/wtinylfu"
)

// StatsSource is the slice of the container surface the collector reads.
// *wtinylfu.Container[T] satisfies it for any T.
type StatsSource interface {
	GetStats() wtinylfu.Stat
	GetEvictionAgeStat(projectedLength uint64) wtinylfu.EvictionAgeStat
}

// Collector implements prometheus.Collector over a container's statistics.
type Collector struct {
	src StatsSource

	size         *prometheus.Desc
	refreshTime  *prometheus.Desc
	counterBytes *prometheus.Desc
	oldestAge    *prometheus.Desc
	protected    *prometheus.Desc
}

// NewCollector builds a collector for the given container.
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
//
// The caller registers it: reg.MustRegister(NewCollector(...)).
func NewCollector(src StatsSource, ns, sub string, constLabels prometheus.Labels) *Collector {
	return &Collector{
		src: src,
		size: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "items"),
			"Number of items tracked by the eviction container", nil, constLabels),
		refreshTime: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "refresh_time_seconds"),
			"Effective promotion throttle", nil, constLabels),
		counterBytes: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "counter_bytes"),
			"Byte footprint of the frequency counters", nil, constLabels),
		oldestAge: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "protected_oldest_age_seconds"),
			"Age of the oldest protected item", nil, constLabels),
		protected: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "protected_items"),
			"Number of items in the protected segment", nil, constLabels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.refreshTime
	ch <- c.counterBytes
	ch <- c.oldestAge
	ch <- c.protected
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stat := c.src.GetStats()
	age := c.src.GetEvictionAgeStat(0)
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(stat.Size))
	ch <- prometheus.MustNewConstMetric(c.refreshTime, prometheus.GaugeValue, float64(stat.LruRefreshTime))
	ch <- prometheus.MustNewConstMetric(c.counterBytes, prometheus.GaugeValue, float64(stat.CounterBytes))
	ch <- prometheus.MustNewConstMetric(c.oldestAge, prometheus.GaugeValue, float64(age.OldestElementAge))
	ch <- prometheus.MustNewConstMetric(c.protected, prometheus.GaugeValue, float64(age.Size))
}

// Compile-time check: Collector implements prometheus.Collector.
var _ prometheus.Collector = (*Collector)(nil)
