package recordcache

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// NamespaceStats is a point-in-time view of one namespace's counters.
type NamespaceStats struct {
	Hits     int64  `json:"hits"`
	Misses   int64  `json:"misses"`
	Total    int64  `json:"total"`
	HitRatio string `json:"hitRatio"`
}

type namespaceCounters struct {
	hits   *xsync.Counter
	misses *xsync.Counter
}

// Metrics counts cache hits and misses per namespace. Construct one per process
// with NewMetrics and inject it; the zero value is not usable.
//
// Namespaces are created on first touch. Increments are striped atomic adds and
// never block each other or Snapshot.
type Metrics struct {
	namespaces *xsync.MapOf[string, *namespaceCounters]

	hitsDesc   *prometheus.Desc
	missesDesc *prometheus.Desc
	totalDesc  *prometheus.Desc
}

var _ prometheus.Collector = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{
		namespaces: xsync.NewMapOf[string, *namespaceCounters](),
		hitsDesc: prometheus.NewDesc("recordcache_cache_hits",
			"Cache lookups that returned a value.", []string{"namespace"}, nil),
		missesDesc: prometheus.NewDesc("recordcache_cache_misses",
			"Cache lookups that returned nothing.", []string{"namespace"}, nil),
		totalDesc: prometheus.NewDesc("recordcache_cache_operations",
			"Cache lookups (hits + misses).", []string{"namespace"}, nil),
	}
}

func (m *Metrics) counters(ns string) *namespaceCounters {
	c, _ := m.namespaces.LoadOrCompute(ns, func() *namespaceCounters {
		return &namespaceCounters{hits: xsync.NewCounter(), misses: xsync.NewCounter()}
	})
	return c
}

func (m *Metrics) RecordHit(ns string)  { m.counters(ns).hits.Inc() }
func (m *Metrics) RecordMiss(ns string) { m.counters(ns).misses.Inc() }

// Reset drops every namespace. Cache contents and sequences are untouched.
func (m *Metrics) Reset() { m.namespaces.Clear() }

// Stats returns the counters of ns; an unknown namespace reads as all-zero.
func (m *Metrics) Stats(ns string) NamespaceStats {
	c, ok := m.namespaces.Load(ns)
	if !ok {
		return newStats(0, 0)
	}
	return newStats(c.hits.Value(), c.misses.Value())
}

// Snapshot returns the stats of every namespace touched since the last Reset.
// It is consistent per namespace only.
func (m *Metrics) Snapshot() map[string]NamespaceStats {
	out := make(map[string]NamespaceStats, m.namespaces.Size())
	m.namespaces.Range(func(ns string, c *namespaceCounters) bool {
		out[ns] = newStats(c.hits.Value(), c.misses.Value())
		return true
	})
	return out
}

// Namespaces returns the touched namespaces, sorted.
func (m *Metrics) Namespaces() []string {
	out := make([]string, 0, m.namespaces.Size())
	m.namespaces.Range(func(ns string, _ *namespaceCounters) bool {
		out = append(out, ns)
		return true
	})
	sort.Strings(out)
	return out
}

func newStats(hits, misses int64) NamespaceStats {
	total := hits + misses
	return NamespaceStats{
		Hits:     hits,
		Misses:   misses,
		Total:    total,
		HitRatio: fmt.Sprintf("%.2f%%", hitRatio(hits, total)*100),
	}
}

func hitRatio(hits, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.hitsDesc
	ch <- m.missesDesc
	ch <- m.totalDesc
}

// Collect exports counters as gauges: Reset makes them go back to zero.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for ns, s := range m.Snapshot() {
		ch <- prometheus.MustNewConstMetric(m.hitsDesc, prometheus.GaugeValue, float64(s.Hits), ns)
		ch <- prometheus.MustNewConstMetric(m.missesDesc, prometheus.GaugeValue, float64(s.Misses), ns)
		ch <- prometheus.MustNewConstMetric(m.totalDesc, prometheus.GaugeValue, float64(s.Total), ns)
	}
}
