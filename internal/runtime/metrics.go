package runtime

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics exposes the collector and dispatch-cache counters as Prometheus
// collectors when Options.Metrics is set.
type metrics struct {
	collectors []prometheus.Collector
}

func newMetrics(reg prometheus.Registerer, rt *Runtime) *metrics {
	m := &metrics{}

	add := func(c prometheus.Collector) {
		reg.MustRegister(c)
		m.collectors = append(m.collectors, c)
	}

	add(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "lumen_gc_runs_total",
		Help: "Cycle-collector passes completed.",
	}, func() float64 { return float64(rt.gc.Stats().Runs) }))

	add(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "lumen_gc_reclaimed_total",
		Help: "Heap objects reclaimed by the cycle collector.",
	}, func() float64 { return float64(rt.gc.Stats().Reclaimed) }))

	add(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lumen_heap_live_objects",
		Help: "Live reference-counted heap objects.",
	}, func() float64 { return float64(rt.gc.Stats().LiveObjects) }))

	add(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lumen_gc_candidates",
		Help: "Objects currently on the possible-root candidate list.",
	}, func() float64 { return float64(rt.gc.Stats().CandidatesNow) }))

	add(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "lumen_dispatch_cache_hits_total",
		Help: "Overload resolutions answered from the memo cache.",
	}, func() float64 { h, _ := rt.resolver.CacheStats(); return float64(h) }))

	add(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "lumen_dispatch_cache_misses_total",
		Help: "Overload resolutions that scored every candidate.",
	}, func() float64 { _, miss := rt.resolver.CacheStats(); return float64(miss) }))

	return m
}

// StatsLine is a one-line human summary of the runtime's health, printed
// by the CLI after a run when asked.
func (r *Runtime) StatsLine() string {
	gs := r.gc.Stats()
	hits, misses := r.resolver.CacheStats()
	return fmt.Sprintf("gc: %s runs, %s reclaimed, %s live; dispatch cache: %s hits / %s misses; %s symbols",
		humanize.Comma(int64(gs.Runs)),
		humanize.Comma(int64(gs.Reclaimed)),
		humanize.Comma(gs.LiveObjects),
		humanize.Comma(int64(hits)),
		humanize.Comma(int64(misses)),
		humanize.Comma(int64(r.interner.Size())))
}
