package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors of the query layer. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	StoreErrors   *prometheus.CounterVec
	SkippedWrites *prometheus.CounterVec
	Writes        prometheus.Counter
	SweepRemovals *prometheus.CounterVec
	WarmResults   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when reg is
// not nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of query cache hits",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of query cache misses",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_store_errors_total",
			Help:      "Cache backend failures recovered by the query layer",
		}, []string{"op", "kind"}),
		SkippedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_skipped_writes_total",
			Help:      "Computed results not written to the cache",
		}, []string{"reason"}),
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Computed results written to the cache",
		}),
		SweepRemovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sweep_removals_total",
			Help:      "Keys removed by invalidation sweeps",
		}, []string{"result"}),
		WarmResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warm_queries_total",
			Help:      "Queries executed by the prepopulator",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Hits,
			m.Misses,
			m.StoreErrors,
			m.SkippedWrites,
			m.Writes,
			m.SweepRemovals,
			m.WarmResults,
		)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *Metrics) write() {
	if m != nil {
		m.Writes.Inc()
	}
}

func (m *Metrics) storeError(op string, kind ErrorKind) {
	if m != nil {
		m.StoreErrors.WithLabelValues(op, string(kind)).Inc()
	}
}

func (m *Metrics) skipped(reason SkipReason) {
	if m != nil {
		m.SkippedWrites.WithLabelValues(string(reason)).Inc()
	}
}

// SweepResult records the outcome of one key removal.
func (m *Metrics) SweepResult(removed bool) {
	if m == nil {
		return
	}
	if removed {
		m.SweepRemovals.WithLabelValues("removed").Inc()
		return
	}
	m.SweepRemovals.WithLabelValues("failed").Inc()
}

// WarmResult records the outcome of one prepopulated query.
func (m *Metrics) WarmResult(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WarmResults.WithLabelValues("failed").Inc()
		return
	}
	m.WarmResults.WithLabelValues("ok").Inc()
}
