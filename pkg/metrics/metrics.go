package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_processed_total",
		Help: "Total number of trade records seen by the ledger engine",
	}, []string{"status"})

	GainEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gain_entries_total",
		Help: "Total number of realized gain entries emitted",
	}, []string{"kind"})

	LedgerComputationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_computation_duration_seconds",
		Help:    "Duration of ledger computations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	TradesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_loaded_total",
		Help: "Total number of trade records loaded into the store",
	}, []string{"status"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})

	FormRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tax_form_requests_total",
		Help: "Total number of tax form requests",
	}, []string{"year", "cached"})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordDatabaseQuery(queryType, status string, duration float64) {
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordTrades(accepted, skipped int) {
	TradesProcessed.WithLabelValues("accepted").Add(float64(accepted))
	TradesProcessed.WithLabelValues("skipped").Add(float64(skipped))
}

func RecordGainEntries(matched, unmatched int) {
	GainEntries.WithLabelValues("matched").Add(float64(matched))
	GainEntries.WithLabelValues("unmatched").Add(float64(unmatched))
}

func RecordFormRequest(year string, cached bool) {
	cachedStr := "false"
	if cached {
		cachedStr = "true"
	}
	FormRequests.WithLabelValues(year, cachedStr).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
