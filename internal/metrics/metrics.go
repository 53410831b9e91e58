package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service metrics. All recording methods are safe on a
// nil *Registry so components can run without metrics in tests.
type Registry struct {
	reg *prometheus.Registry

	SourceAttempts *prometheus.CounterVec
	AttemptLatency *prometheus.HistogramVec
	Exhausted      prometheus.Counter
	BatchRejected  *prometheus.CounterVec
	BatchSize      *prometheus.HistogramVec
	RoundTrips     *prometheus.CounterVec
	PriceConfirms  *prometheus.CounterVec
	SearchLatency  *prometheus.HistogramVec
	DroppedFlights *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightquery_source_attempts_total",
		Help: "Source attempts by outcome.",
	}, []string{"source", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightquery_source_attempt_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{Name: "flightquery_sources_exhausted_total"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "flightquery_batch_rejected_total"}, []string{"kind"})
	batchSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightquery_batch_combinations",
		Buckets: []float64{1, 2, 4, 8, 12, 16, 24, 30},
	}, []string{"kind"})
	roundTrips := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "flightquery_round_trips_total"}, []string{"pricing"})
	confirms := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "flightquery_price_confirmations_total"}, []string{"outcome"})
	searchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightquery_search_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "flightquery_invalid_flights_dropped_total"}, []string{"source"})

	r.MustRegister(attempts, latency, exhausted, rejected, batchSize, roundTrips, confirms, searchLatency, dropped)
	return &Registry{
		reg:            r,
		SourceAttempts: attempts,
		AttemptLatency: latency,
		Exhausted:      exhausted,
		BatchRejected:  rejected,
		BatchSize:      batchSize,
		RoundTrips:     roundTrips,
		PriceConfirms:  confirms,
		SearchLatency:  searchLatency,
		DroppedFlights: dropped,
	}
}

// WatchQuota exports the current month's usage of a quota key. used is read
// on every scrape.
func (r *Registry) WatchQuota(key string, used func(context.Context) (int64, error)) {
	if r == nil {
		return
	}
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "flightquery_quota_used",
		Help:        "Calls counted against a monthly quota this month.",
		ConstLabels: prometheus.Labels{"quota": key},
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := used(ctx)
		if err != nil {
			log.Printf("[metrics] read quota %s: %v", key, err)
			return 0
		}
		return float64(n)
	}))
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) ObserveAttempt(source, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.SourceAttempts.WithLabelValues(source, outcome).Inc()
	r.AttemptLatency.WithLabelValues(source).Observe(d.Seconds())
}

func (r *Registry) ObserveExhausted() {
	if r == nil {
		return
	}
	r.Exhausted.Inc()
}

func (r *Registry) ObserveDropped(source string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.DroppedFlights.WithLabelValues(source).Add(float64(n))
}

func (r *Registry) ObserveBatch(kind string, size int) {
	if r == nil {
		return
	}
	r.BatchSize.WithLabelValues(kind).Observe(float64(size))
}

func (r *Registry) ObserveBatchRejected(kind string) {
	if r == nil {
		return
	}
	r.BatchRejected.WithLabelValues(kind).Inc()
}

func (r *Registry) ObserveRoundTrips(pricing string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.RoundTrips.WithLabelValues(pricing).Add(float64(n))
}

func (r *Registry) ObservePriceConfirm(outcome string) {
	if r == nil {
		return
	}
	r.PriceConfirms.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveSearch(operation string, d time.Duration) {
	if r == nil {
		return
	}
	r.SearchLatency.WithLabelValues(operation).Observe(d.Seconds())
}
