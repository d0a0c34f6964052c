package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the engine's prometheus collectors on a dedicated registry
type Recorder struct {
	Registry *prometheus.Registry

	bids          *prometheus.CounterVec
	buyNow        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec
	handoffs      *prometheus.CounterVec
	promoted      prometheus.Counter
}

// New registers the collectors under the given namespace
func New(namespace string) *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		Registry: registry,
		bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_total",
			Help:      "Bid submissions by outcome reason.",
		}, []string{"outcome"}),
		buyNow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buy_now_total",
			Help:      "Buy-now submissions by outcome reason.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Auction status transitions by source and target status.",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_conflicts_total",
			Help:      "Optimistic commit conflicts that forced a re-validation.",
		}, []string{"operation"}),
		commitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_latency_seconds",
			Help:      "Latency of atomic commits against the store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_handoffs_total",
			Help:      "Auction won events handed to order creation.",
		}, []string{"result"}),
		promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_promoted_total",
			Help:      "Scheduled auctions promoted by the sweep.",
		}),
	}

	registry.MustRegister(
		r.bids,
		r.buyNow,
		r.transitions,
		r.conflicts,
		r.commitLatency,
		r.handoffs,
		r.promoted,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Bid(outcome string) {
	r.bids.WithLabelValues(outcome).Inc()
}

func (r *Recorder) BuyNow(outcome string) {
	r.buyNow.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Transition(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

func (r *Recorder) Conflict(operation string) {
	r.conflicts.WithLabelValues(operation).Inc()
}

func (r *Recorder) ObserveCommit(operation string, started time.Time) {
	r.commitLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (r *Recorder) Handoff(result string) {
	r.handoffs.WithLabelValues(result).Inc()
}

func (r *Recorder) Promoted(n int) {
	r.promoted.Add(float64(n))
}
