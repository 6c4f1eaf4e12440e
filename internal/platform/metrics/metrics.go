package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Logins          prometheus.Counter
	AuthFailures    prometheus.Counter
	TokensIssued    prometheus.Counter
	TokensRefreshed prometheus.Counter

	RateLimitAllowed *prometheus.CounterVec
	RateLimitBlocked *prometheus.CounterVec

	BidsAccepted    prometheus.Counter
	BidsRejected    *prometheus.CounterVec
	BidCASConflicts prometheus.Counter

	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sayarat_logins_total",
			Help: "Total number of successful logins",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sayarat_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sayarat_tokens_issued_total",
			Help: "Total number of credentials issued",
		}),
		TokensRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sayarat_tokens_refreshed_total",
			Help: "Total number of credentials refreshed",
		}),
		RateLimitAllowed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sayarat_ratelimit_allowed_total",
			Help: "Requests admitted by the rate gate, labeled by route class",
		}, []string{"class"}),
		RateLimitBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sayarat_ratelimit_blocked_total",
			Help: "Requests blocked by the rate gate, labeled by route class",
		}, []string{"class"}),
		BidsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sayarat_bids_accepted_total",
			Help: "Total number of bids accepted",
		}),
		BidsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sayarat_bids_rejected_total",
			Help: "Total number of bids rejected, labeled by reason code",
		}, []string{"reason"}),
		BidCASConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sayarat_bid_cas_conflicts_total",
			Help: "Conditional price writes that lost to a concurrent bid",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sayarat_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) IncrementLogins()          { m.Logins.Inc() }
func (m *Metrics) IncrementAuthFailures()    { m.AuthFailures.Inc() }
func (m *Metrics) IncrementTokensIssued()    { m.TokensIssued.Inc() }
func (m *Metrics) IncrementTokensRefreshed() { m.TokensRefreshed.Inc() }

func (m *Metrics) IncrementRateLimitAllowed(class string) {
	m.RateLimitAllowed.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementRateLimitBlocked(class string) {
	m.RateLimitBlocked.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementBidsAccepted() { m.BidsAccepted.Inc() }

func (m *Metrics) IncrementBidsRejected(reason string) {
	m.BidsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementBidCASConflicts() { m.BidCASConflicts.Inc() }

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
