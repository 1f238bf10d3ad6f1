// Package metrics exports distributor activity to Prometheus.
package metrics

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// Prometheus implements distributor.Observer.
type Prometheus struct {
	enrollments   *prometheus.CounterVec
	claims        *prometheus.CounterVec
	claimDuration prometheus.Histogram
	tokensAwarded prometheus.Counter
	totalMinted   prometheus.Gauge
	adminOps      *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	m := &Prometheus{
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_enrollments_total",
			Help: "Enrollment calls by whether they created a new enrollment.",
		}, []string{"result"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_claims_total",
			Help: "Completion claims by outcome kind.",
		}, []string{"outcome"}),
		claimDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rewards_claim_duration_seconds",
			Help:    "Latency of completion claims including collaborator calls.",
			Buckets: prometheus.DefBuckets,
		}),
		tokensAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewards_tokens_awarded_total",
			Help: "Tokens awarded by successful claims.",
		}),
		totalMinted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewards_total_minted",
			Help: "Current value of the minted total counter.",
		}),
		adminOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_admin_operations_total",
			Help: "Administrative operations by operation and outcome kind.",
		}, []string{"operation", "outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.enrollments, m.claims, m.claimDuration, m.tokensAwarded, m.totalMinted, m.adminOps,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return shared.KindOf(err).String()
}

// ObserveEnrollment implements distributor.Observer.
func (m *Prometheus) ObserveEnrollment(created bool) {
	if m == nil {
		return
	}
	result := "existing"
	if created {
		result = "created"
	}
	m.enrollments.WithLabelValues(result).Inc()
}

// ObserveClaim implements distributor.Observer.
func (m *Prometheus) ObserveClaim(err error, tokens *uint256.Int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(outcome(err)).Inc()
	m.claimDuration.Observe(elapsed.Seconds())
	if err == nil && tokens != nil {
		m.tokensAwarded.Add(tokens.Float64())
	}
}

// ObserveAdmin implements distributor.Observer.
func (m *Prometheus) ObserveAdmin(op string, err error) {
	if m == nil {
		return
	}
	m.adminOps.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveTotal implements distributor.Observer.
func (m *Prometheus) ObserveTotal(total *uint256.Int) {
	if m == nil || total == nil {
		return
	}
	m.totalMinted.Set(total.Float64())
}
