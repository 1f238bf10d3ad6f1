package metrics

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			key := f.GetName()
			for _, l := range metric.GetLabel() {
				key += "|" + l.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestPrometheus_Observations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheus(reg)
	require.NoError(t, err)

	m.ObserveEnrollment(true)
	m.ObserveEnrollment(false)
	m.ObserveClaim(nil, uint256.NewInt(10000), time.Millisecond)
	m.ObserveClaim(shared.ErrQuizFailed, uint256.NewInt(500), time.Millisecond)
	m.ObserveAdmin("setAdmin", shared.ErrNotAuthorized)
	m.ObserveTotal(uint256.NewInt(10000))

	got := gather(t, reg)
	assert.Equal(t, 1.0, got["rewards_enrollments_total|created"])
	assert.Equal(t, 1.0, got["rewards_enrollments_total|existing"])
	assert.Equal(t, 1.0, got["rewards_claims_total|ok"])
	assert.Equal(t, 1.0, got["rewards_claims_total|QuizFailed"])
	assert.Equal(t, 2.0, got["rewards_claim_duration_seconds"])
	assert.Equal(t, 10000.0, got["rewards_tokens_awarded_total"])
	assert.Equal(t, 10000.0, got["rewards_total_minted"])
	assert.Equal(t, 1.0, got["rewards_admin_operations_total|setAdmin|NotAuthorized"])
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestPrometheus_NilSafe(t *testing.T) {
	var m *Prometheus
	assert.NotPanics(t, func() {
		m.ObserveEnrollment(true)
		m.ObserveClaim(nil, nil, 0)
		m.ObserveAdmin("x", nil)
		m.ObserveTotal(nil)
	})
}
