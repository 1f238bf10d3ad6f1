package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "course-rewards", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "ST1ADMIN", cfg.Rewards.Admin)
	assert.Equal(t, uint64(100), cfg.Rewards.Multiplier)
	assert.Equal(t, BackendMemory, cfg.Rewards.Backend)
	assert.Equal(t, "sequence", cfg.Rewards.CertificateStrategy)
	assert.Nil(t, cfg.Rewards.SupplyCap)
	assert.Empty(t, cfg.Rewards.AnswerKeys)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, time.Minute, cfg.Rewards.ReconcileInterval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("REWARDS_ADMIN", "ST1OWNER")
	t.Setenv("REWARDS_MULTIPLIER", "150")
	t.Setenv("REWARDS_CERT_STRATEGY", "uuid")
	t.Setenv("REWARDS_SUPPLY_CAP", "1000000000000000000000000")
	t.Setenv("REWARDS_BACKEND", "postgres")
	t.Setenv("REWARDS_ANSWER_KEYS", "1=1,2,3;7=4,4")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/rewards")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("METRICS_PORT", "9191")
	t.Setenv("REWARDS_RECONCILE_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "ST1OWNER", cfg.Rewards.Admin)
	assert.Equal(t, uint64(150), cfg.Rewards.Multiplier)
	assert.Equal(t, "uuid", cfg.Rewards.CertificateStrategy)
	require.NotNil(t, cfg.Rewards.SupplyCap)
	assert.Equal(t, "1000000000000000000000000", cfg.Rewards.SupplyCap.Dec())
	assert.Equal(t, BackendPostgres, cfg.Rewards.Backend)
	assert.Equal(t, map[uint64][]uint64{1: {1, 2, 3}, 7: {4, 4}}, cfg.Rewards.AnswerKeys)
	assert.Equal(t, 9191, cfg.Observability.MetricsPort)
	assert.Zero(t, cfg.Rewards.ReconcileInterval)
}

func TestLoad_InvalidSupplyCap(t *testing.T) {
	t.Setenv("REWARDS_SUPPLY_CAP", "lots")

	_, err := Load()
	assert.ErrorContains(t, err, "REWARDS_SUPPLY_CAP")
}

func TestValidate_AggregatesErrors(t *testing.T) {
	t.Setenv("REWARDS_MULTIPLIER", "0")
	t.Setenv("REWARDS_CERT_STRATEGY", "random")
	t.Setenv("REWARDS_BACKEND", "sqlite")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REWARDS_MULTIPLIER")
	assert.Contains(t, err.Error(), "REWARDS_CERT_STRATEGY")
	assert.Contains(t, err.Error(), "REWARDS_BACKEND")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestParseAnswerKeys(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[uint64][]uint64
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[uint64][]uint64{}},
		{name: "single", raw: "1=1,2,3", want: map[uint64][]uint64{1: {1, 2, 3}}},
		{name: "spaces and trailing separator", raw: " 2 = 5, 6 ; ", want: map[uint64][]uint64{2: {5, 6}}},
		{name: "missing equals", raw: "1:1,2", wantErr: true},
		{name: "bad course", raw: "x=1", wantErr: true},
		{name: "bad answer", raw: "1=1,b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswerKeys(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
