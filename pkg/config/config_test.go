package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "stable", cfg.Scheduler.Strategy)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ProposalTTL)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ConflictCacheTTL)
	assert.Equal(t, 4, cfg.Scheduler.BatchConcurrency)
	assert.Equal(t, 2.0, cfg.Scheduler.DefaultWeight)
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_STRATEGY", "weighted")
	t.Setenv("SCHEDULER_PROPOSAL_TTL", "90s")
	t.Setenv("SCHEDULER_CONFLICT_CACHE_TTL", "not-a-duration")
	t.Setenv("SCHEDULER_SEED_BUSY_FROM_SCHOOL", "true")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "weighted", cfg.Scheduler.Strategy)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.ProposalTTL)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ConflictCacheTTL)
	assert.True(t, cfg.Scheduler.SeedBusyFromSchool)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
