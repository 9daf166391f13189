package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PRESENCE_FRESH_MINUTES", "")
	t.Setenv("PRESENCE_UNUSABLE_HOURS", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("PRESENCE_SWEEP_SECONDS", "")

	cfg := Load()

	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.Presence.Fresh)
	assert.Equal(t, 12*time.Hour, cfg.Presence.Unusable)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.DispatchWorkers)
	assert.Equal(t, time.Minute, cfg.PresenceSweepPeriod)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PRESENCE_FRESH_MINUTES", "15")
	t.Setenv("PRESENCE_UNUSABLE_HOURS", "6")
	t.Setenv("FIRESTORE_MIRROR_ENABLED", "true")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.Presence.Fresh)
	assert.Equal(t, 6*time.Hour, cfg.Presence.Unusable)
	assert.True(t, cfg.FirestoreMirrorEnabled)
	assert.Equal(t, 30, cfg.RateLimitBurst)
}

func TestValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/friendzone")
	t.Setenv("CLERK_SECRET_KEY", "sk_test")
	t.Setenv("PRESENCE_FRESH_MINUTES", "")
	t.Setenv("PRESENCE_UNUSABLE_HOURS", "")
	t.Setenv("DISPATCH_WORKERS", "")
	t.Setenv("PRESENCE_SWEEP_SECONDS", "")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	cfg.Presence.Fresh = 24 * time.Hour
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.PresenceSweepPeriod = 0
	assert.Error(t, cfg.Validate())
}
