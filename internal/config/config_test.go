package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_URL", "")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "", cfg.PublicURL)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, "studysync_changes", cfg.FeedChannel)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_TTL", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_TTL", time.Minute))

	t.Setenv("TEST_TTL", "")
	t.Setenv("TEST_TTL_SECONDS", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("TEST_TTL", time.Minute))

	t.Setenv("TEST_TTL_SECONDS", "nope")
	assert.Equal(t, time.Minute, getEnvDuration("TEST_TTL", time.Minute))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("ORIGINS", " http://a.test , ,http://b.test")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, getEnvList("ORIGINS", nil))
	assert.Equal(t, []string{"x"}, getEnvList("ORIGINS_UNSET", []string{"x"}))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "false")
	assert.False(t, getEnvBool("FLAG", true))
	t.Setenv("FLAG", "garbage")
	assert.True(t, getEnvBool("FLAG", true))
}
