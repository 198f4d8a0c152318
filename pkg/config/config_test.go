package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 18, cfg.SLA.CutoffHour)
	assert.Equal(t, 0, cfg.SLA.CutoffMinute)
	assert.Equal(t, 22, cfg.SLA.RunHour)
	assert.Equal(t, 30, cfg.SLA.RunMinute)
	assert.Equal(t, "Europe/London", cfg.SLA.Location.String())
	assert.Equal(t, 3, cfg.SLA.MaxRetries)
	assert.Equal(t, "england-and-wales", cfg.Calendar.Division)
	assert.Equal(t, 24*time.Hour, cfg.Calendar.RefreshInterval)
	assert.True(t, cfg.Calendar.FailOpen)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SLA_CUTOFF_TIME", "17:15")
	t.Setenv("CALENDAR_FAIL_OPEN", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 17, cfg.SLA.CutoffHour)
	assert.Equal(t, 15, cfg.SLA.CutoffMinute)
	assert.False(t, cfg.Calendar.FailOpen)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsBadClock(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SLA_RUN_TIME", "25:99")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock(" 09:05 ")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("nine")
	assert.Error(t, err)
}
