package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DB_URL", "RABBITMQ_URL", "API_PORT", "SCHED_PORT", "WORKER_PORT",
	"SCHED_TICK_INTERVAL", "SCHED_BATCH_SIZE", "DISPATCH_TIMEOUT",
	"RESEARCH_URL", "WORKER_POLL_INTERVAL", "DISPATCH_RATE_PER_MIN",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv сбрасывает переменные на время теста.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "8081", cfg.SchedPort)
	assert.Equal(t, "8082", cfg.WorkerPort)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 100, cfg.Scheduler.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DispatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 30, cfg.DispatchRatePerMin)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_URL", "postgres://u:p@db:5432/regwatch")
	t.Setenv("SCHED_TICK_INTERVAL", "15s")
	t.Setenv("SCHED_BATCH_SIZE", "25")
	t.Setenv("DISPATCH_TIMEOUT", "2m")
	t.Setenv("RESEARCH_URL", "http://research:9000")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/regwatch", cfg.DatabaseURL)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 25, cfg.Scheduler.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.DispatchTimeout)
	assert.Equal(t, "http://research:9000", cfg.Worker.ResearchURL)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHED_TICK_INTERVAL", "soon")
	t.Setenv("SCHED_BATCH_SIZE", "-3")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHED_TICK_INTERVAL")
	assert.Contains(t, err.Error(), "SCHED_BATCH_SIZE")
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("API_PORT=9090\nDISPATCH_RATE_PER_MIN=5\n"), 0o600))

	// godotenv не перезаписывает уже заданные переменные, а пустые
	// значения из clearEnv считаются заданными — убираем их
	require.NoError(t, os.Unsetenv("API_PORT"))
	require.NoError(t, os.Unsetenv("DISPATCH_RATE_PER_MIN"))
	t.Cleanup(func() {
		os.Unsetenv("API_PORT")
		os.Unsetenv("DISPATCH_RATE_PER_MIN")
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.APIPort)
	assert.Equal(t, 5, cfg.DispatchRatePerMin)
}
