package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir keeps stray zaloga.yaml or .env files out of the test.
func inTempDir(t *testing.T) string {
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestDefaults(t *testing.T) {
	inTempDir(t)
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendSQL, cfg.Store.Backend)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "zaloga.sqlite3", cfg.DB.DSN)
	assert.Equal(t, "Admin", cfg.Admin.User)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Seed)
}

func TestFlagsOverrideEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("ZALOGA_ADDR", ":9000")
	t.Setenv("ZALOGA_REDIS_ADDR", "cache:6379")

	cfg, err := Load([]string{"-a", ":7000", "--store", "redis", "--seed"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Seed)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	yaml := "addr: \":6000\"\nstore:\n  backend: memory\namqp:\n  url: amqp://broker\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zaloga.yaml"), []byte(yaml), 0o644))
	t.Setenv("ZALOGA_ADDR", ":6001")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":6001", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "amqp://broker", cfg.AMQP.URL)
	assert.Equal(t, "zaloga.events", cfg.AMQP.Exchange)
}

func TestDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ZALOGA_ADMIN_USER=owner\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ZALOGA_ADMIN_USER") })

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "owner", cfg.Admin.User)
}

func TestHelp(t *testing.T) {
	inTempDir(t)
	_, err := Load([]string{"--help"})
	assert.True(t, errors.Is(err, pflag.ErrHelp))
	assert.Contains(t, Usage(), "--store")
}

func TestRejectsBadSettings(t *testing.T) {
	inTempDir(t)
	tests := [][]string{
		{"--store", "mongo"},
		{"--db-driver", "postgres"},
		{"--db", ""},
		{"--user", ""},
		{"extra-arg"},
	}
	for _, args := range tests {
		_, err := Load(args)
		assert.Error(t, err, "args %v", args)
	}
}
