package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_PATH", "DATABASE_MUTEX_TIMEOUT", "ALLOW_NEW_ACCOUNTS",
		"PASSWORD_SALT", "TRACKER_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tracker.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.MutexTimeout)
	assert.True(t, cfg.AllowNewAccounts)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_path: /var/lib/tracker.db
database_mutex_timeout: 5
allow_new_accounts: false
addr: ":9000"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tracker.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Second, cfg.MutexTimeout)
	assert.False(t, cfg.AllowNewAccounts)
	assert.Equal(t, ":9000", cfg.Addr)

	t.Setenv("DATABASE_MUTEX_TIMEOUT", "12")
	t.Setenv("ALLOW_NEW_ACCOUNTS", "true")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, cfg.MutexTimeout)
	assert.Equal(t, 12, cfg.MutexTimeoutSecs)
	assert.True(t, cfg.AllowNewAccounts)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MutexTimeout = 0
	require.Error(t, cfg.Validate())
}
