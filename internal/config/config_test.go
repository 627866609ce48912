package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "kit.db"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3, cfg.InitRetries)
	assert.Equal(t, time.Second, cfg.InitRetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.RecentLoginWindow)
	assert.Equal(t, 30*time.Second, cfg.UMSTimeout)
	assert.True(t, cfg.IsRelease())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("STORE_DRIVER", "firestore")
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("PORT", "9000")
	t.Setenv("RECENT_LOGIN_WINDOW", "2m")
	t.Setenv("INIT_RETRIES", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "demo-project", cfg.FirebaseProjectID)
	assert.Equal(t, 2*time.Minute, cfg.RecentLoginWindow)
	assert.Equal(t, 5, cfg.InitRetries)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studentkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER: sqlite\nSQLITE_PATH: /tmp/kit.db\nUMS_BASE_URL: http://ums.local\n"), 0o600))
	t.Setenv("GIN_MODE", "release")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "http://ums.local", cfg.UMSBaseURL)
}

func TestValidate(t *testing.T) {
	cfg := &Config{StoreDriver: "firestore", InitRetries: 3, RecentLoginWindow: time.Minute}
	assert.ErrorContains(t, cfg.Validate(), "FIREBASE_PROJECT_ID")

	cfg.StoreDriver = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "STORE_DRIVER")

	cfg = &Config{StoreDriver: "sqlite", SQLitePath: "x.db", InitRetries: 0, RecentLoginWindow: time.Minute}
	assert.ErrorContains(t, cfg.Validate(), "INIT_RETRIES")
}
