package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "pmctl.json", `{
		"socket": "/tmp/pm.sock",
		"no_autoconnect": true,
		"call_timeout": "3s",
		"log_level": "debug"
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/pm.sock", cfg.Socket)
	require.True(t, cfg.NoAutoConnect)
	require.Equal(t, 3*time.Second, cfg.CallTimeout)
	require.Equal(t, defaultDialTimeout, cfg.DialTimeout)
	require.Equal(t, log.DebugLevel, cfg.LogLevel)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "pmctl.yaml", "liveness_interval: 500ms\nkill_timeout: 5s\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, cfg.LivenessInterval)
	require.Equal(t, 5*time.Second, cfg.KillTimeout)
	require.False(t, cfg.NoAutoConnect)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	for _, content := range []string{`{"dial_timeout": "soon"}`, `{"dial_timeout": "-1s"}`} {
		_, err := Load(writeFile(t, "bad.json", content))
		require.Error(t, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "pmctl.json", `{"socket": "/tmp/file.sock", "call_timeout": "3s"}`)
	t.Setenv(envSocket, "/tmp/env.sock")
	t.Setenv(envNoAutoConnect, "1")
	t.Setenv(envCallTimeout, "7s")
	t.Setenv(envDialTimeout, "bogus")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/env.sock", cfg.Socket)
	require.True(t, cfg.NoAutoConnect)
	require.Equal(t, 7*time.Second, cfg.CallTimeout)
	require.Equal(t, defaultDialTimeout, cfg.DialTimeout)
}
