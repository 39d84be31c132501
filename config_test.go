package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvConfig_UnsetUsesDefaults(t *testing.T) {
	t.Setenv(configEnv, "")

	config, err := loadEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), config)
	assert.Equal(t, 5*time.Second, config.resolveTimeout())
}

func TestLoadEnvConfig_OverridesKeepDefaults(t *testing.T) {
	t.Setenv(configEnv, `{"log_level":"debug","use_compat_selection":true,"resolve_timeout_ms":250,"set_keymaps":true}`)

	config, err := loadEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.UseCompatSelection)
	assert.True(t, config.SetKeymaps)
	assert.Equal(t, "gopls", config.Server.Command)

	ec := config.engineConfig()
	assert.Equal(t, 250*time.Millisecond, ec.ResolveTimeout)
	assert.True(t, ec.UseCompatSelection)
}

func TestLoadEnvConfig_Invalid(t *testing.T) {
	t.Setenv(configEnv, `{"log_level":`)

	_, err := loadEnvConfig()
	assert.ErrorContains(t, err, configEnv)
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `log_level: trace
resolve_timeout_ms: 1000
server:
  command: /opt/gopls
  args: [serve, -rpc.trace]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	config, err := loadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "trace", config.LogLevel)
	assert.Equal(t, time.Second, config.resolveTimeout())

	pc := config.processConfig("/src")
	assert.Equal(t, "/opt/gopls", pc.Command)
	assert.Equal(t, []string{"serve", "-rpc.trace"}, pc.Args)
	assert.Equal(t, "/src", pc.RootDir)
}

func TestLoadFileConfig_EmptyPathAndMissingFile(t *testing.T) {
	config, err := loadFileConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), config)

	_, err = loadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	config := Config{ResolveTimeoutMs: -5}.normalize()

	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 0, config.ResolveTimeoutMs)
	assert.Equal(t, defaultConfig().Server, config.Server)
	assert.Zero(t, config.resolveTimeout())
	assert.Equal(t, 30*time.Second, config.idleShutdown())
}
