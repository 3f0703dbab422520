package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	viper.Reset()

	require.NoError(t, Init(""))
	cfg := Get()

	assert.Equal(t, "http://127.0.0.1:8001/api/v1", cfg.Server.BaseURL)
	assert.Equal(t, "/chat", cfg.Server.ChatPath)
	assert.Equal(t, "/feedback", cfg.Server.FeedbackPath)
	assert.Equal(t, "/auth/token", cfg.Server.AuthPath)
	assert.Equal(t, "", cfg.Server.EnvironmentID)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)

	assert.True(t, cfg.ShowThinking)

	assert.Equal(t, "system.log", cfg.Logging.LogFile)
	assert.False(t, cfg.Logging.Persist)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestInitFromFile(t *testing.T) {
	viper.Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "settings.yaml")

	configContent := `
server:
  base_url: https://canvas.example.com/api/v1
  environment_id: env-42
  request_timeout: "2m"
show_thinking: false
logging:
  level: debug
  persist: true
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	require.NoError(t, Init(configFile))
	cfg := Get()

	assert.Equal(t, "https://canvas.example.com/api/v1", cfg.Server.BaseURL)
	assert.Equal(t, "env-42", cfg.Server.EnvironmentID)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.False(t, cfg.ShowThinking)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Persist)

	// Values not in the file keep their defaults
	assert.Equal(t, "/chat", cfg.Server.ChatPath)
	assert.Equal(t, configFile, cfg.ConfigFile)
}

func TestInitRejectsBadTimeout(t *testing.T) {
	viper.Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "settings.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server:\n  request_timeout: nonsense\n"), 0644))

	assert.Error(t, Init(configFile))
}

func TestInitFromEnvironment(t *testing.T) {
	viper.Reset()

	t.Setenv("PROMPTCANVAS_SERVER_URL", "https://env.example.com/api/v1")
	t.Setenv("PROMPTCANVAS_ENV_ID", "env-from-env")
	t.Setenv("PROMPTCANVAS_LOG_LEVEL", "warn")

	require.NoError(t, Init(""))
	cfg := Get()

	assert.Equal(t, "https://env.example.com/api/v1", cfg.Server.BaseURL)
	assert.Equal(t, "env-from-env", cfg.Server.EnvironmentID)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEndpointURLs(t *testing.T) {
	viper.Reset()

	require.NoError(t, Init(""))
	cfg := Get()

	assert.Equal(t, "http://127.0.0.1:8001/api/v1/chat", cfg.ChatURL())
	assert.Equal(t, "http://127.0.0.1:8001/api/v1/feedback", cfg.FeedbackURL())
	assert.Equal(t, "http://127.0.0.1:8001/api/v1/auth/token", cfg.AuthURL())
}

func TestBuildSettingsPath(t *testing.T) {
	viper.Reset()

	t.Run("should fall back to the default settings directory", func(t *testing.T) {
		assert.Equal(t, filepath.Join(".promptcanvas", "token.json"), BuildSettingsPath("token.json"))
	})

	t.Run("should honor an explicit config.path override", func(t *testing.T) {
		tmpDir := t.TempDir()
		viper.Set("config.path", tmpDir)
		defer viper.Reset()

		assert.Equal(t, filepath.Join(tmpDir, "token.json"), BuildSettingsPath("token.json"))
	})

	t.Run("should derive the directory from the config file in use", func(t *testing.T) {
		viper.Reset()
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "settings.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("show_thinking: true\n"), 0644))
		require.NoError(t, Init(configFile))

		assert.Equal(t, filepath.Join(tmpDir, "system.log"), BuildSettingsPath("system.log"))
	})
}
