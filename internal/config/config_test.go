// ABOUTME: Tests for configuration loading, env expansion, and validation.
// ABOUTME: Uses temp files to exercise the YAML path end to end.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wagateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":3000", cfg.Server.HTTPAddr)
	assert.Equal(t, "./data/sessions", cfg.WhatsApp.StoreDir)
	assert.Equal(t, 10*time.Second, cfg.Sessions.DestroyTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.DedupeWindow)
	assert.Equal(t, 10000, cfg.Sessions.DedupeMaxSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
webhook:
  url: "https://hooks.example.com/wa"
  secret: "hunter2"
  timeout: "30s"
whatsapp:
  store_dir: "/var/lib/wagateway"
  qr_terminal: true
  send_rate: 2.5
  send_burst: 10
sessions:
  destroy_timeout: "5s"
  dedupe_window: "2m"
  dedupe_max_size: 500
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://hooks.example.com/wa", cfg.Webhook.URL)
	assert.Equal(t, "hunter2", cfg.Webhook.Secret)
	assert.Equal(t, 30*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "/var/lib/wagateway", cfg.WhatsApp.StoreDir)
	assert.True(t, cfg.WhatsApp.QRTerminal)
	assert.Equal(t, 2.5, cfg.WhatsApp.SendRate)
	assert.Equal(t, 10, cfg.WhatsApp.SendBurst)
	assert.Equal(t, 5*time.Second, cfg.Sessions.DestroyTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Sessions.DedupeWindow)
	assert.Equal(t, 500, cfg.Sessions.DedupeMaxSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
webhook:
  url: "https://hooks.example.com/wa"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.HTTPAddr, "unset fields fall back to defaults")
	assert.Equal(t, "https://hooks.example.com/wa", cfg.Webhook.URL)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.DedupeWindow)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_SECRET", "s3cret")
	path := writeConfig(t, `
webhook:
  url: "https://hooks.example.com/wa"
  secret: "${TEST_WEBHOOK_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Webhook.Secret)
}

func TestLoadUnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
webhook:
  url: "${DEFINITELY_NOT_SET_ANYWHERE_XYZ}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Webhook.URL)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
webhook:
  timeout: "not-a-duration"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.timeout")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("empty addr", func(t *testing.T) {
		cfg := Default()
		cfg.Server.HTTPAddr = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty store dir", func(t *testing.T) {
		cfg := Default()
		cfg.WhatsApp.StoreDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero send rate", func(t *testing.T) {
		cfg := Default()
		cfg.WhatsApp.SendRate = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log format", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Format = "xml"
		assert.Error(t, cfg.Validate())
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WEBHOOK_URL", "https://env.example.com/hook")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://env.example.com/hook", cfg.Webhook.URL)
}
