package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "TELEGRAM_BOT_TOKEN", "TELEGRAM_API_URL", "TELEGRAM_POLL_TIMEOUT_SEC", "WORKER_CONCURRENCY",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI", "GOOGLE_SCOPES",
		"DATABASE_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME_SEC", "DB_CONN_MAX_IDLE_SEC",
		"REDIS_URL", "ENCRYPTION_KEY", "HTTP_HOST", "PORT", "PENDING_TTL_HOURS", "SWEEP_INTERVAL_MIN",
		"REFRESH_SINGLE_FLIGHT", "REFRESH_LOCK", "FOLDER_LOCK", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/relay")
	t.Setenv("ENCRYPTION_KEY", "correct horse battery staple")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
	assert.Equal(t, 4, cfg.Telegram.WorkerConcurrency)
	assert.Equal(t, "http://localhost", cfg.Google.RedirectURI)
	assert.Len(t, cfg.Google.Scopes, 3)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL())
	assert.Equal(t, time.Hour, cfg.SweepInterval())
	assert.Equal(t, 30*time.Second, cfg.PollTimeout())
	assert.False(t, cfg.Concurrency.RefreshLock)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("GOOGLE_SCOPES", "openid, https://www.googleapis.com/auth/drive.file")
	t.Setenv("REFRESH_SINGLE_FLIGHT", "true")
	t.Setenv("FOLDER_LOCK", "1")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.Telegram.WorkerConcurrency)
	assert.Equal(t, []string{"openid", "https://www.googleapis.com/auth/drive.file"}, cfg.Google.Scopes)
	assert.True(t, cfg.Concurrency.RefreshSingleFlight)
	assert.True(t, cfg.Concurrency.FolderLock)
	assert.Equal(t, 8080, cfg.HTTP.Port, "unparsable value keeps the default")
}

func TestLoad_FileOverlaidByEnvironment(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  bot_token: from-file
  worker_concurrency: 2
google:
  client_id: file-client
pending:
  ttl_hours: 6
log:
  format: json
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GOOGLE_CLIENT_ID", "env-client")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Telegram.BotToken)
	assert.Equal(t, 2, cfg.Telegram.WorkerConcurrency)
	assert.Equal(t, "env-client", cfg.Google.ClientID)
	assert.Equal(t, 6*time.Hour, cfg.PendingTTL())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.HTTP.Port, "unset keys keep defaults")
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_ReportsAllMissing(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "DATABASE_URL", "ENCRYPTION_KEY"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate_Ranges(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("WORKER_CONCURRENCY", "0")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
	assert.Contains(t, err.Error(), "WORKER_CONCURRENCY")
}

func TestTokenKey(t *testing.T) {
	cfg := Default()
	cfg.Security.EncryptionKey = "secret one"

	k1, err := cfg.TokenKey()
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	k2, err := cfg.TokenKey()
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "derivation is deterministic")

	cfg.Security.EncryptionKey = "secret two"
	k3, err := cfg.TokenKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	cfg.Security.EncryptionKey = ""
	_, err = cfg.TokenKey()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "context_key", "1:2:-")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"context_key":"1:2:-"`)
}
