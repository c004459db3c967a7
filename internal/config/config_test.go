package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 8*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Poll.Admin)
	assert.Equal(t, 3*time.Second, cfg.Poll.HR)
	assert.Equal(t, 5*time.Second, cfg.Poll.SOC)
	assert.Equal(t, 5*time.Second, cfg.Poll.User)
	assert.Equal(t, 3*time.Second, cfg.Poll.Files)
	assert.Equal(t, 10*time.Second, cfg.Reconcile.IntentTTL)
	assert.Equal(t, AuthStateMemory, cfg.AuthState.Backend)
	assert.Equal(t, "ztconsole:auth", cfg.Redis.Key)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	content := []byte(`
environment: production
api:
  baseurl: http://auth.internal:9000
  timeout: 3s
poll:
  admin: 1s
allowcorsorigins: http://a.example,http://b.example
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("ZTCONSOLE_POLL_SOC", "7s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "http://auth.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Second, cfg.Poll.Admin)
	assert.Equal(t, 7*time.Second, cfg.Poll.SOC)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowCORSOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{
			API:       APIConfig{BaseURL: "http://localhost:8000", Timeout: 8 * time.Second},
			Poll:      PollConfig{Admin: time.Second, HR: time.Second, SOC: time.Second, User: time.Second, Files: time.Second},
			Reconcile: ReconcileConfig{IntentTTL: 10 * time.Second},
			AuthState: AuthStateConfig{Backend: AuthStateMemory},
		}
	}

	tests := []struct {
		name     string
		modifyFn func(*AppConfig)
		errorMsg string
	}{
		{name: "valid", modifyFn: func(*AppConfig) {}},
		{name: "missing base url", modifyFn: func(c *AppConfig) { c.API.BaseURL = " " }, errorMsg: "api.baseurl is required"},
		{name: "zero timeout", modifyFn: func(c *AppConfig) { c.API.Timeout = 0 }, errorMsg: "api.timeout must be positive"},
		{name: "zero interval", modifyFn: func(c *AppConfig) { c.Poll.Files = 0 }, errorMsg: "poll.files must be positive"},
		{name: "negative jitter", modifyFn: func(c *AppConfig) { c.Poll.Jitter = -time.Second }, errorMsg: "poll.jitter must not be negative"},
		{name: "zero intent ttl", modifyFn: func(c *AppConfig) { c.Reconcile.IntentTTL = 0 }, errorMsg: "reconcile.intentttl must be positive"},
		{name: "unknown backend", modifyFn: func(c *AppConfig) { c.AuthState.Backend = "etcd" }, errorMsg: `unknown authstate.backend "etcd"`},
		{name: "postgres without dsn", modifyFn: func(c *AppConfig) { c.AuthState.Backend = AuthStatePostgres }, errorMsg: "postgres.dsn is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modifyFn(&cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
