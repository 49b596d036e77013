package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every FITFLOW_ env var that Load() reads.
var allConfigKeys = []string{
	"FITFLOW_LISTEN_ADDR",
	"FITFLOW_DB_PATH",
	"FITFLOW_SECRET_KEY",
	"FITFLOW_POLL_INTERVAL",
	"FITFLOW_HTTP_TIMEOUT",
	"FITFLOW_FLOWS_PATH",
	"FITFLOW_API_RATE",
}

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// isolateConfigEnv saves and unsets all FITFLOW_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FITFLOW_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("FITFLOW_DB_PATH", "/tmp/test.db")
	t.Setenv("FITFLOW_SECRET_KEY", testKeyHex)
	t.Setenv("FITFLOW_POLL_INTERVAL", "10m")
	t.Setenv("FITFLOW_HTTP_TIMEOUT", "5s")
	t.Setenv("FITFLOW_FLOWS_PATH", "/etc/fitflow/flows.toml")
	t.Setenv("FITFLOW_API_RATE", "0.5")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 10*time.Minute, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "/etc/fitflow/flows.toml", cfg.FlowsPath)
	assert.InDelta(t, 0.5, cfg.APIRate, 1e-9)
	require.True(t, cfg.HasSecretKey())
	assert.Equal(t, byte(0x1f), cfg.SecretKey[31])
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1880", cfg.ListenAddr)
	assert.Equal(t, "fitflow.db", cfg.DBPath)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "flows.toml", cfg.FlowsPath)
	assert.InDelta(t, 2.0, cfg.APIRate, 1e-9)
	assert.False(t, cfg.HasSecretKey())
	assert.Nil(t, cfg.SecretKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "bad duration", key: "FITFLOW_POLL_INTERVAL", value: "not-a-duration", wantErr: "POLL_INTERVAL"},
		{name: "zero interval", key: "FITFLOW_POLL_INTERVAL", value: "0s", wantErr: "must be positive"},
		{name: "negative timeout", key: "FITFLOW_HTTP_TIMEOUT", value: "-1s", wantErr: "must be positive"},
		{name: "negative rate", key: "FITFLOW_API_RATE", value: "-1", wantErr: "must not be negative"},
		{name: "non-hex key", key: "FITFLOW_SECRET_KEY", value: strings.Repeat("z", 64), wantErr: "not valid hex"},
		{name: "short key", key: "FITFLOW_SECRET_KEY", value: "abcd", wantErr: "must be 64 hex characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
