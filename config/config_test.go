package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
log_level: debug
gateway:
  address: 127.0.0.1:9090
  miss_status: 404
  drain_timeout: 30s
  rate_limit: 100
  rate_burst: 20
services:
  - id: kyc.Kyc
    name: kyc
    endpoints: ["localhost:50051"]
  - id: ""
    name: gate
    endpoints: ["127.0.0.1:1"]
etcd:
  endpoints: ["127.0.0.1:2379"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, "127.0.0.1:9090", c.Gateway.Address)
	require.Equal(t, 404, c.Gateway.MissStatus)
	require.Equal(t, 30*time.Second, c.Gateway.DrainTimeout)
	require.Equal(t, 100.0, c.Gateway.RateLimit)
	require.Equal(t, 20, c.Gateway.RateBurst)
	require.Len(t, c.Services, 2)
	require.Equal(t, "kyc.Kyc", c.Services[0].ID)
	require.Equal(t, []string{"localhost:50051"}, c.Services[0].Endpoints)
	require.Equal(t, "", c.Services[1].ID)
	require.Equal(t, []string{"127.0.0.1:2379"}, c.Etcd.Endpoints)
	require.Equal(t, "/yoroi", c.Etcd.Prefix)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	require.Equal(t, "info", c.LogLevel)
	require.Equal(t, "[::1]:8080", c.Gateway.Address)
	require.Equal(t, 200, c.Gateway.MissStatus)
	require.Zero(t, c.Gateway.DrainTimeout)
	require.Equal(t, 10*time.Second, c.Gateway.DialTimeout)
	require.Equal(t, "kyc.Kyc", c.Kyc.AnnounceID)
	require.Empty(t, c.Services)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("YOROI_GATEWAY_ADDRESS", "127.0.0.1:7000")
	t.Setenv("YOROI_LOG_LEVEL", "warn")

	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", c.Gateway.Address)
	require.Equal(t, "warn", c.LogLevel)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway: [unterminated"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		return c
	}

	cases := map[string]func(c *Config){
		"negative drain":  func(c *Config) { c.Gateway.DrainTimeout = -time.Second },
		"negative delay":  func(c *Config) { c.Gateway.ShutdownDelay = -time.Second },
		"bad status":      func(c *Config) { c.Gateway.MissStatus = 42 },
		"empty address":   func(c *Config) { c.Gateway.Address = "" },
		"burst":           func(c *Config) { c.Gateway.RateLimit = 5 },
		"bad endpoint":    func(c *Config) { c.Services = []Service{{ID: "svc", Endpoints: []string{"nope"}}} },
		"short aes key":   func(c *Config) { c.Secret.AESKey = "short" },
		"short aes iv":    func(c *Config) { c.Secret.AESIV = "short" },
		"negative etcd":   func(c *Config) { c.Etcd.DialTimeout = -1 },
		"negative limit":  func(c *Config) { c.Gateway.RateLimit = -1 },
		"negative dialto": func(c *Config) { c.Gateway.DialTimeout = -1 },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		require.Error(t, c.Validate(), name)
	}
	require.NoError(t, valid().Validate())
}
