package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_LegacyFormat(t *testing.T) {
	path := writeConfig(t, "riemann-mysql.conf", `
# replica agent
mysql_host = db1.internal
mysql_port = 3307
mysql_user = monitor
mysql_password = s3cret
riemann_host = riemann.internal
riemann_proto = udp
interval = 10
delay = 1.5
hostname = db1.example.org
tags = prod replica eu-west
`)

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, "db1.internal", cfg.MySQL.Host)
	assert.Equal(t, 3307, cfg.MySQL.Port)
	assert.Equal(t, "monitor", cfg.MySQL.User)
	assert.Equal(t, "s3cret", cfg.MySQL.Password)
	assert.Equal(t, "db1.internal:3307", cfg.MySQL.Addr())
	assert.Equal(t, "riemann.internal", cfg.Riemann.Host)
	assert.Equal(t, 5555, cfg.Riemann.Port)
	assert.Equal(t, ProtoUDP, cfg.Riemann.Proto)
	assert.Equal(t, "riemann.internal", cfg.Riemann.ServerName)
	assert.Equal(t, 10, cfg.Agent.Interval)
	assert.Equal(t, 10*time.Second, cfg.Agent.IntervalDuration())
	assert.InDelta(t, 1.5, cfg.Agent.Delay, 1e-9)
	assert.Equal(t, "db1.example.org", cfg.Agent.Hostname)
	assert.Equal(t, []string{"prod", "replica", "eu-west"}, cfg.Agent.Tags)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "agent.yaml", `
mysql_host: db2
riemann_proto: tls
riemann_server_name: riemann.example.org
riemann_ack_timeout: 3s
tags: [a, b]
log_format: console
`)

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, "db2", cfg.MySQL.Host)
	assert.Equal(t, ProtoTLS, cfg.Riemann.Proto)
	assert.Equal(t, "riemann.example.org", cfg.Riemann.ServerName)
	assert.Equal(t, 3*time.Second, cfg.Riemann.AckTimeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Agent.Tags)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.conf")

	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.MySQL.Host)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.Equal(t, "root", cfg.MySQL.User)
	assert.Equal(t, ProtoTCP, cfg.Riemann.Proto)
	assert.True(t, cfg.Riemann.Ack)
	assert.Equal(t, 5*time.Second, cfg.Riemann.AckTimeout)
	assert.Equal(t, 30, cfg.Agent.Interval)
	assert.InDelta(t, 2.0, cfg.Agent.Delay, 1e-9)
	assert.Empty(t, cfg.Agent.Tags)
	assert.Equal(t, "info", cfg.Logger.Level)

	_, err = LoadConfig(path, true)
	assert.Error(t, err, "explicit path must exist")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "riemann-mysql.conf", "interval = 10\nmysql_host = db1\n")
	t.Setenv("RIEMANN_MYSQL_INTERVAL", "15")
	t.Setenv("RIEMANN_MYSQL_MYSQL_PASSWORD", "from-env")

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Agent.Interval)
	assert.Equal(t, "db1", cfg.MySQL.Host)
	assert.Equal(t, "from-env", cfg.MySQL.Password)
}

func TestLoadConfig_TLSMaterialFromEnv(t *testing.T) {
	path := writeConfig(t, "riemann-mysql.conf", "riemann_proto = tls\n")
	t.Setenv("RIEMANN_MYSQL_CA_DATA", "-----BEGIN CERTIFICATE-----")

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("-----BEGIN CERTIFICATE-----"), cfg.Riemann.CA)
	assert.Nil(t, cfg.Riemann.Cert)
}

func TestLoadConfig_MissingTLSFile(t *testing.T) {
	path := writeConfig(t, "riemann-mysql.conf", "riemann_ca_file = /nonexistent/ca.pem\n")

	_, err := LoadConfig(path, true)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			MySQL:   MySQLConfig{Port: 3306},
			Riemann: RiemannConfig{Port: 5555, Proto: ProtoTCP, Ack: true, AckTimeout: time.Second},
			Agent:   AgentConfig{Interval: 5, Delay: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero interval", func(c *Config) { c.Agent.Interval = 0 }, "interval must be positive"},
		{"negative delay", func(c *Config) { c.Agent.Delay = -1 }, "delay must not be negative"},
		{"too many tags", func(c *Config) { c.Agent.Tags = make([]string, 33) }, "too many tags"},
		{"bad mysql port", func(c *Config) { c.MySQL.Port = 70000 }, "invalid mysql_port"},
		{"bad riemann port", func(c *Config) { c.Riemann.Port = 0 }, "invalid riemann_port"},
		{"bad proto", func(c *Config) { c.Riemann.Proto = "http" }, "unsupported riemann_proto"},
		{"cert without key", func(c *Config) { c.Riemann.Cert = []byte("x") }, "set together"},
		{"ack without timeout", func(c *Config) { c.Riemann.AckTimeout = 0 }, "riemann_ack_timeout"},
		{"no ack no timeout", func(c *Config) { c.Riemann.Ack = false; c.Riemann.AckTimeout = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	c := Config{}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must be positive")
	assert.Contains(t, err.Error(), "invalid mysql_port")
	assert.Contains(t, err.Error(), "unsupported riemann_proto")
}

func TestConfig_Redacted(t *testing.T) {
	c := Config{
		MySQL:   MySQLConfig{Password: "s3cret"},
		Riemann: RiemannConfig{Key: []byte("PRIVATE")},
	}

	r := c.Redacted()
	assert.Equal(t, "xxxxx", r.MySQL.Password)
	assert.Equal(t, []byte("xxxxx"), r.Riemann.Key)
	assert.Equal(t, "s3cret", c.MySQL.Password, "original untouched")
}
