package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
schema_version: 1
core:
  http_addr: "127.0.0.1:8081"
prusalink:
  name: MK4
  host: http://192.168.1.60
  api_key: ${TEST_PRUSALINK_KEY}
  enabled_sensors:
    - printer.telemetry.temp-bed
mqtt:
  broker: tcp://localhost:1883
`

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_PRUSALINK_KEY", "secret")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultGRPCAddr, cfg.Core.GRPCAddr)
	assert.Equal(t, "127.0.0.1:8081", cfg.Core.HTTPAddr)
	assert.Equal(t, DefaultDashboardDir, cfg.Core.DashboardDir)
	assert.Equal(t, DefaultLogLevel, cfg.Core.LogLevel)
	assert.Equal(t, "secret", cfg.PrusaLink.APIKey)
	assert.Equal(t, []string{"printer.telemetry.temp-bed"}, cfg.PrusaLink.EnabledSensors)
	assert.Equal(t, DefaultMQTTDiscoveryPrefix, cfg.MQTT.DiscoveryPrefix)
	assert.Equal(t, DefaultMQTTTopicPrefix, cfg.MQTT.TopicPrefix)
	assert.Equal(t, map[string]bool{"prusalink": true}, EnabledPlugins(cfg))
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("TEST_PRUSALINK_KEY", "from-file")
	t.Setenv("PRINTMON_PRUSALINK_API_KEY", "from-env")
	t.Setenv("PRINTMON_GRPC_ADDR", "127.0.0.1:9999")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.PrusaLink.APIKey)
	assert.Equal(t, "127.0.0.1:9999", cfg.Core.GRPCAddr)
}

func TestParseKeepsBareDollar(t *testing.T) {
	t.Setenv("TEST_MQTT_USER", "printmon")
	t.Setenv("PRINTMON_PRUSALINK_API_KEY", "")
	cfg, err := Parse([]byte(`
schema_version: 1
prusalink:
  host: http://printer.local
  api_key: "ab$cd$$e"
mqtt:
  broker: tcp://localhost:1883
  username: ${TEST_MQTT_USER}
  password: "p$ss${TEST_MQTT_USER}"
`))
	require.NoError(t, err)
	assert.Equal(t, "ab$cd$$e", cfg.PrusaLink.APIKey)
	assert.Equal(t, "printmon", cfg.MQTT.Username)
	assert.Equal(t, "p$ssprintmon", cfg.MQTT.Password)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"schema":        "schema_version: 2\n",
		"missing host":  "schema_version: 1\nprusalink:\n  api_key: k\n",
		"missing key":   "schema_version: 1\nprusalink:\n  host: h\n",
		"unknown field": "schema_version: 1\nbogus: true\n",
		"mqtt broker":   "schema_version: 1\nmqtt:\n  username: u\n",
		"negative rate": "schema_version: 1\nprusalink:\n  host: h\n  api_key: k\n  requests_per_minute: -1\n",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("TEST_PRUSALINK_KEY=dotenv-key\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_PRUSALINK_KEY") })

	require.NoError(t, LoadEnv(envPath, filepath.Join(dir, "missing.env")))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sampleConfig), 0o600))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.PrusaLink.APIKey)
}

func TestReadSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("  abc123\n"), 0o600))

	got, err := ReadSecretFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}
