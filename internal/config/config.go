package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion              = 1
	DefaultPath                = "/etc/printmon/config.yaml"
	DefaultGRPCAddr            = "0.0.0.0:9000"
	DefaultHTTPAddr            = "0.0.0.0:8080"
	DefaultDashboardDir        = "/var/lib/printmon/dashboards"
	DefaultLogLevel            = "info"
	DefaultMQTTDiscoveryPrefix = "homeassistant"
	DefaultMQTTTopicPrefix     = "printmon"
)

// Config is the on-disk daemon configuration.
type Config struct {
	SchemaVersion int              `yaml:"schema_version"`
	Core          *CoreConfig      `yaml:"core"`
	PrusaLink     *PrusaLinkConfig `yaml:"prusalink"`
	MQTT          *MQTTConfig      `yaml:"mqtt"`
}

type CoreConfig struct {
	GRPCAddr           string   `yaml:"grpc_addr"`
	HTTPAddr           string   `yaml:"http_addr"`
	DashboardDir       string   `yaml:"dashboard_dir"`
	LogLevel           string   `yaml:"log_level"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// PrusaLinkConfig is the persisted result of the PrusaLink setup flow.
type PrusaLinkConfig struct {
	EntryID           string   `yaml:"entry_id"`
	Name              string   `yaml:"name"`
	Host              string   `yaml:"host"`
	APIKey            string   `yaml:"api_key"`
	APIKeyFile        string   `yaml:"api_key_file"`
	EnabledSensors    []string `yaml:"enabled_sensors"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	PasswordFile    string `yaml:"password_file"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	TopicPrefix     string `yaml:"topic_prefix"`
}

// LoadEnv loads dotenv files into the process environment. Missing files are
// skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env %s: %w", file, err)
		}
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references. Bare $ is kept, so inline secrets
// containing $ survive.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// Load parses the YAML config file, applies defaults and env overrides, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read. ${VAR} references are expanded first.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Core == nil {
		cfg.Core = &CoreConfig{}
	}
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.DashboardDir == "" {
		cfg.Core.DashboardDir = DefaultDashboardDir
	}
	if cfg.Core.LogLevel == "" {
		cfg.Core.LogLevel = DefaultLogLevel
	}

	if cfg.MQTT != nil {
		if cfg.MQTT.DiscoveryPrefix == "" {
			cfg.MQTT.DiscoveryPrefix = DefaultMQTTDiscoveryPrefix
		}
		if cfg.MQTT.TopicPrefix == "" {
			cfg.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if value := os.Getenv("PRINTMON_GRPC_ADDR"); value != "" {
		cfg.Core.GRPCAddr = value
	}
	if value := os.Getenv("PRINTMON_HTTP_ADDR"); value != "" {
		cfg.Core.HTTPAddr = value
	}
	if value := os.Getenv("PRINTMON_LOG_LEVEL"); value != "" {
		cfg.Core.LogLevel = value
	}
	if cfg.PrusaLink != nil {
		if value := os.Getenv("PRINTMON_PRUSALINK_API_KEY"); value != "" {
			cfg.PrusaLink.APIKey = value
		}
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}

	if cfg.Core == nil {
		return fmt.Errorf("core config is required")
	}
	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}

	if p := cfg.PrusaLink; p != nil {
		if strings.TrimSpace(p.Host) == "" {
			return fmt.Errorf("prusalink.host is required")
		}
		if strings.TrimSpace(p.APIKey) == "" && strings.TrimSpace(p.APIKeyFile) == "" {
			return fmt.Errorf("prusalink.api_key or prusalink.api_key_file is required")
		}
		if p.RequestsPerMinute < 0 {
			return fmt.Errorf("prusalink.requests_per_minute must not be negative")
		}
	}

	if m := cfg.MQTT; m != nil {
		if strings.TrimSpace(m.Broker) == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
	}

	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.PrusaLink != nil {
		enabled["prusalink"] = true
	}
	return enabled
}

// ReadSecretFile returns the trimmed contents of a secret file.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
