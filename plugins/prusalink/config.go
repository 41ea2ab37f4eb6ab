package prusalink

import (
	"fmt"
	"strings"

	"github.com/joshp123/printmon/internal/config"
	"github.com/joshp123/printmon/internal/host"
)

const defaultRequestsPerMinute = 60

// Config defines runtime configuration for one PrusaLink entry.
type Config struct {
	EntryID           string
	Name              string
	Host              string
	APIKey            string
	EnabledSensors    []string
	RequestsPerMinute int
}

func ConfigFromFile(cfg *config.PrusaLinkConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("prusalink config is required")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.APIKeyFile != "" {
		secret, err := config.ReadSecretFile(cfg.APIKeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("read prusalink api key file: %w", err)
		}
		apiKey = secret
	}
	if apiKey == "" {
		return Config{}, fmt.Errorf("prusalink api key is required")
	}

	hostURL := NormalizeHost(cfg.Host)
	if hostURL == "" {
		return Config{}, fmt.Errorf("prusalink host is required")
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = hostnameOf(hostURL)
	}

	rpm := cfg.RequestsPerMinute
	if rpm == 0 {
		rpm = defaultRequestsPerMinute
	}

	entryID := strings.TrimSpace(cfg.EntryID)
	if entryID == "" {
		entryID = host.NewEntryID(Domain, hostURL)
	}

	return Config{
		EntryID:           entryID,
		Name:              name,
		Host:              hostURL,
		APIKey:            apiKey,
		EnabledSensors:    append([]string(nil), cfg.EnabledSensors...),
		RequestsPerMinute: rpm,
	}, nil
}

// String omits the API key.
func (c Config) String() string {
	return fmt.Sprintf("prusalink entry %s (%s)", c.EntryID, c.Host)
}

func (c Config) entryData() host.EntryData {
	return host.EntryData{Name: c.Name, Host: c.Host, APIKey: c.APIKey}
}

func (c Config) enabledOverrides() map[string]bool {
	enabled := make(map[string]bool, len(c.EnabledSensors))
	for _, key := range c.EnabledSensors {
		enabled[strings.TrimSpace(key)] = true
	}
	return enabled
}
