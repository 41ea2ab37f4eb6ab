package core

import (
	"fmt"
	"regexp"
)

var pluginIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]+$`)

// ValidatePlugins checks the plugin contract at startup: well-formed unique
// ids that match their manifests, and a display name for the registry.
func ValidatePlugins(plugins []Plugin) error {
	seen := make(map[string]bool, len(plugins))
	for _, plugin := range plugins {
		id := plugin.ID()
		if id == "" {
			return fmt.Errorf("plugin id is empty")
		}
		if !pluginIDPattern.MatchString(id) {
			return fmt.Errorf("plugin id %q does not match %s", id, pluginIDPattern)
		}

		manifest := plugin.Manifest()
		if manifest.PluginID != id {
			return fmt.Errorf("plugin id mismatch: id=%q manifest=%q", id, manifest.PluginID)
		}
		if manifest.DisplayName == "" {
			return fmt.Errorf("plugin %s: display name is empty", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate plugin id: %s", id)
		}
		seen[id] = true
	}
	return nil
}
