// Package host models the plugin host: configured entries, the device and
// entity registries, the entity state cache and the polling coordinator that
// feeds them.
package host

import (
	"github.com/google/uuid"
)

// EntryData is what a setup flow collects for one configured integration.
type EntryData struct {
	Name   string `json:"name" yaml:"name"`
	Host   string `json:"host" yaml:"host"`
	APIKey string `json:"api_key" yaml:"api_key"`
}

// ConfigEntry is one configured integration instance. It is immutable once
// created.
type ConfigEntry struct {
	EntryID string
	Domain  string
	Title   string
	Data    EntryData
}

// NewEntryID derives a stable entry id from domain and host so unique ids
// survive restarts of a config-file driven daemon.
func NewEntryID(domain, host string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(domain+"|"+host)).String()
}

// NewConfigEntry builds an entry, deriving the id when entryID is empty.
func NewConfigEntry(domain, entryID, title string, data EntryData) ConfigEntry {
	if entryID == "" {
		entryID = NewEntryID(domain, data.Host)
	}
	if title == "" {
		title = data.Name
	}
	return ConfigEntry{
		EntryID: entryID,
		Domain:  domain,
		Title:   title,
		Data:    data,
	}
}
