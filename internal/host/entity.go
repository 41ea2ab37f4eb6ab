package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// EntityDescription is the static metadata of a sensor entity.
type EntityDescription struct {
	Key              string   `json:"key"`
	Name             string   `json:"name,omitempty"`
	Icon             string   `json:"icon,omitempty"`
	Unit             string   `json:"unit_of_measurement,omitempty"`
	DeviceClass      string   `json:"device_class,omitempty"`
	StateClass       string   `json:"state_class,omitempty"`
	Options          []string `json:"options,omitempty"`
	EnabledByDefault bool     `json:"enabled_by_default"`
}

// Entity is a sensor exposed by an integration.
type Entity interface {
	UniqueID() string
	Description() EntityDescription
	Device() DeviceInfo
	// State returns the current value (float64, string, time.Time) and
	// whether the entity is available. Unavailable entities return nil.
	State() (any, bool)
}

// RegistryEntry is the registry record of an entity.
type RegistryEntry struct {
	EntityID    string            `json:"entity_id"`
	UniqueID    string            `json:"unique_id"`
	EntryID     string            `json:"entry_id"`
	Platform    string            `json:"platform"`
	DeviceID    string            `json:"device_id"`
	Disabled    bool              `json:"disabled"`
	Description EntityDescription `json:"description"`
}

// EntityRegistry assigns entity ids and enforces unique ids.
type EntityRegistry struct {
	mu         sync.RWMutex
	byUnique   map[string]RegistryEntry
	byEntityID map[string]string
}

func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{
		byUnique:   make(map[string]RegistryEntry),
		byEntityID: make(map[string]string),
	}
}

// Register records an entity. The entity id is sensor.<slug(device name +
// entity name)> with a numeric suffix on collision.
func (r *EntityRegistry) Register(entryID, platform string, device DeviceEntry, e Entity, enabled bool) (RegistryEntry, error) {
	uniqueID := e.UniqueID()
	if uniqueID == "" {
		return RegistryEntry{}, fmt.Errorf("entity unique id is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUnique[uniqueID]; ok {
		return RegistryEntry{}, fmt.Errorf("duplicate entity unique id: %s", uniqueID)
	}

	desc := e.Description()
	base := "sensor." + Slugify(strings.TrimSpace(device.Info.Name+" "+desc.Name))
	entityID := base
	for n := 2; ; n++ {
		if _, taken := r.byEntityID[entityID]; !taken {
			break
		}
		entityID = fmt.Sprintf("%s_%d", base, n)
	}

	entry := RegistryEntry{
		EntityID:    entityID,
		UniqueID:    uniqueID,
		EntryID:     entryID,
		Platform:    platform,
		DeviceID:    device.ID,
		Disabled:    !enabled,
		Description: desc,
	}
	r.byUnique[uniqueID] = entry
	r.byEntityID[entityID] = uniqueID
	return entry, nil
}

func (r *EntityRegistry) ByUniqueID(uniqueID string) (RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byUnique[uniqueID]
	return entry, ok
}

func (r *EntityRegistry) ByEntityID(entityID string) (RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uniqueID, ok := r.byEntityID[entityID]
	if !ok {
		return RegistryEntry{}, false
	}
	return r.byUnique[uniqueID], true
}

// RemoveEntry drops every entity of a config entry and returns them.
func (r *EntityRegistry) RemoveEntry(entryID string) []RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []RegistryEntry
	for uniqueID, entry := range r.byUnique {
		if entry.EntryID != entryID {
			continue
		}
		delete(r.byUnique, uniqueID)
		delete(r.byEntityID, entry.EntityID)
		removed = append(removed, entry)
	}
	sortEntries(removed)
	return removed
}

// List returns all entities sorted by entity id.
func (r *EntityRegistry) List() []RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RegistryEntry, 0, len(r.byUnique))
	for _, entry := range r.byUnique {
		out = append(out, entry)
	}
	sortEntries(out)
	return out
}

func sortEntries(entries []RegistryEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntityID < entries[j].EntityID })
}

// Slugify lowercases s and collapses runs of anything that is not a letter or
// digit into single underscores.
func Slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
