package host

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/joshp123/printmon/internal/logging"
)

// Host owns the loaded config entries and everything registered for them.
type Host struct {
	logger   *zap.Logger
	Devices  *DeviceRegistry
	Entities *EntityRegistry
	States   *StateCache

	mu      sync.RWMutex
	entries map[string]ConfigEntry
	bound   map[string]Entity
}

func New(logger *zap.Logger) *Host {
	return &Host{
		logger:   logging.OrNop(logger).Named("host"),
		Devices:  NewDeviceRegistry(),
		Entities: NewEntityRegistry(),
		States:   NewStateCache(),
		entries:  make(map[string]ConfigEntry),
		bound:    make(map[string]Entity),
	}
}

// AddEntry loads a config entry.
func (h *Host) AddEntry(entry ConfigEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[entry.EntryID]; ok {
		return fmt.Errorf("%w: %s", ErrEntryExists, entry.EntryID)
	}
	h.entries[entry.EntryID] = entry
	h.logger.Info("Config entry loaded",
		zap.String("entry_id", entry.EntryID),
		zap.String("domain", entry.Domain),
		zap.String("title", entry.Title))
	return nil
}

func (h *Host) Entry(entryID string) (ConfigEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.entries[entryID]
	return entry, ok
}

// Entries returns loaded entries sorted by title.
func (h *Host) Entries() []ConfigEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ConfigEntry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// AddEntities registers the device and entities of an entry. enabled
// overrides EnabledByDefault per description key.
func (h *Host) AddEntities(entryID, platform string, device DeviceInfo, entities []Entity, enabled map[string]bool) ([]RegistryEntry, error) {
	if _, ok := h.Entry(entryID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}

	dev := h.Devices.GetOrCreate(entryID, device)

	out := make([]RegistryEntry, 0, len(entities))
	for _, e := range entities {
		desc := e.Description()
		on := desc.EnabledByDefault
		if override, ok := enabled[desc.Key]; ok {
			on = override
		}

		reg, err := h.Entities.Register(entryID, platform, dev, e, on)
		if err != nil {
			return out, err
		}

		h.mu.Lock()
		h.bound[reg.UniqueID] = e
		h.mu.Unlock()

		out = append(out, reg)
	}
	return out, nil
}

// WriteState pushes the entity's current state into the cache. Disabled
// and unknown entities are skipped.
func (h *Host) WriteState(e Entity) {
	reg, ok := h.Entities.ByUniqueID(e.UniqueID())
	if !ok || reg.Disabled {
		return
	}

	value, available := e.State()
	if !available {
		value = nil
	}

	h.States.Set(State{
		EntityID:    reg.EntityID,
		UniqueID:    reg.UniqueID,
		EntryID:     reg.EntryID,
		Value:       value,
		Available:   available,
		Description: reg.Description,
		Device:      e.Device(),
	})
}

// WriteEntryStates refreshes the cached state of every entity of an entry.
func (h *Host) WriteEntryStates(entryID string) {
	for _, reg := range h.Entities.List() {
		if reg.EntryID != entryID {
			continue
		}
		h.mu.RLock()
		e := h.bound[reg.UniqueID]
		h.mu.RUnlock()
		if e != nil {
			h.WriteState(e)
		}
	}
}

// UnloadEntry removes an entry with its device, entities and states.
func (h *Host) UnloadEntry(entryID string) error {
	h.mu.Lock()
	entry, ok := h.entries[entryID]
	delete(h.entries, entryID)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}

	removed := h.Entities.RemoveEntry(entryID)
	h.mu.Lock()
	for _, reg := range removed {
		delete(h.bound, reg.UniqueID)
	}
	h.mu.Unlock()

	for _, reg := range removed {
		h.States.Remove(reg.EntityID)
	}
	h.Devices.Remove(entryID)

	h.logger.Info("Config entry unloaded",
		zap.String("entry_id", entryID),
		zap.String("title", entry.Title),
		zap.Int("entities", len(removed)))
	return nil
}
