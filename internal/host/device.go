package host

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// DeviceIdentifier ties a device to an integration domain.
type DeviceIdentifier struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

// DeviceInfo is the device metadata an integration reports for its entities.
type DeviceInfo struct {
	Identifiers      []DeviceIdentifier `json:"identifiers"`
	Name             string             `json:"name"`
	Manufacturer     string             `json:"manufacturer,omitempty"`
	Model            string             `json:"model,omitempty"`
	SWVersion        string             `json:"sw_version,omitempty"`
	ConfigurationURL string             `json:"configuration_url,omitempty"`
}

// DeviceEntry is a registered device.
type DeviceEntry struct {
	ID      string     `json:"id"`
	EntryID string     `json:"entry_id"`
	Info    DeviceInfo `json:"info"`
}

// DeviceRegistry tracks one device per config entry.
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]DeviceEntry
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{devices: make(map[string]DeviceEntry)}
}

// GetOrCreate registers the device for entryID, or refreshes its metadata
// while keeping the existing device id.
func (r *DeviceRegistry) GetOrCreate(entryID string, info DeviceInfo) DeviceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.devices[entryID]
	if !ok {
		entry = DeviceEntry{ID: uuid.NewString(), EntryID: entryID}
	}
	entry.Info = info
	r.devices[entryID] = entry
	return entry
}

func (r *DeviceRegistry) Get(entryID string) (DeviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.devices[entryID]
	return entry, ok
}

func (r *DeviceRegistry) Remove(entryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, entryID)
}

// List returns devices sorted by name.
func (r *DeviceRegistry) List() []DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DeviceEntry, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info.Name < out[j].Info.Name })
	return out
}
