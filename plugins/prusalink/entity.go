package prusalink

import (
	"github.com/joshp123/printmon/internal/host"
)

// Domain is the integration domain used for entries and device identifiers.
const Domain = "prusalink"

type payloadSource[T any] interface {
	Data() (T, bool)
	LastUpdateSuccess() bool
}

// sensorEntity projects one description over one coordinator's payload.
type sensorEntity[T any] struct {
	entryID string
	device  host.DeviceInfo
	desc    SensorDescription[T]
	source  payloadSource[T]
}

func newSensorEntity[T any](entryID string, device host.DeviceInfo, desc SensorDescription[T], source payloadSource[T]) *sensorEntity[T] {
	return &sensorEntity[T]{entryID: entryID, device: device, desc: desc, source: source}
}

func (e *sensorEntity[T]) UniqueID() string {
	return e.entryID + "_" + e.desc.Key
}

func (e *sensorEntity[T]) Description() host.EntityDescription {
	return e.desc.EntityDescription
}

func (e *sensorEntity[T]) Device() host.DeviceInfo {
	return e.device
}

func (e *sensorEntity[T]) State() (any, bool) {
	if !e.source.LastUpdateSuccess() {
		return nil, false
	}
	data, ok := e.source.Data()
	if !ok || !e.desc.available(data) {
		return nil, false
	}
	value := e.desc.Value(data)
	if value == nil {
		return nil, false
	}
	return value, true
}

func deviceInfo(entry host.ConfigEntry, version *VersionInfo) host.DeviceInfo {
	info := host.DeviceInfo{
		Identifiers:      []host.DeviceIdentifier{{Domain: Domain, ID: entry.EntryID}},
		Name:             entry.Title,
		Manufacturer:     "Prusa",
		ConfigurationURL: entry.Data.Host,
	}
	if version != nil {
		info.Model = version.Original
		info.SWVersion = version.Server
	}
	return info
}
