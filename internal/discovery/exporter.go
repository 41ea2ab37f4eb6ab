// Package discovery mirrors the host state cache to MQTT using the Home
// Assistant discovery convention.
package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/printmon/internal/host"
	"github.com/joshp123/printmon/internal/logging"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Config holds the topic layout.
type Config struct {
	DiscoveryPrefix string
	TopicPrefix     string
}

// AvailabilityTopic is the bridge-level online/offline topic, also used as
// the MQTT last will.
func (c Config) AvailabilityTopic() string {
	return c.TopicPrefix + "/status"
}

func (c Config) configTopic(uniqueID string) string {
	return c.DiscoveryPrefix + "/sensor/" + ObjectID(uniqueID) + "/config"
}

func (c Config) stateTopic(entityID string) string {
	return c.TopicPrefix + "/" + entityID + "/state"
}

// ObjectID maps a unique id onto the characters discovery topics accept.
func ObjectID(uniqueID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, uniqueID)
}

type deviceConfig struct {
	Identifiers      []string `json:"identifiers"`
	Name             string   `json:"name"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	Model            string   `json:"model,omitempty"`
	SWVersion        string   `json:"sw_version,omitempty"`
	ConfigurationURL string   `json:"configuration_url,omitempty"`
}

type availability struct {
	Topic         string `json:"topic"`
	ValueTemplate string `json:"value_template,omitempty"`
}

type sensorConfig struct {
	Name              string         `json:"name"`
	UniqueID          string         `json:"unique_id"`
	ObjectID          string         `json:"object_id"`
	StateTopic        string         `json:"state_topic"`
	ValueTemplate     string         `json:"value_template"`
	Availability      []availability `json:"availability"`
	AvailabilityMode  string         `json:"availability_mode"`
	UnitOfMeasurement string         `json:"unit_of_measurement,omitempty"`
	DeviceClass       string         `json:"device_class,omitempty"`
	StateClass        string         `json:"state_class,omitempty"`
	Icon              string         `json:"icon,omitempty"`
	Options           []string       `json:"options,omitempty"`
	Device            deviceConfig   `json:"device"`
}

type statePayload struct {
	State       string `json:"state"`
	Available   bool   `json:"available"`
	LastUpdated string `json:"last_updated"`
}

// Exporter publishes discovery config once per entity and a state message
// on every change. Updates are coalesced per entity, latest wins.
type Exporter struct {
	pub    Publisher
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	pending   map[string]host.StateEvent
	announced map[string]bool
	published map[string]statePayload
	signal    chan struct{}
}

func NewExporter(pub Publisher, cfg Config, logger *zap.Logger) *Exporter {
	return &Exporter{
		pub:       pub,
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("discovery"),
		pending:   make(map[string]host.StateEvent),
		announced: make(map[string]bool),
		published: make(map[string]statePayload),
		signal:    make(chan struct{}, 1),
	}
}

// Run mirrors states until ctx is cancelled, then marks the bridge offline.
// Entities removed during shutdown keep their retained discovery config.
func (e *Exporter) Run(ctx context.Context, states *host.StateCache) error {
	unsubscribe := states.Subscribe(e.enqueue)
	defer unsubscribe()

	if err := e.pub.Publish(e.cfg.AvailabilityTopic(), true, []byte(PayloadOnline)); err != nil {
		e.logger.Warn("Publish availability failed", zap.Error(err))
	}
	for _, s := range states.List() {
		e.enqueue(host.StateEvent{State: s})
	}

	for {
		select {
		case <-ctx.Done():
			if err := e.pub.Publish(e.cfg.AvailabilityTopic(), true, []byte(PayloadOffline)); err != nil {
				e.logger.Warn("Publish availability failed", zap.Error(err))
			}
			return nil
		case <-e.signal:
			e.flush(ctx)
		}
	}
}

func (e *Exporter) enqueue(ev host.StateEvent) {
	e.mu.Lock()
	e.pending[ev.State.EntityID] = ev
	e.mu.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
}

func (e *Exporter) flush(ctx context.Context) {
	e.mu.Lock()
	batch := e.pending
	e.pending = make(map[string]host.StateEvent)
	e.mu.Unlock()

	for _, ev := range batch {
		if ev.Removed {
			if ctx.Err() == nil {
				e.remove(ev.State)
			}
			continue
		}
		e.publishState(ev.State)
	}
}

func (e *Exporter) publishState(s host.State) {
	e.mu.Lock()
	announced := e.announced[s.UniqueID]
	e.mu.Unlock()

	if !announced {
		payload, err := json.Marshal(e.sensorConfig(s))
		if err != nil {
			e.logger.Error("Encode discovery config failed", zap.String("entity_id", s.EntityID), zap.Error(err))
			return
		}
		if err := e.pub.Publish(e.cfg.configTopic(s.UniqueID), true, payload); err != nil {
			e.logger.Warn("Publish discovery config failed", zap.String("entity_id", s.EntityID), zap.Error(err))
			return
		}
		e.mu.Lock()
		e.announced[s.UniqueID] = true
		e.mu.Unlock()
	}

	msg := statePayload{
		State:       s.Formatted(),
		Available:   s.Available,
		LastUpdated: s.LastUpdated.UTC().Format(time.RFC3339),
	}
	e.mu.Lock()
	last, seen := e.published[s.EntityID]
	e.mu.Unlock()
	if seen && last == msg {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		e.logger.Error("Encode state failed", zap.String("entity_id", s.EntityID), zap.Error(err))
		return
	}
	if err := e.pub.Publish(e.cfg.stateTopic(s.EntityID), true, payload); err != nil {
		e.logger.Warn("Publish state failed", zap.String("entity_id", s.EntityID), zap.Error(err))
		return
	}
	e.mu.Lock()
	e.published[s.EntityID] = msg
	e.mu.Unlock()
}

// remove clears the retained config so the entity disappears downstream.
func (e *Exporter) remove(s host.State) {
	if err := e.pub.Publish(e.cfg.configTopic(s.UniqueID), true, nil); err != nil {
		e.logger.Warn("Clear discovery config failed", zap.String("entity_id", s.EntityID), zap.Error(err))
	}
	e.mu.Lock()
	delete(e.announced, s.UniqueID)
	delete(e.published, s.EntityID)
	e.mu.Unlock()
}

func (e *Exporter) sensorConfig(s host.State) sensorConfig {
	identifiers := make([]string, 0, len(s.Device.Identifiers))
	for _, id := range s.Device.Identifiers {
		identifiers = append(identifiers, id.Domain+"_"+id.ID)
	}
	if len(identifiers) == 0 {
		identifiers = append(identifiers, s.EntryID)
	}

	stateTopic := e.cfg.stateTopic(s.EntityID)
	return sensorConfig{
		Name:          s.Description.Name,
		UniqueID:      s.UniqueID,
		ObjectID:      strings.TrimPrefix(s.EntityID, "sensor."),
		StateTopic:    stateTopic,
		ValueTemplate: "{{ value_json.state }}",
		Availability: []availability{
			{Topic: e.cfg.AvailabilityTopic()},
			{Topic: stateTopic, ValueTemplate: "{{ 'online' if value_json.available else 'offline' }}"},
		},
		AvailabilityMode:  "all",
		UnitOfMeasurement: s.Description.Unit,
		DeviceClass:       s.Description.DeviceClass,
		StateClass:        s.Description.StateClass,
		Icon:              s.Description.Icon,
		Options:           s.Description.Options,
		Device: deviceConfig{
			Identifiers:      identifiers,
			Name:             s.Device.Name,
			Manufacturer:     s.Device.Manufacturer,
			Model:            s.Device.Model,
			SWVersion:        s.Device.SWVersion,
			ConfigurationURL: s.Device.ConfigurationURL,
		},
	}
}
