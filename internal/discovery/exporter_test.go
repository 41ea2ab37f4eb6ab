package discovery

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joshp123/printmon/internal/host"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type message struct {
	topic    string
	retained bool
	payload  string
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []message
}

func (r *recordingPublisher) Publish(topic string, retained bool, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message{topic: topic, retained: retained, payload: string(payload)})
	return nil
}

func (r *recordingPublisher) Close() {}

func (r *recordingPublisher) onTopic(topic string) []message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message
	for _, m := range r.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

var testConfig = Config{DiscoveryPrefix: "homeassistant", TopicPrefix: "printmon"}

func progressState(value any, available bool) host.State {
	return host.State{
		EntityID:  "sensor.mk4_progress",
		UniqueID:  "entry-1_job.progress",
		EntryID:   "entry-1",
		Value:     value,
		Available: available,
		Description: host.EntityDescription{
			Key:  "job.progress",
			Name: "Progress",
			Icon: "mdi:progress-clock",
			Unit: "%",
		},
		Device: host.DeviceInfo{
			Identifiers:  []host.DeviceIdentifier{{Domain: "prusalink", ID: "entry-1"}},
			Name:         "MK4",
			Manufacturer: "Prusa",
		},
	}
}

func TestExporterPublishesDiscoveryAndState(t *testing.T) {
	states := host.NewStateCache()
	states.Set(progressState(12.0, true))

	pub := &recordingPublisher{}
	exporter := NewExporter(pub, testConfig, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exporter.Run(ctx, states) }()

	configTopic := "homeassistant/sensor/entry-1_job_progress/config"
	stateTopic := "printmon/sensor.mk4_progress/state"
	require.Eventually(t, func() bool { return len(pub.onTopic(stateTopic)) == 1 }, time.Second, time.Millisecond)

	configs := pub.onTopic(configTopic)
	require.Len(t, configs, 1)
	assert.True(t, configs[0].retained)

	var cfg sensorConfig
	require.NoError(t, json.Unmarshal([]byte(configs[0].payload), &cfg))
	assert.Equal(t, "entry-1_job.progress", cfg.UniqueID)
	assert.Equal(t, "mk4_progress", cfg.ObjectID)
	assert.Equal(t, stateTopic, cfg.StateTopic)
	assert.Equal(t, "%", cfg.UnitOfMeasurement)
	assert.Equal(t, []string{"prusalink_entry-1"}, cfg.Device.Identifiers)
	assert.Equal(t, "printmon/status", cfg.Availability[0].Topic)

	var state statePayload
	require.NoError(t, json.Unmarshal([]byte(pub.onTopic(stateTopic)[0].payload), &state))
	assert.Equal(t, "12", state.State)
	assert.True(t, state.Available)

	states.Set(progressState(12.0, true))
	states.Set(progressState(nil, false))
	require.Eventually(t, func() bool { return len(pub.onTopic(stateTopic)) == 2 }, time.Second, time.Millisecond)
	require.NoError(t, json.Unmarshal([]byte(pub.onTopic(stateTopic)[1].payload), &state))
	assert.Equal(t, host.StateUnavailable, state.State)
	assert.False(t, state.Available)
	assert.Len(t, pub.onTopic(configTopic), 1, "config is announced once")

	states.Remove("sensor.mk4_progress")
	require.Eventually(t, func() bool { return len(pub.onTopic(configTopic)) == 2 }, time.Second, time.Millisecond)
	assert.Empty(t, pub.onTopic(configTopic)[1].payload)

	cancel()
	require.NoError(t, <-done)

	availability := pub.onTopic("printmon/status")
	require.Len(t, availability, 2)
	assert.Equal(t, PayloadOnline, availability[0].payload)
	assert.Equal(t, PayloadOffline, availability[1].payload)
}

func TestObjectID(t *testing.T) {
	assert.Equal(t, "abc-1_printer_telemetry_temp-bed", ObjectID("abc-1_printer.telemetry.temp-bed"))
}

func TestBrokerURL(t *testing.T) {
	tests := map[string]string{
		"mqtt.local":            "tcp://mqtt.local:1883",
		"mqtt.local:1884":       "tcp://mqtt.local:1884",
		"tcp://10.0.0.2":        "tcp://10.0.0.2:1883",
		"ssl://broker.example":  "ssl://broker.example:8883",
		"ssl://broker.ex:18883": "ssl://broker.ex:18883",
	}
	for in, want := range tests {
		got, err := brokerURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := brokerURL("")
	assert.Error(t, err)
}
