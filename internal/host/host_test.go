package host

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntity struct {
	uniqueID  string
	desc      EntityDescription
	device    DeviceInfo
	value     any
	available bool
}

func (f *fakeEntity) UniqueID() string               { return f.uniqueID }
func (f *fakeEntity) Description() EntityDescription { return f.desc }
func (f *fakeEntity) Device() DeviceInfo             { return f.device }
func (f *fakeEntity) State() (any, bool)             { return f.value, f.available }

func newFake(entryID, key, name string, enabled bool) *fakeEntity {
	return &fakeEntity{
		uniqueID:  entryID + "_" + key,
		desc:      EntityDescription{Key: key, Name: name, EnabledByDefault: enabled},
		device:    DeviceInfo{Name: "Office MK4"},
		value:     1.5,
		available: true,
	}
}

func TestNewConfigEntryDerivesStableID(t *testing.T) {
	data := EntryData{Name: "MK4", Host: "http://printer.local", APIKey: "k"}

	a := NewConfigEntry("prusalink", "", "", data)
	b := NewConfigEntry("prusalink", "", "", data)
	assert.Equal(t, a.EntryID, b.EntryID)
	assert.Equal(t, "MK4", a.Title)

	other := NewConfigEntry("prusalink", "", "", EntryData{Host: "http://other.local"})
	assert.NotEqual(t, a.EntryID, other.EntryID)

	fixed := NewConfigEntry("prusalink", "fixed-id", "Title", data)
	assert.Equal(t, "fixed-id", fixed.EntryID)
	assert.Equal(t, "Title", fixed.Title)
}

func TestHostEntityLifecycle(t *testing.T) {
	h := New(nil)
	entry := NewConfigEntry("prusalink", "entry1", "Office MK4", EntryData{Host: "http://p"})
	require.NoError(t, h.AddEntry(entry))
	assert.ErrorIs(t, h.AddEntry(entry), ErrEntryExists)

	state := newFake("entry1", "printer.state", "State", true)
	bed := newFake("entry1", "printer.telemetry.temp-bed", "Heatbed", false)
	nozzle := newFake("entry1", "printer.telemetry.temp-nozzle", "Nozzle Temperature", false)

	regs, err := h.AddEntities("entry1", "sensor", DeviceInfo{Name: "Office MK4"},
		[]Entity{state, bed, nozzle}, map[string]bool{"printer.telemetry.temp-nozzle": true})
	require.NoError(t, err)
	require.Len(t, regs, 3)

	assert.Equal(t, "sensor.office_mk4_state", regs[0].EntityID)
	assert.Equal(t, "entry1_printer.state", regs[0].UniqueID)
	assert.False(t, regs[0].Disabled)
	assert.True(t, regs[1].Disabled)
	assert.False(t, regs[2].Disabled)

	h.WriteEntryStates("entry1")

	got, ok := h.States.Get("sensor.office_mk4_state")
	require.True(t, ok)
	assert.Equal(t, "1.5", got.Formatted())
	assert.Equal(t, "Office MK4 State", got.FriendlyName())

	_, ok = h.States.Get("sensor.office_mk4_heatbed")
	assert.False(t, ok, "disabled entity must not be written")
	_, ok = h.States.Get("sensor.office_mk4_nozzle_temperature")
	assert.True(t, ok)

	_, ok = h.Devices.Get("entry1")
	assert.True(t, ok)

	require.NoError(t, h.UnloadEntry("entry1"))
	assert.Empty(t, h.States.List())
	assert.Empty(t, h.Entities.List())
	assert.Empty(t, h.Devices.List())
	assert.ErrorIs(t, h.UnloadEntry("entry1"), ErrEntryNotFound)
}

func TestAddEntitiesRequiresEntry(t *testing.T) {
	h := New(nil)
	_, err := h.AddEntities("missing", "sensor", DeviceInfo{}, nil, nil)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestEntityRegistryUniqueness(t *testing.T) {
	r := NewEntityRegistry()
	dev := DeviceEntry{ID: "dev", Info: DeviceInfo{Name: "MK4"}}

	first, err := r.Register("e1", "sensor", dev, newFake("e1", "k", "Progress", true), true)
	require.NoError(t, err)
	assert.Equal(t, "sensor.mk4_progress", first.EntityID)

	_, err = r.Register("e1", "sensor", dev, newFake("e1", "k", "Progress", true), true)
	assert.Error(t, err, "duplicate unique id")

	second, err := r.Register("e2", "sensor", dev, newFake("e2", "k", "Progress", true), true)
	require.NoError(t, err)
	assert.Equal(t, "sensor.mk4_progress_2", second.EntityID)

	byID, ok := r.ByEntityID("sensor.mk4_progress_2")
	require.True(t, ok)
	assert.Equal(t, "e2_k", byID.UniqueID)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Office MK4 Nozzle Temperature": "office_mk4_nozzle_temperature",
		"  Print -- Start ":             "print_start",
		"Prusa XL":                      "prusa_xl",
		"***":                           "unnamed",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestStateFormatted(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	tests := []struct {
		state State
		want  string
	}{
		{State{Available: true, Value: 42.0}, "42"},
		{State{Available: true, Value: 21.5}, "21.5"},
		{State{Available: true, Value: "printing"}, "printing"},
		{State{Available: true, Value: ts}, "2024-05-01T10:00:00Z"},
		{State{Available: false, Value: 1.0}, StateUnavailable},
		{State{Available: true}, StateUnavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.Formatted())
	}
}

func TestStateCacheSubscribe(t *testing.T) {
	c := NewStateCache()
	clock := time.Unix(100, 0)
	c.now = func() time.Time { return clock }

	var events []StateEvent
	unsubscribe := c.Subscribe(func(ev StateEvent) { events = append(events, ev) })

	c.Set(State{EntityID: "sensor.a", Available: true, Value: 1.0})
	clock = clock.Add(time.Minute)
	c.Set(State{EntityID: "sensor.a", Available: true, Value: 1.0})

	got, _ := c.Get("sensor.a")
	assert.Equal(t, time.Unix(100, 0), got.LastUpdated, "unchanged value keeps timestamp")

	c.Set(State{EntityID: "sensor.a", Available: true, Value: 2.0})
	got, _ = c.Get("sensor.a")
	assert.Equal(t, clock, got.LastUpdated)

	c.Remove("sensor.a")
	c.Remove("sensor.missing")
	unsubscribe()
	c.Set(State{EntityID: "sensor.b", Available: true, Value: 1.0})

	kinds := make([]bool, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Removed)
	}
	if diff := cmp.Diff([]bool{false, false, false, true}, kinds); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestUpdateFailedErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := error(&UpdateFailedError{Message: "boom", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "update failed: boom", err.Error())
}
