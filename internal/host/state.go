package host

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// StateUnavailable is the rendered state of an unavailable entity.
const StateUnavailable = "unavailable"

// State is the cached state of one entity together with the metadata
// needed to publish it.
type State struct {
	EntityID    string            `json:"entity_id"`
	UniqueID    string            `json:"unique_id"`
	EntryID     string            `json:"entry_id"`
	Value       any               `json:"-"`
	Available   bool              `json:"available"`
	Description EntityDescription `json:"-"`
	Device      DeviceInfo        `json:"-"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Formatted renders the value the way it is published: numbers without
// trailing zeros, timestamps as RFC 3339 UTC.
func (s State) Formatted() string {
	if !s.Available || s.Value == nil {
		return StateUnavailable
	}
	switch v := s.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "on"
		}
		return "off"
	default:
		return StateUnavailable
	}
}

// FriendlyName is the display name: device name plus entity name.
func (s State) FriendlyName() string {
	if s.Description.Name == "" {
		return s.Device.Name
	}
	if s.Device.Name == "" {
		return s.Description.Name
	}
	return s.Device.Name + " " + s.Description.Name
}

// StateEvent is delivered to cache subscribers.
type StateEvent struct {
	State   State
	Removed bool
}

// StateCache holds the last written state per entity id.
type StateCache struct {
	mu     sync.RWMutex
	states map[string]State
	subs   map[int]func(StateEvent)
	nextID int
	now    func() time.Time
}

func NewStateCache() *StateCache {
	return &StateCache{
		states: make(map[string]State),
		subs:   make(map[int]func(StateEvent)),
		now:    time.Now,
	}
}

// Set stores a state. LastUpdated only moves when the rendered value or
// availability changed.
func (c *StateCache) Set(state State) {
	c.mu.Lock()
	prev, ok := c.states[state.EntityID]
	if ok && prev.Formatted() == state.Formatted() && prev.Available == state.Available {
		state.LastUpdated = prev.LastUpdated
	} else {
		state.LastUpdated = c.now()
	}
	c.states[state.EntityID] = state
	subs := c.subscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(StateEvent{State: state})
	}
}

func (c *StateCache) Get(entityID string) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[entityID]
	return state, ok
}

// List returns all states sorted by entity id.
func (c *StateCache) List() []State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]State, 0, len(c.states))
	for _, s := range c.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (c *StateCache) Remove(entityID string) {
	c.mu.Lock()
	state, ok := c.states[entityID]
	delete(c.states, entityID)
	subs := c.subscribers()
	c.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range subs {
		fn(StateEvent{State: state, Removed: true})
	}
}

// Subscribe registers fn for every Set and Remove. Callbacks run on the
// writer's goroutine and must not block.
func (c *StateCache) Subscribe(fn func(StateEvent)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *StateCache) subscribers() []func(StateEvent) {
	out := make([]func(StateEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}
