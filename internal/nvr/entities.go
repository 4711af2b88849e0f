package nvr

import (
	"sync"
	"time"
)

type EntityKind string

const (
	KindBinarySensor EntityKind = "binary_sensor"
	KindSensor       EntityKind = "sensor"
	KindSelect       EntityKind = "select"
)

const (
	StateOn      = "on"
	StateOff     = "off"
	StateUnknown = "unknown"
)

// Entity is the exported state of one platform entity.
type Entity struct {
	UniqueID    string         `json:"unique_id"`
	Kind        EntityKind     `json:"kind"`
	Name        string         `json:"name"`
	DeviceClass string         `json:"device_class,omitempty"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (e Entity) clone() Entity {
	if e.Attributes != nil {
		attrs := make(map[string]any, len(e.Attributes))
		for k, v := range e.Attributes {
			attrs[k] = v
		}
		e.Attributes = attrs
	}
	if e.Options != nil {
		e.Options = append([]string(nil), e.Options...)
	}
	return e
}

// EntityStore is the in-memory state of every entity, in registration order.
// Listeners run after the store lock is released.
type EntityStore struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	order     []string
	listeners []func(Entity)
}

func NewEntityStore() *EntityStore {
	return &EntityStore{entities: make(map[string]*Entity)}
}

// OnChange registers fn for every state change.
func (s *EntityStore) OnChange(fn func(Entity)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Register adds e, or replaces the definition of an existing id while keeping
// its state. Binary sensors start off.
func (s *EntityStore) Register(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entities[e.UniqueID]; ok {
		e.State, e.Attributes, e.UpdatedAt = old.State, old.Attributes, old.UpdatedAt
		*old = e
		return
	}
	if e.State == "" {
		e.State = StateUnknown
		if e.Kind == KindBinarySensor {
			e.State = StateOff
		}
	}
	e.UpdatedAt = time.Now()
	s.entities[e.UniqueID] = &e
	s.order = append(s.order, e.UniqueID)
}

// SetOn switches a binary sensor. It reports whether the state changed.
func (s *EntityStore) SetOn(id string, on bool) bool {
	state := StateOff
	if on {
		state = StateOn
	}
	return s.update(id, func(e *Entity) bool {
		if e.State == state {
			return false
		}
		e.State = state
		return true
	})
}

// SetState replaces state and attributes. A nil attrs keeps the old ones.
func (s *EntityStore) SetState(id, state string, attrs map[string]any) bool {
	return s.update(id, func(e *Entity) bool {
		e.State = state
		if attrs != nil {
			e.Attributes = attrs
		}
		return true
	})
}

func (s *EntityStore) update(id string, fn func(e *Entity) bool) bool {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok || !fn(e) {
		s.mu.Unlock()
		return false
	}
	e.UpdatedAt = time.Now()
	snapshot := e.clone()
	listeners := make([]func(Entity), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return true
}

func (s *EntityStore) IsOn(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return ok && e.State == StateOn
}

func (s *EntityStore) Get(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

func (s *EntityStore) List() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id].clone())
	}
	return out
}

// RegisterDescriptors adds one binary sensor per event descriptor.
func (s *EntityStore) RegisterDescriptors(descs []EventDescriptor) {
	for _, d := range descs {
		s.Register(Entity{
			UniqueID:    d.UniqueID,
			Kind:        KindBinarySensor,
			Name:        d.Label,
			DeviceClass: d.DeviceClass,
			Disabled:    d.Disabled,
		})
	}
}
