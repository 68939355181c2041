package indi

import (
	"fmt"
	"sync"
	"time"
)

type EventKind string

const (
	EventDefine EventKind = "def"
	EventSet    EventKind = "set"
	EventDelete EventKind = "del"
)

// Event is emitted to clients each time a property is announced, updated or
// withdrawn.
type Event struct {
	Kind      EventKind `json:"kind"`
	Device    string    `json:"device"`
	Name      string    `json:"name"`
	Property  Property  `json:"property,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher receives registry events. Publish is called with the registry
// lock held, so implementations must not block and must not call back into
// the registry.
type Publisher interface {
	Publish(ev Event)
}

type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Registry tracks the properties that have been announced to clients. It
// stores copies: the owner keeps mutating its own vectors and calls Update to
// publish a new snapshot.
type Registry struct {
	device string

	mu         sync.RWMutex
	defined    map[string]Property
	order      []string
	publishers []Publisher
}

func NewRegistry(device string, publishers ...Publisher) *Registry {
	return &Registry{
		device:     device,
		defined:    make(map[string]Property),
		publishers: publishers,
	}
}

func (r *Registry) Device() string {
	return r.device
}

func (r *Registry) AddPublisher(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers = append(r.publishers, p)
}

// Define announces a property. Defining an already announced property
// replaces its snapshot and announces it again.
func (r *Registry) Define(p Property) {
	name := p.Header().Name
	snap := p.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defined[name]; !ok {
		r.order = append(r.order, name)
	}
	r.defined[name] = snap
	r.publish(Event{Kind: EventDefine, Name: name, Property: snap})
}

// Update publishes the current values and state of an announced property.
// Updates to properties that are not announced are dropped and reported as
// false.
func (r *Registry) Update(p Property, format string, args ...any) bool {
	name := p.Header().Name
	snap := p.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defined[name]; !ok {
		return false
	}
	r.defined[name] = snap

	ev := Event{Kind: EventSet, Name: name, Property: snap}
	if format != "" {
		ev.Message = fmt.Sprintf(format, args...)
	}
	r.publish(ev)
	return true
}

// Delete withdraws an announced property.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defined[name]; !ok {
		return false
	}
	delete(r.defined, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.publish(Event{Kind: EventDelete, Name: name})
	return true
}

func (r *Registry) IsDefined(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defined[name]
	return ok
}

// Get returns a copy of an announced property.
func (r *Registry) Get(name string) (Property, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.defined[name]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

func (r *Registry) Number(name string) (*NumberVector, bool) {
	p, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	nv, ok := p.(*NumberVector)
	return nv, ok
}

func (r *Registry) Text(name string) (*TextVector, bool) {
	p, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	tv, ok := p.(*TextVector)
	return tv, ok
}

func (r *Registry) Switch(name string) (*SwitchVector, bool) {
	p, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	sv, ok := p.(*SwitchVector)
	return sv, ok
}

// Properties returns copies of all announced properties in definition order.
func (r *Registry) Properties() []Property {
	r.mu.RLock()
	defer r.mu.RUnlock()

	props := make([]Property, 0, len(r.order))
	for _, name := range r.order {
		props = append(props, r.defined[name].clone())
	}
	return props
}

func (r *Registry) publish(ev Event) {
	ev.Device = r.device
	ev.Timestamp = time.Now()
	for _, p := range r.publishers {
		p.Publish(ev)
	}
}
