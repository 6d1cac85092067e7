package objects

import (
	"context"
	"fmt"
	"sync"

	events "bacnet-events/internal/events/domain"
)

// ChangeHook observes committed external writes.
type ChangeHook func(ref ObjectRef, property Property, old, new any)

// Store is an in-memory object/property store. External writes fire
// change hooks; internal writes (engine-owned mirror properties) do not.
type Store struct {
	mu      sync.RWMutex
	objects map[ObjectRef]map[Property]any
	hooks   []ChangeHook
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{objects: make(map[ObjectRef]map[Property]any)}
}

// Add creates an object if absent.
func (s *Store) Add(ref ObjectRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[ref]; !ok {
		s.objects[ref] = make(map[Property]any)
	}
}

// Has reports whether the object exists.
func (s *Store) Has(ref ObjectRef) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[ref]
	return ok
}

// Read returns a property value.
func (s *Store) Read(ref ObjectRef, property Property) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, ref)
	}
	value, ok := props[property]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownProperty, ref, property)
	}
	return value, nil
}

// Write commits an external property write and fires change hooks.
func (s *Store) Write(ref ObjectRef, property Property, value any) error {
	s.mu.Lock()
	props, ok := s.objects[ref]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownObject, ref)
	}
	old := props[property]
	props[property] = value
	hooks := append([]ChangeHook(nil), s.hooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(ref, property, old, value)
	}
	return nil
}

// WriteInternal updates a property without firing hooks. Used by the
// engine to mirror event-state, status-flags, timestamps and
// acked-transitions.
func (s *Store) WriteInternal(ref ObjectRef, property Property, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.objects[ref]
	if !ok {
		props = make(map[Property]any)
		s.objects[ref] = props
	}
	props[property] = value
}

// OnChange registers a hook for external writes.
func (s *Store) OnChange(hook ChangeHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// ReadValue reads a property expected to hold a sample value.
func (s *Store) ReadValue(ref ObjectRef, property Property) (events.Value, error) {
	raw, err := s.Read(ref, property)
	if err != nil {
		return events.Value{}, err
	}
	value, ok := raw.(events.Value)
	if !ok {
		return events.Value{}, fmt.Errorf("objects: %s %s is not a value", ref, property)
	}
	return value, nil
}

// PropertyRef addresses a property of a possibly remote object.
type PropertyRef struct {
	Device   string
	Object   ObjectRef
	Property Property
}

// String renders the reference for logs.
func (r PropertyRef) String() string {
	if r.Device == "" {
		return r.Object.String() + "/" + string(r.Property)
	}
	return r.Device + "/" + r.Object.String() + "/" + string(r.Property)
}

// LocalFetcher resolves polled property references against the local
// store. Remote device references are a transport concern; the fetcher
// rejects them so the poller reports a communication fault.
type LocalFetcher struct {
	store *Store
}

// NewLocalFetcher constructs a fetcher over the store.
func NewLocalFetcher(store *Store) *LocalFetcher {
	return &LocalFetcher{store: store}
}

// Fetch reads the referenced property value.
func (f *LocalFetcher) Fetch(_ context.Context, ref PropertyRef) (events.Value, error) {
	if f == nil || f.store == nil {
		return events.Value{}, ErrUnknownObject
	}
	if ref.Device != "" {
		return events.Value{}, fmt.Errorf("objects: remote device %q unreachable", ref.Device)
	}
	return f.store.ReadValue(ref.Object, ref.Property)
}
