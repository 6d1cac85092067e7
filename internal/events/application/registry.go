package application

import (
	"fmt"
	"sort"
	"sync"

	events "bacnet-events/internal/events/domain"
)

// ClassRegistry is an in-memory ClassResolver. Classes are registered
// at startup from device configuration and may be replaced at runtime;
// monitors resolve on every commit so updates take effect immediately.
type ClassRegistry struct {
	mu      sync.RWMutex
	classes map[uint32]events.NotificationClass
}

// NewClassRegistry constructs an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: make(map[uint32]events.NotificationClass)}
}

// Register adds or replaces a notification class.
func (r *ClassRegistry) Register(class events.NotificationClass) {
	r.mu.Lock()
	r.classes[class.ID] = class
	r.mu.Unlock()
}

// Resolve implements ClassResolver.
func (r *ClassRegistry) Resolve(classID uint32) (events.NotificationClass, error) {
	r.mu.RLock()
	class, ok := r.classes[classID]
	r.mu.RUnlock()
	if !ok {
		return events.NotificationClass{}, fmt.Errorf("%w: %d", events.ErrUnknownClass, classID)
	}
	return class, nil
}

// List returns all registered classes ordered by id.
func (r *ClassRegistry) List() []events.NotificationClass {
	r.mu.RLock()
	out := make([]events.NotificationClass, 0, len(r.classes))
	for _, class := range r.classes {
		out = append(out, class)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
