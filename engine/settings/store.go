package settings

import (
	"slices"
	"sync"
)

// Provider hands out the current settings. Render systems hold a Provider and re-read it when setting
// uniforms, comparing Version to skip redundant work.
type Provider interface {
	// Snapshot returns a copy of the current settings.
	Snapshot() RenderSettings

	// Version returns a counter that increases on every change.
	Version() uint64
}

// Listener observes settings changes.
type Listener interface {
	OnSettingsChanged(d Delta)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(d Delta)

func (f ListenerFunc) OnSettingsChanged(d Delta) { f(d) }

// Store is the mutable owner of the settings. Every change produces a new snapshot and version.
type Store interface {
	Provider

	// Apply applies a change and notifies listeners in subscription order.
	//
	// Parameters:
	//   - d: the change
	//
	// Returns:
	//   - uint64: the new version
	Apply(d Delta) uint64

	// Subscribe registers a listener.
	//
	// Parameters:
	//   - l: the listener
	//
	// Returns:
	//   - func(): removes the listener; safe to call more than once
	Subscribe(l Listener) func()
}

type subscription struct {
	id       uint64
	listener Listener
}

type store struct {
	mu        sync.RWMutex
	current   RenderSettings
	version   uint64
	nextID    uint64
	listeners []subscription
}

var _ Store = &store{}

// NewStore creates a Store holding initial at version 1.
func NewStore(initial RenderSettings) Store {
	return &store{current: initial.Clone(), version: 1}
}

func (s *store) Snapshot() RenderSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *store) Apply(d Delta) uint64 {
	s.mu.Lock()
	next := s.current.Clone()
	d.apply(&next)
	s.current = next
	s.version++
	v := s.version
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, sub := range listeners {
		sub.listener.OnSettingsChanged(d)
	}
	return v
}

func (s *store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, listener: l})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
	}
}
