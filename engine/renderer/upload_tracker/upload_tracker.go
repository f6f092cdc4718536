// package upload_tracker records, per renderable, whether its vertex data is resident on the GPU and which
// buffer slot holds it. Evictions may be requested from any goroutine; they take effect when the render
// thread calls ProcessEvictions at the start of its next frame.
package upload_tracker

import "sync"

// UploadState is the GPU residency of one renderable.
type UploadState struct {
	InGPU bool
	// Slot is the pool slot holding the data, -1 if none.
	Slot int
	// Count is the number of records uploaded.
	Count int
	// Version is the renderable data version that was uploaded.
	Version uint64
}

// Eviction is delivered to listeners for every processed eviction.
type Eviction[K comparable] struct {
	Key K
	// State is the residency the key had before the eviction.
	State UploadState
	// Forgotten is true when the entry was removed rather than reset.
	Forgotten bool
}

// EvictionListener is notified on the render thread, typically to release the evicted pool slot.
type EvictionListener[K comparable] func(e Eviction[K])

type request[K comparable] struct {
	key    K
	forget bool
}

type tracker[K comparable] struct {
	mu        sync.Mutex
	states    map[K]UploadState
	queue     []request[K]
	listeners []EvictionListener[K]
}

// Tracker maps renderables to their upload state.
type Tracker[K comparable] interface {
	// IsUploaded reports whether the key's data is resident on the GPU.
	IsUploaded(k K) bool

	// State returns the key's upload state.
	//
	// Parameters:
	//   - k: the renderable key
	//
	// Returns:
	//   - UploadState: the state, with Slot -1 when the key is unknown
	//   - bool: false when the key has no entry
	State(k K) (UploadState, bool)

	// Ensure creates a not-uploaded entry for a key seen for the first time.
	Ensure(k K) UploadState

	// MarkUploaded records that the key's data now lives in a pool slot.
	//
	// Parameters:
	//   - k: the renderable key
	//   - slot: the pool slot
	//   - count: number of records uploaded
	//   - version: data version that was uploaded
	MarkUploaded(k K, slot, count int, version uint64)

	// MarkEvicted requests that the key's GPU copy be dropped and rebuilt. Safe from any goroutine.
	MarkEvicted(k K)

	// MarkDisposed requests that the key's GPU copy be dropped and its entry removed. Safe from any goroutine.
	MarkDisposed(k K)

	// Forget removes the key's entry immediately without notifying listeners.
	//
	// Returns:
	//   - UploadState: the removed state
	//   - bool: false when the key had no entry
	Forget(k K) (UploadState, bool)

	// Subscribe registers a listener for processed evictions.
	Subscribe(l EvictionListener[K])

	// ProcessEvictions applies queued requests and notifies listeners. Render thread only.
	//
	// Returns:
	//   - int: the number of requests applied to existing entries
	ProcessEvictions() int

	// Pending returns the number of queued requests.
	Pending() int

	// Len returns the number of tracked keys.
	Len() int

	// Keys returns the tracked keys in no particular order.
	Keys() []K

	// Reset drops every entry and queued request, returning the states that were tracked.
	Reset() map[K]UploadState
}

var _ Tracker[int] = &tracker[int]{}

// NewTracker creates an empty tracker.
func NewTracker[K comparable]() Tracker[K] {
	return &tracker[K]{states: make(map[K]UploadState)}
}

func (t *tracker[K]) IsUploaded(k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[k].InGPU
}

func (t *tracker[K]) State(k K) (UploadState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[k]
	if !ok {
		return UploadState{Slot: -1}, false
	}
	return s, true
}

func (t *tracker[K]) Ensure(k K) UploadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[k]
	if !ok {
		s = UploadState{Slot: -1}
		t.states[k] = s
	}
	return s
}

func (t *tracker[K]) MarkUploaded(k K, slot, count int, version uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[k] = UploadState{InGPU: true, Slot: slot, Count: count, Version: version}
}

func (t *tracker[K]) MarkEvicted(k K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, request[K]{key: k})
}

func (t *tracker[K]) MarkDisposed(k K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, request[K]{key: k, forget: true})
}

func (t *tracker[K]) Forget(k K) (UploadState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[k]
	if ok {
		delete(t.states, k)
	}
	return s, ok
}

func (t *tracker[K]) Subscribe(l EvictionListener[K]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *tracker[K]) ProcessEvictions() int {
	t.mu.Lock()
	queue := t.queue
	t.queue = nil
	var events []Eviction[K]
	for _, r := range queue {
		s, ok := t.states[r.key]
		if !ok {
			continue
		}
		if r.forget {
			delete(t.states, r.key)
		} else {
			t.states[r.key] = UploadState{Slot: -1}
		}
		events = append(events, Eviction[K]{Key: r.key, State: s, Forgotten: r.forget})
	}
	listeners := append([]EvictionListener[K](nil), t.listeners...)
	t.mu.Unlock()

	// listeners run unlocked so they may query the tracker
	for _, e := range events {
		for _, l := range listeners {
			l(e)
		}
	}
	return len(events)
}

func (t *tracker[K]) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

func (t *tracker[K]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

func (t *tracker[K]) Keys() []K {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]K, 0, len(t.states))
	for k := range t.states {
		out = append(out, k)
	}
	return out
}

func (t *tracker[K]) Reset() map[K]UploadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.states
	t.states = make(map[K]UploadState)
	t.queue = nil
	return out
}
