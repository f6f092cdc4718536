package mesh_buffer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
)

var (
	ErrSlotOutOfRange = errors.New("slot out of range")
	ErrSlotReleased   = errors.New("slot released")
)

type pool struct {
	label   string
	backend renderer.GraphicsBackend
	slots   []MeshBuffer
}

// Pool is an indexable, sparse collection of MeshBuffers. Slot indices are stable until released and
// Allocate reuses the lowest released slot before growing. A Pool is owned by the render thread.
type Pool interface {
	// Allocate creates a MeshBuffer in the lowest free slot.
	//
	// Parameters:
	//   - capacityVertices: maximum vertex records, must be positive
	//   - capacityIndices: maximum indices, 0 for non-indexed
	//   - layout: the record layout
	//   - options: options forwarded to NewMeshBuffer
	//
	// Returns:
	//   - int: the slot index
	//   - error: ErrInvalidCapacity or a backend allocation error
	Allocate(capacityVertices, capacityIndices int, layout vertex_layout.Layout, options ...MeshBufferBuilderOption) (int, error)

	// Release disposes the buffer in a slot and frees the slot for reuse.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - error: ErrSlotOutOfRange or ErrSlotReleased
	Release(slot int) error

	// Get returns the buffer in a slot.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - MeshBuffer: the live buffer
	//   - error: ErrSlotOutOfRange or ErrSlotReleased
	Get(slot int) (MeshBuffer, error)

	// Len returns the number of slots, live or released.
	Len() int

	// Live returns the number of slots holding a buffer.
	Live() int

	// Slots returns the live slot indices in ascending order.
	Slots() []int

	// Dispose releases every live slot.
	Dispose()
}

var _ Pool = &pool{}

// NewPool creates an empty pool whose buffers are allocated on backend.
//
// Parameters:
//   - backend: the graphics backend
//   - label: prefix for the debug labels of pooled buffers
//
// Returns:
//   - Pool: the new pool
func NewPool(backend renderer.GraphicsBackend, label string) Pool {
	if backend == nil {
		panic("mesh_buffer: nil backend")
	}
	return &pool{label: label, backend: backend}
}

func (p *pool) Allocate(capacityVertices, capacityIndices int, layout vertex_layout.Layout, options ...MeshBufferBuilderOption) (int, error) {
	slot := len(p.slots)
	for i, m := range p.slots {
		if m == nil {
			slot = i
			break
		}
	}

	opts := append([]MeshBufferBuilderOption{WithLabel(fmt.Sprintf("%s[%d]", p.label, slot))}, options...)
	m, err := NewMeshBuffer(p.backend, layout, capacityVertices, capacityIndices, opts...)
	if err != nil {
		return -1, err
	}
	if slot == len(p.slots) {
		p.slots = append(p.slots, m)
	} else {
		p.slots[slot] = m
	}
	return slot, nil
}

func (p *pool) Release(slot int) error {
	m, err := p.Get(slot)
	if err != nil {
		return err
	}
	m.Dispose()
	p.slots[slot] = nil
	return nil
}

func (p *pool) Get(slot int) (MeshBuffer, error) {
	if slot < 0 || slot >= len(p.slots) {
		return nil, fmt.Errorf("%s: slot %d of %d: %w", p.label, slot, len(p.slots), ErrSlotOutOfRange)
	}
	if p.slots[slot] == nil {
		return nil, fmt.Errorf("%s: slot %d: %w", p.label, slot, ErrSlotReleased)
	}
	return p.slots[slot], nil
}

func (p *pool) Len() int {
	return len(p.slots)
}

func (p *pool) Live() int {
	n := 0
	for _, m := range p.slots {
		if m != nil {
			n++
		}
	}
	return n
}

func (p *pool) Slots() []int {
	out := make([]int, 0, len(p.slots))
	for i, m := range p.slots {
		if m != nil {
			out = append(out, i)
		}
	}
	return out
}

func (p *pool) Dispose() {
	for i, m := range p.slots {
		if m != nil {
			m.Dispose()
			p.slots[i] = nil
		}
	}
}
