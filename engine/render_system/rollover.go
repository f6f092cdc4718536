package render_system

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/mesh_buffer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
)

// stream is a growing sequence of same-capacity pool buffers refilled every frame. When a group of records
// does not fit the current buffer, the buffer is sealed and the next one is used, allocating it if needed.
// Buffers survive across frames; only their contents are transient.
type stream struct {
	pool     mesh_buffer.Pool
	layout   vertex_layout.Layout
	capacity int
	// model is the per-vertex geometry every buffer of an instanced layout starts with.
	model []float32

	slots   []int
	owners  [][]string
	current int
}

func newStream(pool mesh_buffer.Pool, layout vertex_layout.Layout, capacity int, model []float32) *stream {
	return &stream{pool: pool, layout: layout, capacity: capacity, model: model}
}

func (st *stream) instanced() bool {
	return st.layout.RecordSize(vertex_layout.DivisorInstance) > 0
}

// appendVertices writes a group of whole vertex records into one buffer.
//
// Parameters:
//   - owner: the name of the renderable the records belong to, used in draw error logs
//   - records: a multiple of the vertex record size
//
// Returns:
//   - error: an allocation error, or ErrInvalidCapacity when the group is larger than a buffer
func (st *stream) appendVertices(owner string, records []float32) error {
	n := len(records) / st.layout.RecordSize(vertex_layout.DivisorVertex)
	m, err := st.buffer(n)
	if err != nil {
		return err
	}
	st.own(owner)
	return m.AppendVertices(records)
}

// appendInstance writes one instance record.
func (st *stream) appendInstance(owner string, values ...float32) error {
	m, err := st.buffer(1)
	if err != nil {
		return err
	}
	st.own(owner)
	return m.AppendInstance(values...)
}

func (st *stream) buffer(need int) (mesh_buffer.MeshBuffer, error) {
	if need > st.capacity {
		return nil, fmt.Errorf("group of %d records exceeds buffer capacity %d: %w", need, st.capacity, mesh_buffer.ErrInvalidCapacity)
	}
	for st.current < len(st.slots) {
		m, err := st.pool.Get(st.slots[st.current])
		if err != nil {
			return nil, err
		}
		if st.remaining(m) >= need {
			return m, nil
		}
		m.Seal()
		st.current++
	}

	var (
		slot int
		err  error
	)
	if st.instanced() {
		slot, err = st.pool.Allocate(len(st.model)/st.layout.RecordSize(vertex_layout.DivisorVertex), 0, st.layout, mesh_buffer.WithInstanceCapacity(st.capacity))
	} else {
		slot, err = st.pool.Allocate(st.capacity, 0, st.layout)
	}
	if err != nil {
		return nil, err
	}
	m, err := st.pool.Get(slot)
	if err != nil {
		return nil, err
	}
	if err := st.seed(m); err != nil {
		return nil, err
	}
	st.slots = append(st.slots, slot)
	st.owners = append(st.owners, nil)
	return m, nil
}

func (st *stream) remaining(m mesh_buffer.MeshBuffer) int {
	if m.Sealed() {
		return 0
	}
	if st.instanced() {
		return m.InstanceRemaining()
	}
	return m.Remaining()
}

func (st *stream) seed(m mesh_buffer.MeshBuffer) error {
	if len(st.model) == 0 {
		return nil
	}
	return m.AppendVertices(st.model)
}

func (st *stream) own(owner string) {
	o := st.owners[st.current]
	if len(o) == 0 || o[len(o)-1] != owner {
		st.owners[st.current] = append(o, owner)
	}
}

// records returns the number of records a buffer holds for drawing purposes.
func (st *stream) records(m mesh_buffer.MeshBuffer) int {
	if st.instanced() {
		return m.InstanceCount()
	}
	return m.VertexCount()
}

// flush uploads and draws every buffer written this frame in allocation order, then resets them all.
// The draw callback receives the buffer's slot, a label naming its owners and the buffer itself.
//
// Returns:
//   - int: the number of buffers uploaded
func (st *stream) flush(draw func(slot int, label string, m mesh_buffer.MeshBuffer, uploadErr error)) int {
	uploads := 0
	for i := 0; i < len(st.slots) && i <= st.current; i++ {
		m, err := st.pool.Get(st.slots[i])
		if err != nil || st.records(m) == 0 {
			continue
		}
		if m.Dirty() {
			err = m.Upload()
			if err == nil {
				uploads++
			}
		}
		draw(st.slots[i], strings.Join(st.owners[i], ","), m, err)
	}
	st.reset()
	return uploads
}

// reset empties every buffer for the next frame, keeping the instanced model in place.
func (st *stream) reset() {
	for i, slot := range st.slots {
		st.owners[i] = st.owners[i][:0]
		m, err := st.pool.Get(slot)
		if err != nil {
			continue
		}
		m.Clear()
		_ = st.seed(m)
	}
	st.current = 0
}

// buffers returns the number of buffers the stream has allocated.
func (st *stream) buffers() int {
	return len(st.slots)
}

// release forgets every slot. The pool owns the buffers and disposes them.
func (st *stream) release() {
	st.slots, st.owners, st.current = nil, nil, 0
}
