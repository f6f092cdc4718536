// package mesh_buffer holds CPU staging arrays paired with GPU vertex, instance and index buffers, and the
// slot pool render systems allocate them from.
package mesh_buffer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sky/common"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/google/uuid"
)

var (
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrBufferFull      = errors.New("mesh buffer full")
	ErrRecordSize      = errors.New("record size mismatch")
	ErrSealed          = errors.New("mesh buffer sealed")
	ErrDisposed        = errors.New("mesh buffer disposed")
	ErrStagingReleased = errors.New("staging array released")
)

type meshBuffer struct {
	label   string
	backend renderer.GraphicsBackend
	layout  vertex_layout.Layout

	vertexCapacity   int
	instanceCapacity int
	indexCapacity    int

	vertexRecord   int
	instanceRecord int

	vertices  []float32
	instances []float32
	indices   []uint32

	vertexCount   int
	instanceCount int
	indexCount    int

	vertexBuffer   renderer.BufferHandle
	instanceBuffer renderer.BufferHandle
	indexBuffer    renderer.BufferHandle

	sealed          bool
	dirty           bool
	uploaded        bool
	releaseOnUpload bool
	stagingReleased bool
	disposed        bool
}

// MeshBuffer is a fixed-capacity CPU staging area for packed vertex, instance and index records paired with
// GPU buffers of identical size. Appends never grow the arrays and never overwrite written records.
// A MeshBuffer is owned by the render thread.
type MeshBuffer interface {
	renderer.Mesh

	// Label returns the debug label used for the GPU buffers.
	Label() string

	// Capacity returns the maximum number of vertex records.
	Capacity() int

	// InstanceCapacity returns the maximum number of instance records, 0 for non-instanced layouts.
	InstanceCapacity() int

	// IndexCapacity returns the maximum number of indices, 0 for non-indexed buffers.
	IndexCapacity() int

	// Cursor returns the vertex write cursor in floats, VertexCount() * RecordSize(DivisorVertex).
	Cursor() int

	// Remaining returns how many more vertex records fit.
	Remaining() int

	// InstanceRemaining returns how many more instance records fit.
	InstanceRemaining() int

	// AppendVertex writes one vertex record at the cursor.
	//
	// Parameters:
	//   - values: exactly RecordSize(DivisorVertex) floats in layout order
	//
	// Returns:
	//   - error: ErrRecordSize, ErrBufferFull, ErrSealed, ErrStagingReleased or ErrDisposed
	AppendVertex(values ...float32) error

	// AppendVertices writes whole vertex records in one call. Nothing is written on error.
	//
	// Parameters:
	//   - records: a multiple of RecordSize(DivisorVertex) floats
	//
	// Returns:
	//   - error: as AppendVertex, ErrBufferFull if not every record fits
	AppendVertices(records []float32) error

	// AppendInstance writes one instance record.
	//
	// Parameters:
	//   - values: exactly RecordSize(DivisorInstance) floats in layout order
	//
	// Returns:
	//   - error: as AppendVertex
	AppendInstance(values ...float32) error

	// AppendIndices appends vertex indices. Nothing is written on error.
	AppendIndices(indices ...uint32) error

	// Upload copies the written staging regions to the GPU buffers. Calling it again without intervening
	// appends uploads identical bytes. With WithReleaseStagingOnUpload the staging arrays are dropped after the
	// first upload and later uploads are no-ops.
	//
	// Returns:
	//   - error: ErrDisposed or a backend upload error
	Upload() error

	// Dirty reports whether records were appended or cleared since the last Upload.
	Dirty() bool

	// Uploaded reports whether Upload has succeeded at least once since creation or the last Clear.
	Uploaded() bool

	// Seal closes the buffer for appends, fixing its used record counts until Clear.
	Seal()

	// Sealed reports whether the buffer is sealed.
	Sealed() bool

	// Clear resets all cursors to zero and unseals the buffer. GPU buffers are kept.
	Clear()

	// Staging returns the written region of the staging array of a divisor class. The slice aliases
	// internal storage and is only valid until the next append or Clear.
	Staging(d vertex_layout.Divisor) []float32

	// Dispose releases the GPU buffers and drops the staging arrays. Safe to call more than once.
	Dispose()

	// Disposed reports whether Dispose has been called.
	Disposed() bool
}

var _ MeshBuffer = &meshBuffer{}

// NewMeshBuffer allocates staging arrays of capacity × record size and GPU buffers of the same byte size.
// Layouts with instance attributes need WithInstanceCapacity.
//
// Parameters:
//   - backend: the graphics backend owning the GPU buffers
//   - layout: the record layout
//   - capacityVertices: maximum vertex records, must be positive
//   - capacityIndices: maximum indices, 0 for a non-indexed buffer
//   - options: functional options
//
// Returns:
//   - MeshBuffer: the allocated buffer
//   - error: ErrInvalidCapacity or a backend allocation error
func NewMeshBuffer(backend renderer.GraphicsBackend, layout vertex_layout.Layout, capacityVertices, capacityIndices int, options ...MeshBufferBuilderOption) (MeshBuffer, error) {
	if backend == nil {
		panic("mesh_buffer: nil backend")
	}
	m := &meshBuffer{
		backend:        backend,
		layout:         layout,
		vertexCapacity: capacityVertices,
		indexCapacity:  capacityIndices,
		vertexRecord:   layout.RecordSize(vertex_layout.DivisorVertex),
		instanceRecord: layout.RecordSize(vertex_layout.DivisorInstance),
	}
	for _, option := range options {
		option(m)
	}
	if m.label == "" {
		m.label = "mesh-" + uuid.NewString()
	}

	if capacityVertices <= 0 || capacityIndices < 0 {
		return nil, fmt.Errorf("allocate %s: %d vertices, %d indices: %w", m.label, capacityVertices, capacityIndices, ErrInvalidCapacity)
	}
	if m.vertexRecord == 0 {
		return nil, fmt.Errorf("allocate %s: layout has no vertex attributes: %w", m.label, ErrInvalidCapacity)
	}
	if m.instanceRecord > 0 && m.instanceCapacity <= 0 {
		return nil, fmt.Errorf("allocate %s: instanced layout needs an instance capacity: %w", m.label, ErrInvalidCapacity)
	}
	if m.instanceRecord == 0 {
		m.instanceCapacity = 0
	}

	var err error
	m.vertices = make([]float32, 0, capacityVertices*m.vertexRecord)
	if m.vertexBuffer, err = backend.CreateBuffer(m.label+" vertices", renderer.BufferUsageVertex, capacityVertices*m.vertexRecord*4); err != nil {
		return nil, fmt.Errorf("allocate %s: %w", m.label, err)
	}
	if m.instanceCapacity > 0 {
		m.instances = make([]float32, 0, m.instanceCapacity*m.instanceRecord)
		if m.instanceBuffer, err = backend.CreateBuffer(m.label+" instances", renderer.BufferUsageVertex, m.instanceCapacity*m.instanceRecord*4); err != nil {
			m.Dispose()
			return nil, fmt.Errorf("allocate %s: %w", m.label, err)
		}
	}
	if capacityIndices > 0 {
		m.indices = make([]uint32, 0, capacityIndices)
		if m.indexBuffer, err = backend.CreateBuffer(m.label+" indices", renderer.BufferUsageIndex, capacityIndices*4); err != nil {
			m.Dispose()
			return nil, fmt.Errorf("allocate %s: %w", m.label, err)
		}
	}
	return m, nil
}

func (m *meshBuffer) Label() string                { return m.label }
func (m *meshBuffer) Layout() vertex_layout.Layout { return m.layout }
func (m *meshBuffer) Capacity() int                { return m.vertexCapacity }
func (m *meshBuffer) InstanceCapacity() int        { return m.instanceCapacity }
func (m *meshBuffer) IndexCapacity() int           { return m.indexCapacity }

func (m *meshBuffer) VertexBuffer() renderer.BufferHandle   { return m.vertexBuffer }
func (m *meshBuffer) InstanceBuffer() renderer.BufferHandle { return m.instanceBuffer }
func (m *meshBuffer) IndexBuffer() renderer.BufferHandle    { return m.indexBuffer }

func (m *meshBuffer) VertexCount() int   { return m.vertexCount }
func (m *meshBuffer) InstanceCount() int { return m.instanceCount }
func (m *meshBuffer) IndexCount() int    { return m.indexCount }

func (m *meshBuffer) Cursor() int {
	return m.vertexCount * m.vertexRecord
}

func (m *meshBuffer) Remaining() int {
	return m.vertexCapacity - m.VertexCount()
}

func (m *meshBuffer) InstanceRemaining() int {
	return m.instanceCapacity - m.InstanceCount()
}

// writable reports why the buffer cannot take appends, if it cannot.
func (m *meshBuffer) writable() error {
	switch {
	case m.disposed:
		return fmt.Errorf("%s: %w", m.label, ErrDisposed)
	case m.stagingReleased:
		return fmt.Errorf("%s: %w", m.label, ErrStagingReleased)
	case m.sealed:
		return fmt.Errorf("%s: %w", m.label, ErrSealed)
	}
	return nil
}

func (m *meshBuffer) AppendVertex(values ...float32) error {
	if err := m.writable(); err != nil {
		return err
	}
	if len(values) != m.vertexRecord {
		return fmt.Errorf("%s: %d floats, record is %d: %w", m.label, len(values), m.vertexRecord, ErrRecordSize)
	}
	if m.vertexCount >= m.vertexCapacity {
		return fmt.Errorf("%s: capacity %d: %w", m.label, m.vertexCapacity, ErrBufferFull)
	}
	m.vertices = append(m.vertices, values...)
	m.vertexCount++
	m.dirty = true
	return nil
}

func (m *meshBuffer) AppendVertices(records []float32) error {
	if err := m.writable(); err != nil {
		return err
	}
	if len(records)%m.vertexRecord != 0 {
		return fmt.Errorf("%s: %d floats is not a multiple of %d: %w", m.label, len(records), m.vertexRecord, ErrRecordSize)
	}
	if n := len(records) / m.vertexRecord; n > m.Remaining() {
		return fmt.Errorf("%s: %d records, %d remaining: %w", m.label, n, m.Remaining(), ErrBufferFull)
	}
	m.vertices = append(m.vertices, records...)
	m.vertexCount += len(records) / m.vertexRecord
	m.dirty = true
	return nil
}

func (m *meshBuffer) AppendInstance(values ...float32) error {
	if err := m.writable(); err != nil {
		return err
	}
	if m.instanceRecord == 0 || len(values) != m.instanceRecord {
		return fmt.Errorf("%s: %d floats, instance record is %d: %w", m.label, len(values), m.instanceRecord, ErrRecordSize)
	}
	if m.instanceCount >= m.instanceCapacity {
		return fmt.Errorf("%s: instance capacity %d: %w", m.label, m.instanceCapacity, ErrBufferFull)
	}
	m.instances = append(m.instances, values...)
	m.instanceCount++
	m.dirty = true
	return nil
}

func (m *meshBuffer) AppendIndices(indices ...uint32) error {
	if err := m.writable(); err != nil {
		return err
	}
	if m.indexCount+len(indices) > m.indexCapacity {
		return fmt.Errorf("%s: index capacity %d: %w", m.label, m.indexCapacity, ErrBufferFull)
	}
	m.indices = append(m.indices, indices...)
	m.indexCount += len(indices)
	m.dirty = true
	return nil
}

func (m *meshBuffer) Upload() error {
	if m.disposed {
		return fmt.Errorf("upload %s: %w", m.label, ErrDisposed)
	}
	if m.stagingReleased {
		return nil
	}
	if err := m.backend.UploadBuffer(m.vertexBuffer, common.SliceToBytes(m.vertices)); err != nil {
		return fmt.Errorf("upload %s vertices: %w", m.label, err)
	}
	if m.instanceBuffer != 0 {
		if err := m.backend.UploadBuffer(m.instanceBuffer, common.SliceToBytes(m.instances)); err != nil {
			return fmt.Errorf("upload %s instances: %w", m.label, err)
		}
	}
	if m.indexBuffer != 0 {
		if err := m.backend.UploadBuffer(m.indexBuffer, common.SliceToBytes(m.indices)); err != nil {
			return fmt.Errorf("upload %s indices: %w", m.label, err)
		}
	}
	m.dirty = false
	m.uploaded = true
	if m.releaseOnUpload {
		// counts stay valid for drawing, the storage goes
		m.stagingReleased = true
		m.sealed = true
		m.vertices, m.instances, m.indices = nil, nil, nil
	}
	return nil
}

func (m *meshBuffer) Dirty() bool    { return m.dirty }
func (m *meshBuffer) Uploaded() bool { return m.uploaded }

func (m *meshBuffer) Seal() {
	m.sealed = true
}

func (m *meshBuffer) Sealed() bool {
	return m.sealed
}

func (m *meshBuffer) Clear() {
	if m.disposed {
		return
	}
	if m.stagingReleased {
		m.stagingReleased = false
		m.vertices = make([]float32, 0, m.vertexCapacity*m.vertexRecord)
		if m.instanceCapacity > 0 {
			m.instances = make([]float32, 0, m.instanceCapacity*m.instanceRecord)
		}
		if m.indexCapacity > 0 {
			m.indices = make([]uint32, 0, m.indexCapacity)
		}
	}
	m.vertices = m.vertices[:0]
	m.instances = m.instances[:0]
	m.indices = m.indices[:0]
	m.vertexCount, m.instanceCount, m.indexCount = 0, 0, 0
	m.sealed = false
	m.uploaded = false
	m.dirty = true
}

func (m *meshBuffer) Staging(d vertex_layout.Divisor) []float32 {
	if d == vertex_layout.DivisorInstance {
		return m.instances
	}
	return m.vertices
}

func (m *meshBuffer) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	for _, h := range []renderer.BufferHandle{m.vertexBuffer, m.instanceBuffer, m.indexBuffer} {
		if h != 0 {
			m.backend.DisposeBuffer(h)
		}
	}
	m.vertexBuffer, m.instanceBuffer, m.indexBuffer = 0, 0, 0
	m.vertices, m.instances, m.indices = nil, nil, nil
	m.vertexCount, m.instanceCount, m.indexCount = 0, 0, 0
}

func (m *meshBuffer) Disposed() bool {
	return m.disposed
}
