package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

// BufferHandle is an opaque reference to a GPU buffer. The zero handle is never valid.
type BufferHandle uint64

// BufferUsage is the binding role of a GPU buffer.
type BufferUsage int

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
)

var (
	// ErrUnknownBuffer is returned when a handle was never created or has been disposed.
	ErrUnknownBuffer = errors.New("unknown or disposed buffer handle")
	// ErrBufferOverflow is returned when an upload is larger than the buffer it targets.
	ErrBufferOverflow = errors.New("upload exceeds buffer size")
	// ErrNoShader is returned when a draw or uniform write happens outside BeginShader/EndShader.
	ErrNoShader = errors.New("no shader bound")
	// ErrStaleMesh is returned when a mesh no longer matches the GPU state it refers to.
	ErrStaleMesh = errors.New("stale mesh")
)

// Mesh is a drawable source of vertex, instance and index data resident in GPU buffers.
type Mesh interface {
	Layout() vertex_layout.Layout
	VertexBuffer() BufferHandle
	VertexCount() int
	// InstanceBuffer returns the per-instance buffer, or 0 when the layout has no instance attributes.
	InstanceBuffer() BufferHandle
	InstanceCount() int
	// IndexBuffer returns the index buffer, or 0 for non-indexed meshes.
	IndexBuffer() BufferHandle
	IndexCount() int
}

// GraphicsBackend is the synchronous, render-thread-only GPU capability used by render systems.
type GraphicsBackend interface {
	// CreateBuffer allocates a GPU buffer of the given byte size with no contents.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: vertex or index binding
	//   - size: size in bytes, must be positive
	//
	// Returns:
	//   - BufferHandle: the new buffer
	//   - error: error if the size is invalid or the device rejects the allocation
	CreateBuffer(label string, usage BufferUsage, size int) (BufferHandle, error)

	// UploadBuffer writes data to the start of a buffer.
	//
	// Parameters:
	//   - h: the target buffer
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: ErrUnknownBuffer or ErrBufferOverflow
	UploadBuffer(h BufferHandle, data []byte) error

	// DisposeBuffer releases a buffer. Unknown handles are ignored.
	DisposeBuffer(h BufferHandle)

	// BeginShader binds a shader program for the following uniform writes and draws.
	//
	// Parameters:
	//   - p: the pipeline to bind
	//
	// Returns:
	//   - error: error if the program cannot be bound
	BeginShader(p pipeline.Pipeline) error

	// SetUniform writes up to the declared float count of a uniform of the bound program.
	// Values persist across frames until overwritten. Unknown names are ignored.
	SetUniform(name string, values ...float32)

	// EndShader unbinds the current program.
	EndShader()

	// DrawMesh draws count vertices (indices for indexed meshes) of m with the bound program, instanced
	// InstanceCount times when the program's layout has instance attributes.
	//
	// Parameters:
	//   - m: the mesh to draw
	//   - topology: primitive assembly
	//   - count: number of vertices or indices
	//
	// Returns:
	//   - error: ErrNoShader, ErrStaleMesh or a backend error
	DrawMesh(m Mesh, topology pipeline.Topology, count int) error
}

// BufferInfo reports whether a handle is live and its byte size.
type BufferInfo func(h BufferHandle) (size int, ok bool)

// ValidateDraw checks that a mesh can be drawn with a program: both must agree on record strides,
// every referenced buffer must be live and large enough, and count must not exceed the mesh contents.
// Backends call it at the draw site so a mismatched or stale mesh surfaces as an error instead of a GPU fault.
//
// Parameters:
//   - p: the bound pipeline
//   - m: the mesh to draw
//   - count: requested vertex or index count
//   - info: lookup of live buffers
//
// Returns:
//   - error: nil when the draw is valid, otherwise an error wrapping ErrStaleMesh
func ValidateDraw(p pipeline.Pipeline, m Mesh, count int, info BufferInfo) error {
	if p == nil {
		return ErrNoShader
	}
	want, have := p.Layout(), m.Layout()
	if have == nil {
		return fmt.Errorf("%w: mesh has no layout", ErrStaleMesh)
	}
	for _, d := range []vertex_layout.Divisor{vertex_layout.DivisorVertex, vertex_layout.DivisorInstance} {
		if want.Stride(d) != have.Stride(d) {
			return fmt.Errorf("%w: divisor %d stride %d, program %q expects %d",
				ErrStaleMesh, d, have.Stride(d), p.PipelineKey(), want.Stride(d))
		}
	}
	if count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrStaleMesh, count)
	}

	checkBuffer := func(role string, h BufferHandle, need int) error {
		size, ok := info(h)
		if !ok {
			return fmt.Errorf("%w: %s buffer %d is not live", ErrStaleMesh, role, h)
		}
		if need > size {
			return fmt.Errorf("%w: %s buffer %d holds %d bytes, draw needs %d", ErrStaleMesh, role, h, size, need)
		}
		return nil
	}

	if m.IndexBuffer() != 0 {
		if count > m.IndexCount() {
			return fmt.Errorf("%w: count %d exceeds %d indices", ErrStaleMesh, count, m.IndexCount())
		}
		if err := checkBuffer("index", m.IndexBuffer(), m.IndexCount()*4); err != nil {
			return err
		}
	} else if count > m.VertexCount() {
		return fmt.Errorf("%w: count %d exceeds %d vertices", ErrStaleMesh, count, m.VertexCount())
	}
	if err := checkBuffer("vertex", m.VertexBuffer(), m.VertexCount()*have.Stride(vertex_layout.DivisorVertex)); err != nil {
		return err
	}
	if have.RecordSize(vertex_layout.DivisorInstance) > 0 {
		if err := checkBuffer("instance", m.InstanceBuffer(), m.InstanceCount()*have.Stride(vertex_layout.DivisorInstance)); err != nil {
			return err
		}
	}
	return nil
}

// InstancesToDraw returns the instance count DrawMesh issues for a mesh.
func InstancesToDraw(m Mesh) int {
	if m.Layout().RecordSize(vertex_layout.DivisorInstance) == 0 {
		return 1
	}
	return m.InstanceCount()
}
