// package headless provides a CPU-only renderer.Renderer that records buffer contents, uniform state and draw
// calls instead of talking to a GPU. It backs the engine's tests and the demo's offscreen mode.
package headless

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
)

// DrawCall is one recorded DrawMesh invocation.
type DrawCall struct {
	Program      string
	Topology     pipeline.Topology
	Count        int
	Instances    int
	VertexBuffer renderer.BufferHandle
	// Vertices is a copy of the vertex buffer's float contents for the drawn range.
	Vertices []float32
	// InstanceData is a copy of the instance buffer's float contents, nil for non-instanced meshes.
	InstanceData []float32
	// Indices is a copy of the first Count indices, nil for non-indexed meshes.
	Indices []uint32
	// Uniforms is a snapshot of the bound program's uniform state at draw time.
	Uniforms map[string][]float32
	Frame    int
}

type buffer struct {
	label string
	usage renderer.BufferUsage
	data  []byte
	size  int
}

type backend struct {
	mu *sync.Mutex

	buffers    map[renderer.BufferHandle]*buffer
	nextHandle renderer.BufferHandle
	created    int
	disposed   int
	uploads    int

	pipelines map[string]pipeline.Pipeline
	uniforms  map[string]map[string][]float32
	writes    map[string]int
	bound     pipeline.Pipeline

	draws     []DrawCall
	frame     int
	inFrame   bool
	width     int
	height    int
	drawFault func(m renderer.Mesh) error
}

// Backend is a recording renderer.Renderer with inspection helpers.
type Backend interface {
	renderer.Renderer

	// Draws returns the draw calls recorded since the last Reset.
	Draws() []DrawCall

	// Reset forgets recorded draws and uniform write counts; buffers and uniform state persist.
	Reset()

	// BufferBytes returns a copy of the bytes last uploaded to a buffer.
	//
	// Parameters:
	//   - h: the buffer handle
	//
	// Returns:
	//   - []byte: the uploaded bytes
	//   - bool: false if the handle is not live
	BufferBytes(h renderer.BufferHandle) ([]byte, bool)

	// BufferFloats decodes the bytes last uploaded to a buffer as little-endian float32 values.
	BufferFloats(h renderer.BufferHandle) ([]float32, bool)

	// LiveBuffers returns the number of buffers created and not yet disposed.
	LiveBuffers() int

	// Stats returns lifetime counts of created buffers, disposed buffers and uploads.
	Stats() (created, disposed, uploads int)

	// UniformWrites returns how many times a uniform of a program was set since the last Reset.
	UniformWrites(program, name string) int

	// Uniform returns the current value of a program's uniform.
	Uniform(program, name string) []float32

	// Frames returns the number of completed BeginFrame/EndFrame pairs.
	Frames() int
}

var _ Backend = &backend{}

// NewBackend creates a headless backend.
//
// Parameters:
//   - options: functional options to configure the backend
//
// Returns:
//   - Backend: the newly created backend
func NewBackend(options ...BackendBuilderOption) Backend {
	b := &backend{
		mu:        &sync.Mutex{},
		buffers:   make(map[renderer.BufferHandle]*buffer),
		pipelines: make(map[string]pipeline.Pipeline),
		uniforms:  make(map[string]map[string][]float32),
		writes:    make(map[string]int),
		width:     1280,
		height:    720,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *backend) CreateBuffer(label string, usage renderer.BufferUsage, size int) (renderer.BufferHandle, error) {
	if size <= 0 {
		return 0, fmt.Errorf("create buffer %q: invalid size %d", label, size)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHandle++
	b.buffers[b.nextHandle] = &buffer{label: label, usage: usage, size: size}
	b.created++
	return b.nextHandle, nil
}

func (b *backend) UploadBuffer(h renderer.BufferHandle, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[h]
	if !ok {
		return fmt.Errorf("upload buffer %d: %w", h, renderer.ErrUnknownBuffer)
	}
	if len(data) > buf.size {
		return fmt.Errorf("upload buffer %d: %d bytes into %d: %w", h, len(data), buf.size, renderer.ErrBufferOverflow)
	}
	buf.data = append(buf.data[:0], data...)
	b.uploads++
	return nil
}

func (b *backend) DisposeBuffer(h renderer.BufferHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.buffers[h]; ok {
		delete(b.buffers, h)
		b.disposed++
	}
}

func (b *backend) BeginShader(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.uniforms[p.PipelineKey()]; !ok {
		b.uniforms[p.PipelineKey()] = make(map[string][]float32)
	}
	b.bound = p
	return nil
}

func (b *backend) SetUniform(name string, values ...float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == nil {
		return
	}
	u, ok := b.bound.Uniform(name)
	if !ok {
		return
	}
	n := min(len(values), u.Floats)
	cur := b.uniforms[b.bound.PipelineKey()][name]
	if len(cur) != u.Floats {
		cur = make([]float32, u.Floats)
	}
	copy(cur, values[:n])
	b.uniforms[b.bound.PipelineKey()][name] = cur
	b.writes[b.bound.PipelineKey()+"/"+name]++
}

func (b *backend) EndShader() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = nil
}

func (b *backend) DrawMesh(m renderer.Mesh, topology pipeline.Topology, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == nil {
		return renderer.ErrNoShader
	}
	if b.drawFault != nil {
		if err := b.drawFault(m); err != nil {
			return err
		}
	}
	if err := renderer.ValidateDraw(b.bound, m, count, b.bufferInfo); err != nil {
		return err
	}

	snapshot := make(map[string][]float32, len(b.uniforms[b.bound.PipelineKey()]))
	for k, v := range b.uniforms[b.bound.PipelineKey()] {
		snapshot[k] = append([]float32(nil), v...)
	}
	floats := decodeFloats(b.buffers[m.VertexBuffer()].data)
	limit := min(len(floats), m.VertexCount()*m.Layout().RecordSize(0))
	var instanceData []float32
	if m.InstanceBuffer() != 0 {
		inst := decodeFloats(b.buffers[m.InstanceBuffer()].data)
		instanceData = inst[:min(len(inst), m.InstanceCount()*m.Layout().RecordSize(1))]
	}
	var indices []uint32
	if m.IndexBuffer() != 0 {
		indices = decodeIndices(b.buffers[m.IndexBuffer()].data, count)
	}
	b.draws = append(b.draws, DrawCall{
		Program:      b.bound.PipelineKey(),
		Topology:     topology,
		Count:        count,
		Instances:    renderer.InstancesToDraw(m),
		VertexBuffer: m.VertexBuffer(),
		Vertices:     floats[:limit],
		InstanceData: instanceData,
		Indices:      indices,
		Uniforms:     snapshot,
		Frame:        b.frame,
	})
	return nil
}

func (b *backend) bufferInfo(h renderer.BufferHandle) (int, bool) {
	buf, ok := b.buffers[h]
	if !ok {
		return 0, false
	}
	return buf.size, true
}

func (b *backend) Pipeline(key string) pipeline.Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pipelines[key]
}

func (b *backend) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range pipelines {
		if existing, ok := b.pipelines[p.PipelineKey()]; ok && existing != p {
			return fmt.Errorf("pipeline %q already registered", p.PipelineKey())
		}
		b.pipelines[p.PipelineKey()] = p
	}
	return nil
}

func (b *backend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("previous frame not yet ended")
	}
	b.inFrame = true
	return nil
}

func (b *backend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		b.inFrame = false
		b.frame++
	}
}

func (b *backend) Present() {}

func (b *backend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
}

func (b *backend) SetPresentMode(mode renderer.PresentMode) {}

func (b *backend) Draws() []DrawCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DrawCall, len(b.draws))
	copy(out, b.draws)
	return out
}

func (b *backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draws = nil
	b.writes = make(map[string]int)
}

func (b *backend) BufferBytes(h renderer.BufferHandle) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[h]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), buf.data...), true
}

func (b *backend) BufferFloats(h renderer.BufferHandle) ([]float32, bool) {
	data, ok := b.BufferBytes(h)
	if !ok {
		return nil, false
	}
	return decodeFloats(data), true
}

func (b *backend) LiveBuffers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers)
}

func (b *backend) Stats() (created, disposed, uploads int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created, b.disposed, b.uploads
}

func (b *backend) UniformWrites(program, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes[program+"/"+name]
}

func (b *backend) Uniform(program, name string) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float32(nil), b.uniforms[program][name]...)
}

func (b *backend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

func decodeIndices(data []byte, count int) []uint32 {
	out := make([]uint32, min(len(data)/4, count))
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

func decodeFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
