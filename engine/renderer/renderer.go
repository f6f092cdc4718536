package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// SurfaceSource is the window capability the renderer draws into.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	clearColor           [4]float64
	uniformRingBytes     int
}

// Renderer is the frame-level rendering API owned by the render goroutine.
//
// It is a GraphicsBackend for render systems plus the frame lifecycle (BeginFrame, EndFrame, Present)
// driven by the engine loop, and a cache of registered pipelines.
type Renderer interface {
	GraphicsBackend

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines caches pipelines by key. Backends build native pipeline objects lazily
	// the first time a pipeline is drawn with a given topology.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if a different pipeline is already registered under the same key
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// BeginFrame acquires the next surface texture and opens the frame's render pass.
	//
	// Returns:
	//   - error: error if the surface is not ready; the frame must then be skipped
	BeginFrame() error

	// EndFrame closes the render pass and submits the recorded commands.
	EndFrame()

	// Present displays the frame submitted by EndFrame.
	Present()

	// Resize configures the underlying backend to handle a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode changes the present mode at the next Resize.
	SetPresentMode(mode PresentMode)
}

// RendererBackend is the top-level backend interface for the Renderer.
type RendererBackend interface {
	GraphicsBackend
	ConfigureSurface(width, height int)
	SetPresentMode(mode PresentMode)
	BeginFrame() error
	EndFrame()
	Present()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer drawing into the given window's surface.
//
// Parameters:
//   - backendType: the backend implementation to use
//   - w: the window providing the surface descriptor and initial size
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the newly created renderer
func NewRenderer(backendType RendererBackendType, w SurfaceSource, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:               &sync.Mutex{},
		pipelineCache:    make(map[string]pipeline.Pipeline),
		backendType:      backendType,
		clearColor:       [4]float64{0, 0, 0, 1},
		uniformRingBytes: 4 << 20,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(w.SurfaceDescriptor(), wgpuBackendConfig{
			forceFallbackAdapter: r.forceFallbackAdapter,
			sampleCount:          msaa,
			clearColor:           r.clearColor,
			uniformRingBytes:     r.uniformRingBytes,
		})
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.backend.ConfigureSurface(w.Width(), w.Height())
	return r
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		if existing, ok := r.pipelineCache[p.PipelineKey()]; ok && existing != p {
			return fmt.Errorf("pipeline %q already registered", p.PipelineKey())
		}
		r.pipelineCache[p.PipelineKey()] = p
	}
	return nil
}

func (r *renderer) CreateBuffer(label string, usage BufferUsage, size int) (BufferHandle, error) {
	return r.backend.CreateBuffer(label, usage, size)
}

func (r *renderer) UploadBuffer(h BufferHandle, data []byte) error {
	return r.backend.UploadBuffer(h, data)
}

func (r *renderer) DisposeBuffer(h BufferHandle) {
	r.backend.DisposeBuffer(h)
}

func (r *renderer) BeginShader(p pipeline.Pipeline) error {
	return r.backend.BeginShader(p)
}

func (r *renderer) SetUniform(name string, values ...float32) {
	r.backend.SetUniform(name, values...)
}

func (r *renderer) EndShader() {
	r.backend.EndShader()
}

func (r *renderer) DrawMesh(m Mesh, topology pipeline.Topology, count int) error {
	return r.backend.DrawMesh(m, topology, count)
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}
