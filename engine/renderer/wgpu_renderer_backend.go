package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-sky/common"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// uniformAlignment is the minimum dynamic offset alignment guaranteed by WebGPU.
const uniformAlignment = 256

type wgpuBackendConfig struct {
	forceFallbackAdapter bool
	sampleCount          MSAASampleCount
	clearColor           [4]float64
	uniformRingBytes     int
}

type wgpuBuffer struct {
	buf   *wgpu.Buffer
	size  int
	usage BufferUsage
}

// wgpuProgram holds the native objects built for one pipeline.Pipeline. The CPU copy of the
// uniform block persists across frames; each draw snapshots it into the uniform ring.
type wgpuProgram struct {
	p               pipeline.Pipeline
	module          *wgpu.ShaderModule
	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	bindGroup       *wgpu.BindGroup
	blockBytes      int
	block           []float32
	pipelines       map[pipeline.Topology]*wgpu.RenderPipeline
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the main render pass
	clearColor  [4]float64

	// Frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	buffers    map[BufferHandle]*wgpuBuffer
	nextHandle BufferHandle

	programs map[string]*wgpuProgram
	bound    *wgpuProgram

	// uniform ring, one aligned slice per draw call, rewound every frame
	ring       *wgpu.Buffer
	ringSize   int
	ringCursor int
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, cfg wgpuBackendConfig) RendererBackend {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: cfg.sampleCount,
		clearColor:  cfg.clearColor,
		buffers:     make(map[BufferHandle]*wgpuBuffer),
		programs:    make(map[string]*wgpuProgram),
		ringSize:    common.AlignUp(cfg.uniformRingBytes, uniformAlignment),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	w.ring, err = d.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Uniform Ring",
		Size:  uint64(w.ringSize),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		panic(err)
	}

	return w
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	format := capabilities.Formats[0]
	if b.surfaceFormat != nil && *b.surfaceFormat != format {
		// pipelines target the old format
		for _, prog := range b.programs {
			for topo, rp := range prog.pipelines {
				rp.Release()
				delete(prog.pipelines, topo)
			}
		}
	}
	b.surfaceFormat = &format

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if msaaEnabled {
		// The render pass draws into the MSAA texture; the swapchain view is the resolve target.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(err)
		}
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			panic(err)
		}
	}

	// Depth texture sample count must match the color attachment.
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard // Don't store MSAA data, just resolve
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          b.msaaTextureView, // nil when MSAA is off; set in BeginFrame
				ResolveTarget: nil,               // set per-frame when MSAA is on
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       storeOp,
				ClearValue: wgpu.Color{
					R: b.clearColor[0], G: b.clearColor[1], B: b.clearColor[2], A: b.clearColor[3],
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, usage BufferUsage, size int) (BufferHandle, error) {
	if size <= 0 {
		return 0, fmt.Errorf("create buffer %q: invalid size %d", label, size)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	wgpuUsage := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	if usage == BufferUsageIndex {
		wgpuUsage = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}
	// queue writes must be 4-byte aligned
	size = common.AlignUp(size, 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             uint64(size),
		Usage:            wgpuUsage,
		MappedAtCreation: false,
	})
	if err != nil {
		return 0, fmt.Errorf("create buffer %q: %w", label, err)
	}
	b.nextHandle++
	b.buffers[b.nextHandle] = &wgpuBuffer{buf: buf, size: size, usage: usage}
	return b.nextHandle, nil
}

// UploadBuffer queues a write that lands before the next submitted frame. Writing the same buffer
// twice within one frame means every draw of that frame sees the last write.
func (b *wgpuRendererBackendImpl) UploadBuffer(h BufferHandle, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := b.buffers[h]
	if !ok {
		return fmt.Errorf("upload buffer %d: %w", h, ErrUnknownBuffer)
	}
	if len(data) > wb.size {
		return fmt.Errorf("upload buffer %d: %d bytes into %d: %w", h, len(data), wb.size, ErrBufferOverflow)
	}
	if len(data) == 0 {
		return nil
	}
	return b.queue.WriteBuffer(wb.buf, 0, data)
}

func (b *wgpuRendererBackendImpl) DisposeBuffer(h BufferHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if wb, ok := b.buffers[h]; ok {
		wb.buf.Release()
		delete(b.buffers, h)
	}
}

func (b *wgpuRendererBackendImpl) bufferInfo(h BufferHandle) (int, bool) {
	wb, ok := b.buffers[h]
	if !ok {
		return 0, false
	}
	return wb.size, true
}

func (b *wgpuRendererBackendImpl) BeginShader(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prog, ok := b.programs[p.PipelineKey()]
	if !ok {
		var err error
		prog, err = b.createProgram(p)
		if err != nil {
			return fmt.Errorf("begin shader %q: %w", p.PipelineKey(), err)
		}
		b.programs[p.PipelineKey()] = prog
	}
	b.bound = prog
	return nil
}

func (b *wgpuRendererBackendImpl) SetUniform(name string, values ...float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound == nil {
		return
	}
	u, ok := b.bound.p.Uniform(name)
	if !ok {
		return
	}
	n := min(len(values), u.Floats)
	copy(b.bound.block[u.Offset:u.Offset+n], values[:n])
}

func (b *wgpuRendererBackendImpl) EndShader() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = nil
}

func (b *wgpuRendererBackendImpl) DrawMesh(m Mesh, topology pipeline.Topology, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound == nil {
		return ErrNoShader
	}
	if b.framePass == nil {
		return errors.New("draw outside of a frame")
	}
	if err := ValidateDraw(b.bound.p, m, count, b.bufferInfo); err != nil {
		return err
	}
	instances := InstancesToDraw(m)
	if count == 0 || instances == 0 {
		return nil
	}

	rp, err := b.renderPipeline(b.bound, topology)
	if err != nil {
		return err
	}
	b.framePass.SetPipeline(rp)

	if b.bound.bindGroup != nil {
		offset := b.ringCursor
		if offset+b.bound.blockBytes > b.ringSize {
			return fmt.Errorf("uniform ring exhausted after %d bytes this frame", offset)
		}
		if err := b.queue.WriteBuffer(b.ring, uint64(offset), common.SliceToBytes(b.bound.block)); err != nil {
			return err
		}
		b.ringCursor += common.AlignUp(b.bound.blockBytes, uniformAlignment)
		b.framePass.SetBindGroup(0, b.bound.bindGroup, []uint32{uint32(offset)})
	}

	l := m.Layout()
	slot := uint32(0)
	if l.RecordSize(vertex_layout.DivisorVertex) > 0 {
		b.framePass.SetVertexBuffer(slot, b.buffers[m.VertexBuffer()].buf, 0, wgpu.WholeSize)
		slot++
	}
	if l.RecordSize(vertex_layout.DivisorInstance) > 0 {
		b.framePass.SetVertexBuffer(slot, b.buffers[m.InstanceBuffer()].buf, 0, wgpu.WholeSize)
	}

	if m.IndexBuffer() != 0 {
		b.framePass.SetIndexBuffer(b.buffers[m.IndexBuffer()].buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		b.framePass.DrawIndexed(uint32(count), uint32(instances), 0, 0, 0)
		return nil
	}
	b.framePass.Draw(uint32(count), uint32(instances), 0, 0)
	return nil
}

// createProgram compiles the shader module and creates the uniform bind group for a pipeline.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) createProgram(p pipeline.Pipeline) (*wgpuProgram, error) {
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: p.PipelineKey(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.Source(),
		},
	})
	if err != nil {
		return nil, err
	}

	prog := &wgpuProgram{
		p:         p,
		module:    module,
		block:     make([]float32, p.UniformBlockFloats()),
		pipelines: make(map[pipeline.Topology]*wgpu.RenderPipeline),
	}

	var groupLayouts []*wgpu.BindGroupLayout
	if p.UniformBlockFloats() > 0 {
		prog.blockBytes = common.AlignUp(p.UniformBlockFloats()*4, 16)
		prog.bindGroupLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label: p.PipelineKey() + " Uniforms",
			Entries: []wgpu.BindGroupLayoutEntry{
				{
					Binding:    0,
					Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
					Buffer: wgpu.BufferBindingLayout{
						Type:             wgpu.BufferBindingTypeUniform,
						HasDynamicOffset: true,
						MinBindingSize:   uint64(prog.blockBytes),
					},
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bind group layout: %w", err)
		}
		prog.bindGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  p.PipelineKey() + " Bind Group",
			Layout: prog.bindGroupLayout,
			Entries: []wgpu.BindGroupEntry{
				{
					Binding: 0,
					Buffer:  b.ring,
					Offset:  0,
					Size:    uint64(prog.blockBytes),
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bind group: %w", err)
		}
		groupLayouts = append(groupLayouts, prog.bindGroupLayout)
	}

	prog.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: groupLayouts,
	})
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// renderPipeline returns the native pipeline of a program for a topology, creating it on first use.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) renderPipeline(prog *wgpuProgram, topology pipeline.Topology) (*wgpu.RenderPipeline, error) {
	if rp, ok := prog.pipelines[topology]; ok {
		return rp, nil
	}
	p := prog.p

	target := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	target.Blend = blendState(p.BlendMode())

	depthCompare := wgpu.CompareFunctionLess
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " " + topology.String() + " Render Pipeline",
		Layout: prog.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     prog.module,
			EntryPoint: p.VertexEntryPoint(),
			Buffers:    vertexBufferLayouts(p.Layout()),
		},
		Fragment: &wgpu.FragmentState{
			Module:     prog.module,
			EntryPoint: p.FragmentEntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  primitiveTopology(topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline for %q: %w", topology, p.PipelineKey(), err)
	}
	prog.pipelines[topology] = created
	return created, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A previous frame's surface texture still held means Present was skipped;
	// acquiring another one would fail with "Surface image is already acquired".
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.ringCursor = 0

	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.framePass = nil
		b.frameSurface = nil
		b.frameView = nil
		return
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.framePass = nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

// vertexBufferLayouts maps a vertex layout to one WebGPU buffer layout per populated divisor class,
// vertex records in slot 0 followed by instance records.
func vertexBufferLayouts(l vertex_layout.Layout) []wgpu.VertexBufferLayout {
	var out []wgpu.VertexBufferLayout
	for _, d := range []vertex_layout.Divisor{vertex_layout.DivisorVertex, vertex_layout.DivisorInstance} {
		attrs := l.AttributesFor(d)
		if len(attrs) == 0 {
			continue
		}
		stepMode := wgpu.VertexStepModeVertex
		if d == vertex_layout.DivisorInstance {
			stepMode = wgpu.VertexStepModeInstance
		}
		vas := make([]wgpu.VertexAttribute, 0, len(attrs))
		for _, a := range attrs {
			vas = append(vas, wgpu.VertexAttribute{
				Format:         vertexFormat(a.Components),
				Offset:         uint64(a.Offset * 4),
				ShaderLocation: uint32(a.Location),
			})
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: uint64(l.Stride(d)),
			StepMode:    stepMode,
			Attributes:  vas,
		})
	}
	return out
}

func vertexFormat(components int) wgpu.VertexFormat {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func primitiveTopology(t pipeline.Topology) wgpu.PrimitiveTopology {
	switch t {
	case pipeline.TopologyPoints:
		return wgpu.PrimitiveTopologyPointList
	case pipeline.TopologyLines:
		return wgpu.PrimitiveTopologyLineList
	case pipeline.TopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func blendState(mode pipeline.BlendMode) *wgpu.BlendState {
	switch mode {
	case pipeline.BlendAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case pipeline.BlendAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	return nil
}
