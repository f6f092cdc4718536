package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sky/common"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
)

// Topology is the primitive assembly used for a draw call.
type Topology int

const (
	TopologyPoints Topology = iota
	TopologyLines
	TopologyLineStrip
	TopologyTriangles
)

func (t Topology) String() string {
	switch t {
	case TopologyPoints:
		return "points"
	case TopologyLines:
		return "lines"
	case TopologyLineStrip:
		return "line-strip"
	case TopologyTriangles:
		return "triangles"
	}
	return fmt.Sprintf("topology(%d)", int(t))
}

// BlendMode selects how fragment colors are combined with the target.
type BlendMode int

const (
	// BlendNone writes fragments opaquely.
	BlendNone BlendMode = iota
	// BlendAlpha is standard src-alpha / one-minus-src-alpha blending.
	BlendAlpha
	// BlendAdditive adds src-alpha weighted color to the target, used for glowing point sprites.
	BlendAdditive
)

// Uniform declares one member of a pipeline's uniform block.
type Uniform struct {
	Name string
	// Floats is the number of floats the caller may set, 1..4 or 16.
	Floats int
	// Offset is the float offset of the member inside the block, aligned to 4 floats.
	Offset int
}

// pipeline is the implementation of the Pipeline interface.
// It describes a shader program: WGSL source, the vertex layout it consumes, its uniform block and fixed-function state.
type pipeline struct {
	pipelineKey string

	source         string
	vertexEntry    string
	fragmentEntry  string
	layout         vertex_layout.Layout
	uniforms       []Uniform
	uniformIndex   map[string]int
	uniformFloats  int
	pendingUniform []Uniform

	depthTestEnabled  bool
	depthWriteEnabled bool
	blendMode         BlendMode
}

// Pipeline is a shader program description handed to a graphics backend's BeginShader.
// Backends create their native pipeline objects lazily, keyed by PipelineKey and topology.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Source returns the WGSL module holding both entry points.
	//
	// Returns:
	//   - string: shader source
	Source() string

	// VertexEntryPoint returns the vertex stage entry point name.
	VertexEntryPoint() string

	// FragmentEntryPoint returns the fragment stage entry point name.
	FragmentEntryPoint() string

	// Layout returns the vertex layout consumed by the vertex stage.
	//
	// Returns:
	//   - vertex_layout.Layout: the layout, never nil
	Layout() vertex_layout.Layout

	// Uniforms returns the members of the uniform block in declaration order.
	//
	// Returns:
	//   - []Uniform: a copy of the uniform declarations
	Uniforms() []Uniform

	// Uniform looks up a uniform declaration by name.
	//
	// Parameters:
	//   - name: the uniform name
	//
	// Returns:
	//   - Uniform: the declaration
	//   - bool: true if the pipeline declares the uniform
	Uniform(name string) (Uniform, bool)

	// UniformBlockFloats returns the float size of the whole uniform block.
	UniformBlockFloats() int

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// BlendMode returns the color blend mode of this pipeline.
	BlendMode() BlendMode
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a new Pipeline with the given key and options.
// Defaults: entry points "vs_main" and "fs_main", alpha blending, depth test on, depth write off.
// Panics if no layout is provided or a uniform is declared twice or with an unsupported size.
//
// Parameters:
//   - key: the unique identifier for the pipeline
//   - options: functional options to configure the pipeline
//
// Returns:
//   - Pipeline: the newly created pipeline
func NewPipeline(key string, options ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:      key,
		vertexEntry:      "vs_main",
		fragmentEntry:    "fs_main",
		uniformIndex:     make(map[string]int),
		depthTestEnabled: true,
		blendMode:        BlendAlpha,
	}
	for _, option := range options {
		option(p)
	}
	if p.layout == nil {
		panic(fmt.Sprintf("pipeline %q: a vertex layout is required", key))
	}

	for _, u := range p.pendingUniform {
		if u.Floats != 16 && (u.Floats < 1 || u.Floats > 4) {
			panic(fmt.Sprintf("pipeline %q: uniform %q has %d floats, want 1..4 or 16", key, u.Name, u.Floats))
		}
		if _, dup := p.uniformIndex[u.Name]; dup {
			panic(fmt.Sprintf("pipeline %q: duplicate uniform %q", key, u.Name))
		}
		u.Offset = p.uniformFloats
		p.uniformFloats += common.AlignUp(u.Floats, 4)
		p.uniformIndex[u.Name] = len(p.uniforms)
		p.uniforms = append(p.uniforms, u)
	}
	p.pendingUniform = nil
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Source() string {
	return p.source
}

func (p *pipeline) VertexEntryPoint() string {
	return p.vertexEntry
}

func (p *pipeline) FragmentEntryPoint() string {
	return p.fragmentEntry
}

func (p *pipeline) Layout() vertex_layout.Layout {
	return p.layout
}

func (p *pipeline) Uniforms() []Uniform {
	out := make([]Uniform, len(p.uniforms))
	copy(out, p.uniforms)
	return out
}

func (p *pipeline) Uniform(name string) (Uniform, bool) {
	i, ok := p.uniformIndex[name]
	if !ok {
		return Uniform{}, false
	}
	return p.uniforms[i], true
}

func (p *pipeline) UniformBlockFloats() int {
	return p.uniformFloats
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendMode() BlendMode {
	return p.blendMode
}
