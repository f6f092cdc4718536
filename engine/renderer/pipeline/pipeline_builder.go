package pipeline

import "github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithSource sets the WGSL source containing the vertex and fragment entry points.
//
// Parameters:
//   - source: the WGSL module source
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader source for this pipeline
func WithSource(source string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.source = source
	}
}

// WithEntryPoints overrides the vertex and fragment entry point names.
//
// Parameters:
//   - vertex: vertex stage entry point
//   - fragment: fragment stage entry point
//
// Returns:
//   - PipelineBuilderOption: a function that sets the entry points for this pipeline
func WithEntryPoints(vertex, fragment string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexEntry = vertex
		p.fragmentEntry = fragment
	}
}

// WithLayout sets the vertex layout consumed by the vertex stage.
//
// Parameters:
//   - l: the vertex layout
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex layout for this pipeline
func WithLayout(l vertex_layout.Layout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.layout = l
	}
}

// WithUniform appends a member to the uniform block. Members are laid out in declaration order,
// each starting on a 4-float boundary so a WGSL struct of vec4 and mat4x4 members matches byte for byte.
//
// Parameters:
//   - name: the uniform name used with SetUniform
//   - floats: the float count, 1..4 or 16
//
// Returns:
//   - PipelineBuilderOption: a function that declares the uniform
func WithUniform(name string, floats int) PipelineBuilderOption {
	return func(p *pipeline) {
		p.pendingUniform = append(p.pendingUniform, Uniform{Name: name, Floats: floats})
	}
}

// WithDepthTestEnabled sets whether depth testing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth test enabled state for this pipeline
func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth write enabled state for this pipeline
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthWriteEnabled = enabled
	}
}

// WithBlendMode sets the color blend mode for this pipeline.
//
// Parameters:
//   - mode: the blend mode
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend mode for this pipeline
func WithBlendMode(mode BlendMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendMode = mode
	}
}
