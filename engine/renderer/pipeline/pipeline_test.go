package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() vertex_layout.Layout {
	return vertex_layout.NewLayout(vertex_layout.WithAttribute(vertex_layout.SemanticPosition, 3, vertex_layout.DivisorVertex))
}

func TestUniformBlockLayout(t *testing.T) {
	p := NewPipeline("stars",
		WithLayout(testLayout()),
		WithUniform("u_projView", 16),
		WithUniform("u_camPos", 3),
		WithUniform("u_alpha", 1),
	)

	u, ok := p.Uniform("u_camPos")
	require.True(t, ok)
	assert.Equal(t, 16, u.Offset)
	a, ok := p.Uniform("u_alpha")
	require.True(t, ok)
	assert.Equal(t, 20, a.Offset)
	assert.Equal(t, 24, p.UniformBlockFloats())
	_, ok = p.Uniform("u_missing")
	assert.False(t, ok)
	assert.Len(t, p.Uniforms(), 3)
}

func TestDefaults(t *testing.T) {
	p := NewPipeline("lines", WithLayout(testLayout()), WithBlendMode(BlendAdditive), WithEntryPoints("v", "f"))
	assert.Equal(t, "lines", p.PipelineKey())
	assert.Equal(t, "v", p.VertexEntryPoint())
	assert.Equal(t, "f", p.FragmentEntryPoint())
	assert.Equal(t, BlendAdditive, p.BlendMode())
	assert.True(t, p.DepthTestEnabled())
	assert.False(t, p.DepthWriteEnabled())
}

func TestInvalidPipelinesPanic(t *testing.T) {
	assert.Panics(t, func() { NewPipeline("no-layout") })
	assert.Panics(t, func() { NewPipeline("bad", WithLayout(testLayout()), WithUniform("u", 8)) })
	assert.Panics(t, func() {
		NewPipeline("dup", WithLayout(testLayout()), WithUniform("u", 4), WithUniform("u", 4))
	})
}

func TestTopologyString(t *testing.T) {
	assert.Equal(t, "points", TopologyPoints.String())
	assert.Equal(t, "triangles", TopologyTriangles.String())
}
