package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() vertex_layout.Layout {
	return vertex_layout.NewLayout(
		vertex_layout.WithNamedAttribute(vertex_layout.SemanticPosition, "a_corner", 2, vertex_layout.DivisorVertex),
		vertex_layout.WithNamedAttribute(vertex_layout.SemanticPosition, "a_center", 3, vertex_layout.DivisorInstance),
		vertex_layout.WithAttribute(vertex_layout.SemanticUV, 2, vertex_layout.DivisorVertex),
		vertex_layout.WithCustomAttribute("a_size", 1, vertex_layout.DivisorInstance),
	)
}

func TestProcessGeneratesVertexInput(t *testing.T) {
	src := "//@oxy:vertex_input VertexInput\nfn main() {}"
	out, err := NewPreProcessor().Process(src, testLayout(), nil)
	require.NoError(t, err)

	want := "struct VertexInput {\n" +
		"    @location(0) a_corner: vec2<f32>,\n" +
		"    @location(2) a_uv: vec2<f32>,\n" +
		"    @location(1) a_center: vec3<f32>,\n" +
		"    @location(3) a_size: f32,\n" +
		"};\nfn main() {}"
	assert.Equal(t, want, out)
}

func TestProcessGeneratesUniformBlock(t *testing.T) {
	pp := NewPreProcessor()
	uniforms := []pipeline.Uniform{{Name: "u_projView", Floats: 16}, {Name: "u_alpha", Floats: 1}}
	out, err := pp.Process("  //@oxy:uniforms 0 0 u", testLayout(), uniforms)
	require.NoError(t, err)

	assert.Contains(t, out, "u_projView: mat4x4<f32>,")
	assert.Contains(t, out, "u_alpha: vec4<f32>,")
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> u: Uniforms;")
	require.Len(t, pp.Declarations(), 1)
	assert.Equal(t, 0, *pp.Declarations()[0].Group)
}

func TestProcessIncludesChunks(t *testing.T) {
	out, err := NewPreProcessor().Process("//@oxy:include effects\n//@oxy:include color", testLayout(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "fn apply_effects(")
	assert.Contains(t, out, "fn star_intensity(")
	assert.False(t, strings.Contains(out, annotationPrefix))
}

func TestProcessErrors(t *testing.T) {
	pp := NewPreProcessor()
	cases := map[string]string{
		"unknown type":  "//@oxy:bogus x",
		"unknown chunk": "//@oxy:include lighting",
		"bad group":     "//@oxy:uniforms a 0 u",
		"missing args":  "//@oxy:vertex_input",
		"empty":         "//@oxy:",
		"no uniforms":   "//@oxy:uniforms 0 0 u",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := pp.Process(src, testLayout(), nil)
			assert.Error(t, err)
		})
	}
}

func TestPlainLinesPassThrough(t *testing.T) {
	src := "let x = 1.0; // @oxy: in a trailing comment is left alone"
	out, err := NewPreProcessor().Process(src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}
