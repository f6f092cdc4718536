package render_system

import (
	"embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// DefaultVariableBlocks is the number of vec4 magnitude and time blocks of a variable star, 20 samples in all.
const DefaultVariableBlocks = 5

// variableSamples is the light curve length packed into a variable-star record.
const variableSamples = DefaultVariableBlocks * 4

// Custom attribute names of the variable-star layout.
const (
	attrVariableCount = "a_nVari"
	attrVariableMag   = "a_vmag"
	attrVariableTime  = "a_vtime"
)

// globalUniforms are declared by every program in this order, ahead of the strategy's own members.
var globalUniforms = []pipeline.Uniform{
	{Name: UniformProjView, Floats: 16},
	{Name: UniformCamPos, Floats: 3},
	{Name: UniformCamDir, Floats: 3},
	{Name: UniformCamUp, Floats: 3},
	{Name: UniformClip, Floats: 2},
	{Name: UniformEffects, Floats: 4},
	{Name: UniformVelDir, Floats: 4},
}

// PointCloudLayout is the vertex record of a star: position, proper motion per day, color and size. Variable
// stars append a sample count followed by DefaultVariableBlocks magnitude blocks and as many time blocks.
//
// Parameters:
//   - variable: whether to include the light curve attributes
//
// Returns:
//   - vertex_layout.Layout: the point record layout
func PointCloudLayout(variable bool) vertex_layout.Layout {
	options := []vertex_layout.LayoutBuilderOption{
		vertex_layout.WithAttribute(vertex_layout.SemanticPosition, 3, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticProperMotion, 3, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticColor, 4, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticSize, 1, vertex_layout.DivisorVertex),
	}
	if variable {
		options = append(options,
			vertex_layout.WithCustomAttribute(attrVariableCount, 1, vertex_layout.DivisorVertex),
			vertex_layout.WithCustomAttributeBlocks(attrVariableMag, DefaultVariableBlocks, 4, vertex_layout.DivisorVertex),
			vertex_layout.WithCustomAttributeBlocks(attrVariableTime, DefaultVariableBlocks, 4, vertex_layout.DivisorVertex),
		)
	}
	return vertex_layout.NewLayout(options...)
}

// BillboardLayout is a unit quad corner with its texture coordinate per vertex, and center, color and size
// per instance.
func BillboardLayout() vertex_layout.Layout {
	return vertex_layout.NewLayout(
		vertex_layout.WithNamedAttribute(vertex_layout.SemanticPosition, "a_corner", 2, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticUV, 2, vertex_layout.DivisorVertex),
		vertex_layout.WithNamedAttribute(vertex_layout.SemanticPosition, "a_center", 3, vertex_layout.DivisorInstance),
		vertex_layout.WithAttribute(vertex_layout.SemanticColor, 4, vertex_layout.DivisorInstance),
		vertex_layout.WithAttribute(vertex_layout.SemanticSize, 1, vertex_layout.DivisorInstance),
	)
}

// LineLayout is a line or point vertex: position, color and the coordinate along its strip.
func LineLayout() vertex_layout.Layout {
	return vertex_layout.NewLayout(
		vertex_layout.WithAttribute(vertex_layout.SemanticPosition, 3, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticColor, 4, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticCoord, 1, vertex_layout.DivisorVertex),
	)
}

// quadModel is the two-triangle unit quad shared by every billboard instance, as (corner.xy, uv.xy) records.
var quadModel = []float32{
	-0.5, -0.5, 0, 1,
	0.5, -0.5, 1, 1,
	0.5, 0.5, 1, 0,
	-0.5, -0.5, 0, 1,
	0.5, 0.5, 1, 0,
	-0.5, 0.5, 0, 0,
}

// quadModelVertices is the vertex count of quadModel.
const quadModelVertices = 6

// PointCloudPipeline builds the additive star program.
//
// Parameters:
//   - key: the pipeline key
//   - variable: whether the program animates variable stars
//
// Returns:
//   - pipeline.Pipeline: the program
//   - error: if the shader annotations cannot be expanded
func PointCloudPipeline(key string, variable bool) (pipeline.Pipeline, error) {
	file := "points.wgsl"
	if variable {
		file = "points_variable.wgsl"
	}
	extra := []pipeline.Uniform{
		{Name: UniformAlphaSizeBrRc, Floats: 4},
		{Name: UniformOpacity, Floats: 2},
		{Name: UniformTime, Floats: 2},
		{Name: UniformSizeParams, Floats: 4},
		{Name: UniformStarTex, Floats: 1},
	}
	return compose(key, file, PointCloudLayout(variable), extra, pipeline.BlendAdditive)
}

// BillboardPipeline builds the additive textured-quad program.
func BillboardPipeline(key string) (pipeline.Pipeline, error) {
	extra := []pipeline.Uniform{
		{Name: UniformSizeParams, Floats: 4},
		{Name: UniformStarTex, Floats: 1},
	}
	return compose(key, "billboards.wgsl", BillboardLayout(), extra, pipeline.BlendAdditive)
}

// LinePipeline builds the alpha-blended line and point program.
func LinePipeline(key string) (pipeline.Pipeline, error) {
	return compose(key, "lines.wgsl", LineLayout(), nil, pipeline.BlendAlpha)
}

func compose(key, file string, layout vertex_layout.Layout, extra []pipeline.Uniform, blend pipeline.BlendMode) (pipeline.Pipeline, error) {
	src, err := shaderFS.ReadFile("shaders/" + file)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", key, err)
	}
	uniforms := append(append([]pipeline.Uniform{}, globalUniforms...), extra...)
	wgsl, err := shader.NewPreProcessor().Process(string(src), layout, uniforms)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %s: %w", key, file, err)
	}

	options := []pipeline.PipelineBuilderOption{
		pipeline.WithSource(wgsl),
		pipeline.WithLayout(layout),
		pipeline.WithBlendMode(blend),
		pipeline.WithDepthWriteEnabled(false),
	}
	for _, u := range uniforms {
		options = append(options, pipeline.WithUniform(u.Name, u.Floats))
	}
	return pipeline.NewPipeline(key, options...), nil
}
