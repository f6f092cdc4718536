// pre_processor.go implements the WGSL pre-processor. It replaces @oxy: annotations with chunks from the
// chunk registry or with declarations generated from a vertex layout and a uniform block.
//
// The uniform block is laid out one member per 16-byte slot: members of 1 to 4 floats are declared as
// vec4<f32> and 16-float members as mat4x4<f32>, matching the offsets pipeline.NewPipeline assigns.
package shader

import (
	"embed"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
)

//go:embed chunks/*.wgsl
var chunkFS embed.FS

// UniformStructName is the WGSL type name of the generated uniform block.
const UniformStructName = "Uniforms"

type preProcessor struct {
	chunks map[AnnotationArg]string

	// declarations accumulates uniforms annotations during a Process call.
	declarations []Annotation
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process expands every annotation of source.
	//
	// Parameters:
	//   - source: the WGSL source containing annotations
	//   - layout: the vertex layout the vertex_input struct is generated from
	//   - uniforms: the uniform block members in declaration order
	//
	// Returns:
	//   - string: the expanded WGSL
	//   - error: if an annotation is malformed or a generated declaration is impossible
	Process(source string, layout vertex_layout.Layout, uniforms []pipeline.Uniform) (string, error)

	// Declarations returns the uniforms annotations found by the last Process call, in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the embedded chunk registry loaded.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor() PreProcessor {
	p := &preProcessor{chunks: make(map[AnnotationArg]string, len(validChunks))}
	for _, c := range validChunks {
		src, err := chunkFS.ReadFile("chunks/" + string(c) + ".wgsl")
		if err != nil {
			panic(fmt.Sprintf("shader: missing chunk %q: %v", c, err))
		}
		p.chunks[c] = string(src)
	}
	return p
}

func (p *preProcessor) Process(source string, layout vertex_layout.Layout, uniforms []pipeline.Uniform) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			out = append(out, p.chunks[a.Args[0]])
		case AnnotationTypeVertexInput:
			if layout == nil {
				return "", fmt.Errorf("line %d: @oxy vertex_input without a vertex layout", a.Line)
			}
			out = append(out, vertexInputStruct(string(a.Args[0]), layout))
		case AnnotationTypeUniforms:
			if len(uniforms) == 0 {
				return "", fmt.Errorf("line %d: @oxy uniforms without uniform members", a.Line)
			}
			block, err := uniformStruct(uniforms)
			if err != nil {
				return "", fmt.Errorf("line %d: %w", a.Line, err)
			}
			out = append(out, block)
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: %s;", *a.Group, *a.Binding, a.Args[0], UniformStructName))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// vertexInputStruct declares vertex attributes before instance attributes, the order the backend binds
// its vertex buffers in. Locations are the layout's declaration indices.
func vertexInputStruct(name string, layout vertex_layout.Layout) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", name)
	for _, d := range []vertex_layout.Divisor{vertex_layout.DivisorVertex, vertex_layout.DivisorInstance} {
		for _, a := range layout.AttributesFor(d) {
			fmt.Fprintf(&sb, "    @location(%d) %s: %s,\n", a.Location, a.Name, floatType(a.Components))
		}
	}
	sb.WriteString("};")
	return sb.String()
}

func uniformStruct(uniforms []pipeline.Uniform) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", UniformStructName)
	for _, u := range uniforms {
		var typ string
		switch {
		case u.Floats == 16:
			typ = "mat4x4<f32>"
		case u.Floats >= 1 && u.Floats <= 4:
			typ = "vec4<f32>"
		default:
			return "", fmt.Errorf("uniform %q has %d floats, want 1..4 or 16", u.Name, u.Floats)
		}
		fmt.Fprintf(&sb, "    %s: %s,\n", u.Name, typ)
	}
	sb.WriteString("};")
	return sb.String(), nil
}

func floatType(components int) string {
	if components == 1 {
		return "f32"
	}
	return fmt.Sprintf("vec%d<f32>", components)
}
