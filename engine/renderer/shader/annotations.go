// annotations.go defines the annotation types and parser for the WGSL pre-processor. Annotations are
// single-line WGSL comments prefixed with @oxy: that are replaced with code generated from a pipeline's
// vertex layout and uniform block, so shader declarations cannot drift from the Go-side record packing.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects a registered WGSL chunk at the annotation site.
	//
	// Syntax: //@oxy:include <chunk>
	//
	// Example: //@oxy:include effects
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeVertexInput generates a vertex input struct with one @location member per layout
	// attribute, vertex attributes first in declaration order.
	//
	// Syntax: //@oxy:vertex_input <struct_name>
	//
	// Example: //@oxy:vertex_input VertexInput
	AnnotationTypeVertexInput AnnotationType = "vertex_input"

	// AnnotationTypeUniforms generates the uniform block struct and its @group/@binding declaration and
	// records a declaration for the backend.
	//
	// Syntax: //@oxy:uniforms <group> <binding> <var_name>
	//
	// Example: //@oxy:uniforms 0 0 u
	AnnotationTypeUniforms AnnotationType = "uniforms"
)

// Annotation is a single parsed annotation.
type Annotation struct {
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include:      [0] = chunk name
	//   - vertex_input: [0] = struct name
	//   - uniforms:     [0] = variable name
	Args []AnnotationArg

	// Line is the 1-based source line, used for error reporting.
	Line int

	// Group and Binding are set for uniforms annotations only.
	Group   *int
	Binding *int
}

// AnnotationArg is a typed annotation argument.
type AnnotationArg string

const (
	// AnnotationArgEffects names the chunk with the relativistic aberration, gravitational wave and
	// logarithmic depth helpers.
	AnnotationArgEffects AnnotationArg = "effects"

	// AnnotationArgColor names the chunk with colour and magnitude helpers.
	AnnotationArgColor AnnotationArg = "color"
)

var validChunks = []AnnotationArg{
	AnnotationArgEffects,
	AnnotationArgColor,
}

// parseAnnotation attempts to parse one line of WGSL as an annotation. It returns nil with no error for
// lines without the prefix.
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validChunks, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown chunk %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeVertexInput:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy vertex_input annotation requires exactly one argument (struct name)", lineNum)
		}
		return &Annotation{
			Type: AnnotationTypeVertexInput,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeUniforms:
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @oxy uniforms annotation requires exactly three arguments (group, binding, var name)", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy uniforms annotation: %v", lineNum, args[1], err)
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy uniforms annotation: %v", lineNum, args[2], err)
		}
		return &Annotation{
			Type:    AnnotationTypeUniforms,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
