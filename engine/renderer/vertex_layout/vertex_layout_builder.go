package vertex_layout

import "strconv"

type pendingAttribute struct {
	semantic   Semantic
	name       string
	components int
	divisor    Divisor
}

type layoutBuilder struct {
	pending []pendingAttribute
}

// LayoutBuilderOption declares one or more attributes of a Layout under construction.
type LayoutBuilderOption func(*layoutBuilder)

// WithAttribute appends an attribute with a built-in semantic. Its name defaults to "a_<semantic>",
// suffixed with its index when the semantic repeats.
//
// Parameters:
//   - s: the attribute semantic
//   - components: float component count, 1 to 4
//   - d: the divisor class
//
// Returns:
//   - LayoutBuilderOption: option function to apply
func WithAttribute(s Semantic, components int, d Divisor) LayoutBuilderOption {
	return func(b *layoutBuilder) {
		b.pending = append(b.pending, pendingAttribute{semantic: s, components: components, divisor: d})
	}
}

// WithNamedAttribute appends an attribute with an explicit shader-facing name.
//
// Parameters:
//   - s: the attribute semantic
//   - name: the shader-facing name
//   - components: float component count, 1 to 4
//   - d: the divisor class
//
// Returns:
//   - LayoutBuilderOption: option function to apply
func WithNamedAttribute(s Semantic, name string, components int, d Divisor) LayoutBuilderOption {
	return func(b *layoutBuilder) {
		b.pending = append(b.pending, pendingAttribute{semantic: s, name: name, components: components, divisor: d})
	}
}

// WithCustomAttribute appends a single custom attribute.
//
// Parameters:
//   - name: the shader-facing name
//   - components: float component count, 1 to 4
//   - d: the divisor class
//
// Returns:
//   - LayoutBuilderOption: option function to apply
func WithCustomAttribute(name string, components int, d Divisor) LayoutBuilderOption {
	return WithNamedAttribute(SemanticCustom, name, components, d)
}

// WithCustomAttributeBlocks appends count custom attributes named base0..base<count-1>, used when one logical
// field does not fit in a single 4-component slot.
//
// Parameters:
//   - base: the name prefix
//   - count: how many blocks to append
//   - components: float component count of each block, 1 to 4
//   - d: the divisor class
//
// Returns:
//   - LayoutBuilderOption: option function to apply
func WithCustomAttributeBlocks(base string, count, components int, d Divisor) LayoutBuilderOption {
	return func(b *layoutBuilder) {
		for i := 0; i < count; i++ {
			b.pending = append(b.pending, pendingAttribute{
				semantic:   SemanticCustom,
				name:       base + strconv.Itoa(i),
				components: components,
				divisor:    d,
			})
		}
	}
}
