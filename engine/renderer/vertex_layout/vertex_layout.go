// package vertex_layout describes packed vertex records: which attributes a record carries, how many float
// components each attribute has, and the float offset of each attribute within the record of its divisor class.
package vertex_layout

import (
	"fmt"
	"strconv"
)

// Semantic tags the meaning of a vertex attribute.
type Semantic int

const (
	SemanticPosition Semantic = iota
	SemanticColor
	SemanticUV
	SemanticNormal
	SemanticSize
	SemanticProperMotion
	SemanticCoord
	SemanticCustom
)

var semanticNames = map[Semantic]string{
	SemanticPosition:     "position",
	SemanticColor:        "color",
	SemanticUV:           "uv",
	SemanticNormal:       "normal",
	SemanticSize:         "size",
	SemanticProperMotion: "pm",
	SemanticCoord:        "coord",
	SemanticCustom:       "custom",
}

func (s Semantic) String() string {
	if n, ok := semanticNames[s]; ok {
		return n
	}
	return "semantic(" + strconv.Itoa(int(s)) + ")"
}

// Divisor selects the record class an attribute belongs to.
type Divisor int

const (
	// DivisorVertex attributes advance once per vertex.
	DivisorVertex Divisor = 0
	// DivisorInstance attributes advance once per instance.
	DivisorInstance Divisor = 1
)

// Key identifies an attribute inside a layout. Index is the numeric suffix that distinguishes repeated
// attributes sharing the same semantic, starting at 0.
type Key struct {
	Semantic Semantic
	Index    int
}

// Attribute is one slot of a packed vertex record.
type Attribute struct {
	Semantic Semantic
	// Index distinguishes repeated attributes with the same semantic.
	Index int
	// Name is the shader-facing attribute name.
	Name string
	// Components is the number of float components, 1 to 4.
	Components int
	Divisor    Divisor
	// Offset is the float offset of this attribute inside its divisor's record. Set by NewLayout.
	Offset int
	// Location is the shader input location, assigned in declaration order. Set by NewLayout.
	Location int
}

// Key returns the lookup key of the attribute.
func (a Attribute) Key() Key {
	return Key{Semantic: a.Semantic, Index: a.Index}
}

type layout struct {
	attributes  []Attribute
	byKey       map[Key]int
	byName      map[string]int
	recordSizes [2]int
}

// Layout is an immutable description of packed vertex and instance records.
type Layout interface {
	// Attributes returns every attribute in declaration order.
	//
	// Returns:
	//   - []Attribute: a copy of the attribute list
	Attributes() []Attribute

	// AttributesFor returns the attributes of a single divisor class in declaration order.
	//
	// Parameters:
	//   - d: the divisor class
	//
	// Returns:
	//   - []Attribute: the attributes with that divisor
	AttributesFor(d Divisor) []Attribute

	// Attribute looks up an attribute by key.
	//
	// Parameters:
	//   - k: the semantic and suffix index
	//
	// Returns:
	//   - Attribute: the attribute, zero value if absent
	//   - bool: true if the attribute exists
	Attribute(k Key) (Attribute, bool)

	// Named looks up an attribute by its shader-facing name.
	//
	// Parameters:
	//   - name: the attribute name
	//
	// Returns:
	//   - Attribute: the attribute, zero value if absent
	//   - bool: true if the attribute exists
	Named(name string) (Attribute, bool)

	// Offset returns the float offset of the first attribute with the given semantic, or -1 if absent.
	//
	// Parameters:
	//   - s: the semantic
	//
	// Returns:
	//   - int: float offset within the record of that attribute's divisor class
	Offset(s Semantic) int

	// OffsetOf returns the float offset of the attribute with the given key, or -1 if absent.
	//
	// Parameters:
	//   - k: the semantic and suffix index
	//
	// Returns:
	//   - int: float offset within the record of that attribute's divisor class
	OffsetOf(k Key) int

	// RecordSize returns the number of floats in one record of the given divisor class.
	//
	// Parameters:
	//   - d: the divisor class
	//
	// Returns:
	//   - int: sum of the component counts of that class's attributes
	RecordSize(d Divisor) int

	// Stride returns the byte size of one record of the given divisor class.
	//
	// Parameters:
	//   - d: the divisor class
	//
	// Returns:
	//   - int: RecordSize(d) * 4
	Stride(d Divisor) int
}

var _ Layout = &layout{}

// NewLayout builds a Layout from the attributes declared by the options, in option order.
// Offsets are prefix sums of the component counts of earlier attributes with the same divisor.
// Repeated attributes with the same semantic receive increasing suffix indices.
// Panics if an attribute has a component count outside 1..4, an unknown divisor, or a name already in use.
//
// Parameters:
//   - options: the attribute declarations
//
// Returns:
//   - Layout: the computed layout
func NewLayout(options ...LayoutBuilderOption) Layout {
	b := &layoutBuilder{}
	for _, option := range options {
		option(b)
	}

	l := &layout{
		attributes: make([]Attribute, 0, len(b.pending)),
		byKey:      make(map[Key]int, len(b.pending)),
		byName:     make(map[string]int, len(b.pending)),
	}
	suffix := make(map[Semantic]int)
	for i, p := range b.pending {
		if p.components < 1 || p.components > 4 {
			panic(fmt.Sprintf("vertex_layout: attribute %q has %d components, want 1..4", p.name, p.components))
		}
		if p.divisor != DivisorVertex && p.divisor != DivisorInstance {
			panic(fmt.Sprintf("vertex_layout: attribute %q has unsupported divisor %d", p.name, p.divisor))
		}

		idx := suffix[p.semantic]
		suffix[p.semantic] = idx + 1

		name := p.name
		if name == "" {
			name = "a_" + p.semantic.String()
			if idx > 0 {
				name += strconv.Itoa(idx)
			}
		}
		if _, dup := l.byName[name]; dup {
			panic(fmt.Sprintf("vertex_layout: duplicate attribute name %q", name))
		}

		a := Attribute{
			Semantic:   p.semantic,
			Index:      idx,
			Name:       name,
			Components: p.components,
			Divisor:    p.divisor,
			Offset:     l.recordSizes[p.divisor],
			Location:   i,
		}
		l.recordSizes[p.divisor] += p.components
		l.byKey[a.Key()] = len(l.attributes)
		l.byName[name] = len(l.attributes)
		l.attributes = append(l.attributes, a)
	}
	return l
}

func (l *layout) Attributes() []Attribute {
	out := make([]Attribute, len(l.attributes))
	copy(out, l.attributes)
	return out
}

func (l *layout) AttributesFor(d Divisor) []Attribute {
	var out []Attribute
	for _, a := range l.attributes {
		if a.Divisor == d {
			out = append(out, a)
		}
	}
	return out
}

func (l *layout) Attribute(k Key) (Attribute, bool) {
	i, ok := l.byKey[k]
	if !ok {
		return Attribute{}, false
	}
	return l.attributes[i], true
}

func (l *layout) Named(name string) (Attribute, bool) {
	i, ok := l.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return l.attributes[i], true
}

func (l *layout) Offset(s Semantic) int {
	return l.OffsetOf(Key{Semantic: s})
}

func (l *layout) OffsetOf(k Key) int {
	a, ok := l.Attribute(k)
	if !ok {
		return -1
	}
	return a.Offset
}

func (l *layout) RecordSize(d Divisor) int {
	if d != DivisorVertex && d != DivisorInstance {
		return 0
	}
	return l.recordSizes[d]
}

func (l *layout) Stride(d Divisor) int {
	return l.RecordSize(d) * 4
}
