package vertex_layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetsArePrefixSumsPerDivisor(t *testing.T) {
	l := NewLayout(
		WithAttribute(SemanticPosition, 2, DivisorVertex),
		WithAttribute(SemanticUV, 2, DivisorVertex),
		WithNamedAttribute(SemanticPosition, "a_objPos", 3, DivisorInstance),
		WithAttribute(SemanticColor, 4, DivisorInstance),
		WithAttribute(SemanticSize, 1, DivisorInstance),
	)

	attrs := l.Attributes()
	running := map[Divisor]int{}
	for _, a := range attrs {
		assert.Equal(t, running[a.Divisor], a.Offset, a.Name)
		running[a.Divisor] += a.Components
	}

	assert.Equal(t, 4, l.RecordSize(DivisorVertex))
	assert.Equal(t, 8, l.RecordSize(DivisorInstance))
	assert.Equal(t, 32, l.Stride(DivisorInstance))
	assert.Equal(t, 0, l.Offset(SemanticPosition))
	assert.Equal(t, 0, l.OffsetOf(Key{Semantic: SemanticPosition, Index: 1}))
	assert.Equal(t, 3, l.Offset(SemanticColor))
	assert.Equal(t, 7, l.Offset(SemanticSize))
	assert.Equal(t, -1, l.Offset(SemanticNormal))
}

func TestRepeatedCustomBlocksGetSuffixes(t *testing.T) {
	l := NewLayout(
		WithAttribute(SemanticPosition, 3, DivisorVertex),
		WithCustomAttribute("a_nVari", 1, DivisorVertex),
		WithCustomAttributeBlocks("a_vmags", 5, 4, DivisorVertex),
	)

	require.Equal(t, 3+1+20, l.RecordSize(DivisorVertex))
	for i := 0; i < 5; i++ {
		a, ok := l.Attribute(Key{Semantic: SemanticCustom, Index: i + 1})
		require.True(t, ok)
		assert.Equal(t, 4+4*i, a.Offset)
		assert.Equal(t, "a_vmags"+string(rune('0'+i)), a.Name)
	}
	nv, ok := l.Named("a_nVari")
	require.True(t, ok)
	assert.Equal(t, 3, nv.Offset)
	assert.Equal(t, 1, nv.Location)
}

func TestDefaultNamesAndLocations(t *testing.T) {
	l := NewLayout(
		WithAttribute(SemanticColor, 4, DivisorVertex),
		WithAttribute(SemanticColor, 4, DivisorVertex),
	)
	a0, _ := l.Attribute(Key{Semantic: SemanticColor})
	a1, _ := l.Attribute(Key{Semantic: SemanticColor, Index: 1})
	assert.Equal(t, "a_color", a0.Name)
	assert.Equal(t, "a_color1", a1.Name)
	assert.Equal(t, 0, a0.Location)
	assert.Equal(t, 1, a1.Location)
	assert.Len(t, l.AttributesFor(DivisorInstance), 0)
}

func TestInvalidDeclarationsPanic(t *testing.T) {
	assert.Panics(t, func() { NewLayout(WithAttribute(SemanticPosition, 5, DivisorVertex)) })
	assert.Panics(t, func() { NewLayout(WithAttribute(SemanticPosition, 0, DivisorVertex)) })
	assert.Panics(t, func() { NewLayout(WithAttribute(SemanticPosition, 3, Divisor(2))) })
	assert.Panics(t, func() {
		NewLayout(WithCustomAttribute("a_x", 1, DivisorVertex), WithCustomAttribute("a_x", 1, DivisorVertex))
	})
}
