package mesh_buffer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointLayout() vertex_layout.Layout {
	return vertex_layout.NewLayout(
		vertex_layout.WithAttribute(vertex_layout.SemanticPosition, 3, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticSize, 1, vertex_layout.DivisorVertex),
	)
}

func TestAllocateRejectsInvalidCapacity(t *testing.T) {
	b := headless.NewBackend()
	_, err := NewMeshBuffer(b, pointLayout(), 0, 0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = NewMeshBuffer(b, pointLayout(), -3, 0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = NewMeshBuffer(b, pointLayout(), 4, -1)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.Equal(t, 0, b.LiveBuffers())
}

func TestAllocateSizesGpuBufferLikeStaging(t *testing.T) {
	b := headless.NewBackend()
	m, err := NewMeshBuffer(b, pointLayout(), 10, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, b.LiveBuffers())
	assert.Equal(t, 10, m.Capacity())
	assert.Equal(t, 6, m.IndexCapacity())
	assert.NotZero(t, m.VertexBuffer())
	assert.NotZero(t, m.IndexBuffer())
	assert.Zero(t, m.InstanceBuffer())
	assert.NotEmpty(t, m.Label())
}

func TestAppendNeverOverwritesPastCapacity(t *testing.T) {
	b := headless.NewBackend()
	m, err := NewMeshBuffer(b, pointLayout(), 2, 0)
	require.NoError(t, err)

	require.NoError(t, m.AppendVertex(0, 0, 0, 1))
	require.NoError(t, m.AppendVertex(1, 0, 0, 1))
	assert.Equal(t, 2*4, m.Cursor())
	assert.Equal(t, 0, m.Remaining())

	err = m.AppendVertex(2, 0, 0, 1)
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, 2, m.VertexCount())
	assert.Equal(t, []float32{0, 0, 0, 1, 1, 0, 0, 1}, m.Staging(vertex_layout.DivisorVertex))

	assert.ErrorIs(t, m.AppendVertex(1, 2), ErrRecordSize)
}

func TestAppendVerticesIsAllOrNothing(t *testing.T) {
	b := headless.NewBackend()
	m, err := NewMeshBuffer(b, pointLayout(), 3, 0)
	require.NoError(t, err)

	require.NoError(t, m.AppendVertices([]float32{0, 0, 0, 1, 1, 1, 1, 1}))
	assert.ErrorIs(t, m.AppendVertices([]float32{2, 2, 2, 1, 3, 3, 3, 1}), ErrBufferFull)
	assert.Equal(t, 2, m.VertexCount())
	assert.ErrorIs(t, m.AppendVertices([]float32{1, 2, 3}), ErrRecordSize)
}

func TestUploadIsIdempotent(t *testing.T) {
	b := headless.NewBackend()
	m, err := NewMeshBuffer(b, pointLayout(), 4, 0)
	require.NoError(t, err)
	require.NoError(t, m.AppendVertex(1, 2, 3, 4))
	require.NoError(t, m.AppendVertex(5, 6, 7, 8))

	require.NoError(t, m.Upload())
	first, ok := b.BufferBytes(m.VertexBuffer())
	require.True(t, ok)
	assert.False(t, m.Dirty())
	assert.True(t, m.Uploaded())

	require.NoError(t, m.Upload())
	second, _ := b.BufferBytes(m.VertexBuffer())
	assert.Equal(t, first, second)
	assert.Len(t, second, 2*4*4)
}

func TestClearResetsCursorAndKeepsGpuBuffers(t *testing.T) {
	b := headless.NewBackend()
	m, err := NewMeshBuffer(b, pointLayout(), 1, 0)
	require.NoError(t, err)
	handle := m.VertexBuffer()
	require.NoError(t, m.AppendVertex(1, 1, 1, 1))
	m.Seal()
	assert.ErrorIs(t, m.AppendVertex(1, 1, 1, 1), ErrSealed)

	m.Clear()
	assert.Equal(t, 0, m.Cursor())
	assert.False(t, m.Sealed())
	assert.Equal(t, handle, m.VertexBuffer())
	require.NoError(t, m.AppendVertex(2, 2, 2, 2))
}

func TestReleaseStagingOnUpload(t *testing.T) {
	b := headless.NewBackend()
	m, err := NewMeshBuffer(b, pointLayout(), 2, 0, WithReleaseStagingOnUpload())
	require.NoError(t, err)
	require.NoError(t, m.AppendVertex(1, 2, 3, 4))
	require.NoError(t, m.Upload())

	assert.Nil(t, m.Staging(vertex_layout.DivisorVertex))
	assert.Equal(t, 1, m.VertexCount())
	assert.ErrorIs(t, m.AppendVertex(1, 2, 3, 4), ErrStagingReleased)
	assert.NoError(t, m.Upload())

	floats, _ := b.BufferFloats(m.VertexBuffer())
	assert.Equal(t, []float32{1, 2, 3, 4}, floats)

	m.Clear()
	require.NoError(t, m.AppendVertex(9, 9, 9, 9))
}

func TestInstancedBuffer(t *testing.T) {
	l := vertex_layout.NewLayout(
		vertex_layout.WithAttribute(vertex_layout.SemanticPosition, 2, vertex_layout.DivisorVertex),
		vertex_layout.WithAttribute(vertex_layout.SemanticColor, 4, vertex_layout.DivisorInstance),
	)
	b := headless.NewBackend()
	_, err := NewMeshBuffer(b, l, 6, 0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	m, err := NewMeshBuffer(b, l, 6, 0, WithInstanceCapacity(2))
	require.NoError(t, err)
	require.NoError(t, m.AppendInstance(1, 0, 0, 1))
	require.NoError(t, m.AppendInstance(0, 1, 0, 1))
	assert.ErrorIs(t, m.AppendInstance(0, 0, 1, 1), ErrBufferFull)
	assert.Equal(t, 0, m.InstanceRemaining())
	assert.ErrorIs(t, m.AppendInstance(1, 1), ErrRecordSize)
}

func TestDisposeIsIdempotent(t *testing.T) {
	b := headless.NewBackend()
	m, err := NewMeshBuffer(b, pointLayout(), 2, 3)
	require.NoError(t, err)
	m.Dispose()
	m.Dispose()
	assert.True(t, m.Disposed())
	assert.Equal(t, 0, b.LiveBuffers())
	_, disposed, _ := b.Stats()
	assert.Equal(t, 2, disposed)
	assert.ErrorIs(t, m.AppendVertex(1, 1, 1, 1), ErrDisposed)
	assert.ErrorIs(t, m.Upload(), ErrDisposed)
}

func TestPointCloudRoundTrip(t *testing.T) {
	b := headless.NewBackend()
	l := pointLayout()
	p := NewPool(b, "points")
	slot, err := p.Allocate(10, 0, l)
	require.NoError(t, err)
	m, err := p.Get(slot)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.AppendVertex(float32(i), 0, 0, 1))
	}
	require.NoError(t, m.Upload())

	assert.Equal(t, 3, m.VertexCount())
	assert.Equal(t, 3*l.RecordSize(vertex_layout.DivisorVertex), m.Cursor())

	floats, ok := b.BufferFloats(m.VertexBuffer())
	require.True(t, ok)
	rec, off := l.RecordSize(vertex_layout.DivisorVertex), l.Offset(vertex_layout.SemanticPosition)
	for i := 0; i < 3; i++ {
		base := i*rec + off
		assert.Equal(t, []float32{float32(i), 0, 0}, floats[base:base+3])
	}
}

func TestIndexedUploadAndDraw(t *testing.T) {
	b := headless.NewBackend()
	l := pointLayout()
	m, err := NewMeshBuffer(b, l, 4, 6)
	require.NoError(t, err)
	for _, v := range [][4]float32{{0, 0, 0, 1}, {1, 0, 0, 1}, {1, 1, 0, 1}, {0, 1, 0, 1}} {
		require.NoError(t, m.AppendVertex(v[:]...))
	}
	require.NoError(t, m.AppendIndices(0, 1, 2))
	assert.ErrorIs(t, m.AppendIndices(2, 3, 0, 1), ErrBufferFull)
	assert.Equal(t, 3, m.IndexCount())
	require.NoError(t, m.AppendIndices(2, 3, 0))
	require.NoError(t, m.Upload())

	p := pipeline.NewPipeline("quad", pipeline.WithLayout(l))
	require.NoError(t, b.BeginFrame())
	require.NoError(t, b.BeginShader(p))
	require.NoError(t, b.DrawMesh(m, pipeline.TopologyTriangles, m.IndexCount()))
	assert.ErrorIs(t, b.DrawMesh(m, pipeline.TopologyTriangles, 7), renderer.ErrStaleMesh)
	b.EndShader()
	b.EndFrame()

	draws := b.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 6, draws[0].Count)
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0}, draws[0].Indices)
	assert.Len(t, draws[0].Vertices, 4*l.RecordSize(vertex_layout.DivisorVertex))
}
