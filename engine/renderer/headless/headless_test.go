package headless

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-sky/common"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mesh struct {
	layout vertex_layout.Layout
	vbuf   renderer.BufferHandle
	count  int
}

func (m mesh) Layout() vertex_layout.Layout          { return m.layout }
func (m mesh) VertexBuffer() renderer.BufferHandle   { return m.vbuf }
func (m mesh) VertexCount() int                      { return m.count }
func (m mesh) InstanceBuffer() renderer.BufferHandle { return 0 }
func (m mesh) InstanceCount() int                    { return 0 }
func (m mesh) IndexBuffer() renderer.BufferHandle    { return 0 }
func (m mesh) IndexCount() int                       { return 0 }

func setup(t *testing.T, options ...BackendBuilderOption) (Backend, pipeline.Pipeline, mesh) {
	l := vertex_layout.NewLayout(vertex_layout.WithAttribute(vertex_layout.SemanticPosition, 3, vertex_layout.DivisorVertex))
	p := pipeline.NewPipeline("points", pipeline.WithLayout(l), pipeline.WithUniform("u_alpha", 1), pipeline.WithUniform("u_camPos", 3))
	b := NewBackend(options...)
	h, err := b.CreateBuffer("v", renderer.BufferUsageVertex, 24)
	require.NoError(t, err)
	require.NoError(t, b.UploadBuffer(h, common.SliceToBytes([]float32{1, 2, 3, 4, 5, 6})))
	return b, p, mesh{layout: l, vbuf: h, count: 2}
}

func TestRecordsDrawsWithUniformSnapshot(t *testing.T) {
	b, p, m := setup(t)

	require.NoError(t, b.BeginFrame())
	require.NoError(t, b.BeginShader(p))
	b.SetUniform("u_alpha", 0.5)
	b.SetUniform("u_camPos", 1, 2)
	b.SetUniform("u_unknown", 9)
	require.NoError(t, b.DrawMesh(m, pipeline.TopologyPoints, 2))
	b.SetUniform("u_alpha", 0.25)
	b.EndShader()
	b.EndFrame()

	draws := b.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "points", draws[0].Program)
	assert.Equal(t, []float32{0.5}, draws[0].Uniforms["u_alpha"])
	assert.Equal(t, []float32{1, 2, 0}, draws[0].Uniforms["u_camPos"])
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, draws[0].Vertices)
	assert.Equal(t, 1, draws[0].Instances)
	assert.Equal(t, []float32{0.25}, b.Uniform("points", "u_alpha"))
	assert.Equal(t, 2, b.UniformWrites("points", "u_alpha"))
	assert.Equal(t, 1, b.Frames())
}

func TestDrawErrors(t *testing.T) {
	fault := errors.New("boom")
	b, p, m := setup(t, WithDrawFault(func(renderer.Mesh) error { return fault }))

	assert.ErrorIs(t, b.DrawMesh(m, pipeline.TopologyPoints, 2), renderer.ErrNoShader)
	require.NoError(t, b.BeginShader(p))
	assert.ErrorIs(t, b.DrawMesh(m, pipeline.TopologyPoints, 2), fault)
	assert.Empty(t, b.Draws())
}

func TestStaleBufferIsRejected(t *testing.T) {
	b, p, m := setup(t)
	b.DisposeBuffer(m.vbuf)
	require.NoError(t, b.BeginShader(p))
	assert.ErrorIs(t, b.DrawMesh(m, pipeline.TopologyPoints, 2), renderer.ErrStaleMesh)
	assert.ErrorIs(t, b.UploadBuffer(m.vbuf, []byte{0, 0, 0, 0}), renderer.ErrUnknownBuffer)
}

func TestUploadOverflow(t *testing.T) {
	b, _, m := setup(t)
	err := b.UploadBuffer(m.vbuf, make([]byte, 28))
	assert.ErrorIs(t, err, renderer.ErrBufferOverflow)
	_, err = b.CreateBuffer("bad", renderer.BufferUsageVertex, 0)
	assert.Error(t, err)
}

func TestRegisterPipelines(t *testing.T) {
	b, p, _ := setup(t)
	require.NoError(t, b.RegisterPipelines(p))
	require.NoError(t, b.RegisterPipelines(p))
	assert.Equal(t, p, b.Pipeline("points"))

	other := pipeline.NewPipeline("points", pipeline.WithLayout(p.Layout()))
	assert.Error(t, b.RegisterPipelines(other))
}
