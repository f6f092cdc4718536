package render_system

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/mesh_buffer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linesProgram(t *testing.T) pipeline.Pipeline {
	t.Helper()
	p, err := LinePipeline("lines")
	require.NoError(t, err)
	return p
}

func drawCounts(draws []headless.DrawCall) []int {
	out := make([]int, 0, len(draws))
	for _, d := range draws {
		out = append(out, d.Count)
	}
	return out
}

func TestStreamingPointsRollOver(t *testing.T) {
	b := headless.NewBackend()
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(settings.Default()), linesProgram(t), WithBufferCapacity(2))
	for i := 0; i < 5; i++ {
		sys.AddPoint(mgl64.Vec3{float64(i), 0, 0}, [4]float32{1, 1, 1, 1})
	}

	require.NoError(t, sys.Render(nil, testCamera(), epoch))
	assert.Equal(t, []int{2, 2, 1}, drawCounts(b.Draws()))
	for _, d := range b.Draws() {
		assert.Equal(t, pipeline.TopologyPoints, d.Topology)
	}
	assert.Equal(t, 3, sys.Pool().Len())
	assert.Equal(t, 3, sys.Stats().DrawCalls)
	assert.Equal(t, 3, sys.Stats().Uploads)
}

func TestStreamingBuffersPersistAcrossFrames(t *testing.T) {
	b := headless.NewBackend()
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(settings.Default()), linesProgram(t), WithBufferCapacity(2))
	cam := testCamera()
	for i := 0; i < 5; i++ {
		sys.AddPoint(mgl64.Vec3{float64(i), 0, 0}, [4]float32{1, 1, 1, 1})
	}
	require.NoError(t, sys.Render(nil, cam, epoch))
	created, _, _ := b.Stats()

	b.Reset()
	sys.AddPoint(mgl64.Vec3{9, 0, 0}, [4]float32{1, 1, 1, 1})
	require.NoError(t, sys.Render(nil, cam, epoch))
	assert.Equal(t, []int{1}, drawCounts(b.Draws()))
	assert.Equal(t, float32(9), b.Draws()[0].Vertices[0])
	again, _, _ := b.Stats()
	assert.Equal(t, created, again)
	assert.Equal(t, 3, sys.Pool().Len())

	b.Reset()
	require.NoError(t, sys.Render(nil, cam, epoch))
	assert.Empty(t, b.Draws())
}

func TestStreamingLinesKeepSegmentsWhole(t *testing.T) {
	b := headless.NewBackend()
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(settings.Default()), linesProgram(t), WithBufferCapacity(3))
	white := [4]float32{1, 1, 1, 1}
	sys.AddLine(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, white)
	sys.AddLine(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0}, white)

	require.NoError(t, sys.Render(nil, testCamera(), epoch))
	assert.Equal(t, []int{2, 2}, drawCounts(b.Draws()))
	assert.Equal(t, pipeline.TopologyLines, b.Draws()[0].Topology)
}

func TestStreamingLineSegmentLargerThanBufferFails(t *testing.T) {
	b := headless.NewBackend()
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(settings.Default()), linesProgram(t), WithBufferCapacity(1))
	sys.AddLine(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, [4]float32{1, 1, 1, 1})

	err := sys.Render(nil, testCamera(), epoch)
	assert.ErrorIs(t, err, mesh_buffer.ErrInvalidCapacity)
}

func TestStreamingLineStripClosedLoop(t *testing.T) {
	b := headless.NewBackend()
	program := linesProgram(t)
	s := settings.Default()
	s.ComponentAlphas = []float32{1, 1, 1, 1, 0.5}
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(s), program, WithLineAlphaScale(0.5))
	orbit := renderable.NewParticleSet("orbit", renderable.ShapeLineStrip,
		renderable.WithComponentTypes(renderable.ComponentOrbits),
		renderable.WithLine(renderable.LineStrip{
			Points:       []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}},
			Color:        [4]float32{0, 1, 0, 1},
			ClosedLoop:   true,
			CoordEnabled: true,
		}),
	)

	require.NoError(t, sys.Render([]renderable.Renderable{orbit}, testCamera(), epoch))
	require.Len(t, b.Draws(), 1)
	d := b.Draws()[0]
	assert.Equal(t, 6, d.Count)
	assert.Equal(t, pipeline.TopologyLines, d.Topology)

	l := program.Layout()
	rs := l.RecordSize(vertex_layout.DivisorVertex)
	pos, color, coord := l.Offset(vertex_layout.SemanticPosition), l.Offset(vertex_layout.SemanticColor), l.Offset(vertex_layout.SemanticCoord)
	var coords []float32
	for i := 0; i < d.Count; i++ {
		coords = append(coords, d.Vertices[i*rs+coord])
		assert.InDelta(t, 0.25, d.Vertices[i*rs+color+3], 1e-6)
	}
	assert.InDeltaSlice(t, []float32{0, 1.0 / 3, 1.0 / 3, 2.0 / 3, 2.0 / 3, 1}, coords, 1e-6)

	last := 5 * rs
	assert.Equal(t, []float32{0, 0, 0}, d.Vertices[last+pos:last+pos+3])
}

func TestStreamingLineStripCoordFromTimes(t *testing.T) {
	b := headless.NewBackend()
	program := linesProgram(t)
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(settings.Default()), program)
	path := renderable.NewParticleSet("trail", renderable.ShapeLineStrip,
		renderable.WithLine(renderable.LineStrip{
			Points: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
			Times:  []float64{10, 11, 14},
			Color:  [4]float32{1, 1, 1, 1},
		}),
	)

	require.NoError(t, sys.Render([]renderable.Renderable{path}, testCamera(), epoch))
	d := b.Draws()[0]
	l := program.Layout()
	rs, coord := l.RecordSize(vertex_layout.DivisorVertex), l.Offset(vertex_layout.SemanticCoord)
	var coords []float32
	for i := 0; i < d.Count; i++ {
		coords = append(coords, d.Vertices[i*rs+coord])
	}
	assert.InDeltaSlice(t, []float32{0, 0.25, 0.25, 1}, coords, 1e-6)
}

func TestStreamingLineStripWithoutCoordIsOpaque(t *testing.T) {
	b := headless.NewBackend()
	program := linesProgram(t)
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(settings.Default()), program)
	path := renderable.NewParticleSet("plain", renderable.ShapeLineStrip,
		renderable.WithLine(renderable.LineStrip{
			Points: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}},
			Color:  [4]float32{1, 1, 1, 1},
		}),
	)

	require.NoError(t, sys.Render([]renderable.Renderable{path}, testCamera(), epoch))
	d := b.Draws()[0]
	coord := program.Layout().Offset(vertex_layout.SemanticCoord)
	rs := program.Layout().RecordSize(vertex_layout.DivisorVertex)
	assert.Equal(t, float32(1), d.Vertices[coord])
	assert.Equal(t, float32(1), d.Vertices[rs+coord])
}

func TestStreamingPointRenderablesDrawAsPoints(t *testing.T) {
	b := headless.NewBackend()
	sys := NewStreamingLineRenderSystem(b, settings.NewStore(settings.Default()), linesProgram(t))
	set := starSet("dots", star(0, 0, 0), star(1, 0, 0))

	require.NoError(t, sys.Render([]renderable.Renderable{set}, testCamera(), epoch))
	require.Len(t, b.Draws(), 1)
	assert.Equal(t, pipeline.TopologyPoints, b.Draws()[0].Topology)
	assert.Equal(t, 2, b.Draws()[0].Count)
}
