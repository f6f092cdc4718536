package render_system

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-sky/common"
	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/mesh_buffer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
	"github.com/go-gl/mathgl/mgl64"
)

// immediateOwner labels buffers holding AddLine and AddPoint data in draw error logs.
const immediateOwner = "immediate"

type streamingLineRenderSystem struct {
	*renderSystem

	lines  *stream
	points *stream

	position int
	color    int
	coord    int
	record   int

	mu           sync.Mutex
	stagedLines  []float32
	stagedPoints []float32
}

// StreamingLineRenderSystem draws orbits, paths and immediate-mode primitives. Line strips are converted to
// line segments and every vertex is rebuilt each frame into buffers that roll over when full.
type StreamingLineRenderSystem interface {
	RenderSystem

	// AddLine queues a segment for the next frame. Safe from any goroutine.
	//
	// Parameters:
	//   - from, to: the segment end points
	//   - color: the segment color, alpha scaled by the line alpha scale
	AddLine(from, to mgl64.Vec3, color [4]float32)

	// AddPoint queues a point for the next frame. Safe from any goroutine.
	//
	// Parameters:
	//   - pos: the point position
	//   - color: the point color, alpha scaled by the line alpha scale
	AddPoint(pos mgl64.Vec3, color [4]float32)
}

var _ StreamingLineRenderSystem = &streamingLineRenderSystem{}

// NewStreamingLineRenderSystem creates a transient line renderer. Line strip renderables are drawn as
// segments; point renderables and AddPoint data are drawn as points with the same program.
// Panics if backend or provider is nil or the program has no layout.
//
// Parameters:
//   - backend: the graphics backend
//   - provider: the render settings source
//   - program: a program consuming LineLayout records
//   - options: functional options
//
// Returns:
//   - StreamingLineRenderSystem: the render system
func NewStreamingLineRenderSystem(backend renderer.GraphicsBackend, provider settings.Provider, program pipeline.Pipeline, options ...RenderSystemBuilderOption) StreamingLineRenderSystem {
	base := newRenderSystem("streaming-line", backend, provider, program, pipeline.TopologyLines, options)
	l := program.Layout()
	s := &streamingLineRenderSystem{
		renderSystem: base,
		lines:        newStream(base.pool, l, base.capacity, nil),
		points:       newStream(base.pool, l, base.capacity, nil),
		position:     l.Offset(vertex_layout.SemanticPosition),
		color:        l.Offset(vertex_layout.SemanticColor),
		coord:        l.Offset(vertex_layout.SemanticCoord),
		record:       l.RecordSize(vertex_layout.DivisorVertex),
	}
	base.stud = s.renderStud
	base.release = func() {
		s.lines.release()
		s.points.release()
		s.mu.Lock()
		s.stagedLines, s.stagedPoints = nil, nil
		s.mu.Unlock()
	}
	return s
}

func (s *streamingLineRenderSystem) AddLine(from, to mgl64.Vec3, color [4]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagedLines = s.vertex(s.stagedLines, from, color, 1)
	s.stagedLines = s.vertex(s.stagedLines, to, color, 1)
}

func (s *streamingLineRenderSystem) AddPoint(pos mgl64.Vec3, color [4]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagedPoints = s.vertex(s.stagedPoints, pos, color, 1)
}

// vertex appends one packed record with the alpha scaled by the line alpha scale.
func (s *streamingLineRenderSystem) vertex(dst []float32, p mgl64.Vec3, color [4]float32, coord float32) []float32 {
	start := len(dst)
	dst = append(dst, make([]float32, s.record)...)
	rec := dst[start:]
	if s.position >= 0 {
		rec[s.position] = float32(p[0])
		rec[s.position+1] = float32(p[1])
		rec[s.position+2] = float32(p[2])
	}
	if s.color >= 0 {
		color[3] *= s.lineAlphaScale
		copy(rec[s.color:], color[:])
	}
	if s.coord >= 0 {
		rec[s.coord] = coord
	}
	return dst
}

func (s *streamingLineRenderSystem) renderStud(renderables []renderable.Renderable, cam camera.Camera, t time.Time, snap settings.RenderSettings, version uint64) error {
	for _, r := range renderables {
		if r.Disposed() {
			continue
		}
		if err := s.appendRenderable(r, alphaOf(r, snap)); err != nil {
			s.reset()
			return err
		}
	}

	s.mu.Lock()
	lines, points := s.stagedLines, s.stagedPoints
	s.stagedLines, s.stagedPoints = nil, nil
	s.mu.Unlock()

	segment := 2 * s.record
	for i := 0; i+segment <= len(lines); i += segment {
		if err := s.lines.appendVertices(immediateOwner, lines[i:i+segment]); err != nil {
			s.reset()
			return err
		}
	}
	for i := 0; i+s.record <= len(points); i += s.record {
		if err := s.points.appendVertices(immediateOwner, points[i:i+s.record]); err != nil {
			s.reset()
			return err
		}
	}

	s.frame.Uploads += s.lines.flush(s.drawer(pipeline.TopologyLines))
	s.frame.Uploads += s.points.flush(s.drawer(pipeline.TopologyPoints))
	return nil
}

func (s *streamingLineRenderSystem) drawer(topology pipeline.Topology) func(int, string, mesh_buffer.MeshBuffer, error) {
	return func(slot int, label string, m mesh_buffer.MeshBuffer, uploadErr error) {
		if uploadErr != nil {
			s.frame.DrawErrors++
			s.logger.Errorf("%s: upload %s to slot %d: %v", s.name, label, slot, uploadErr)
			return
		}
		_ = s.draw(label, slot, m, topology, m.VertexCount())
	}
}

func (s *streamingLineRenderSystem) reset() {
	s.lines.reset()
	s.points.reset()
}

// appendRenderable streams r's line strip as segments, or its particles as points, under r's lock.
func (s *streamingLineRenderSystem) appendRenderable(r renderable.Renderable, alpha float32) (err error) {
	id := r.ID()
	defer func() {
		if rec := recover(); rec != nil {
			s.frame.DrawErrors++
			s.logger.Errorf("%s: reading %s panicked: %v", s.name, id, rec)
			err = nil
		}
	}()
	r.Lock()
	defer r.Unlock()

	g := r.Geometry()
	owner := id.String()
	if g.Line != nil {
		return s.appendStrip(owner, g.Line, alpha)
	}
	var rec []float32
	for i, p := range g.Particles {
		if g.Visible != nil && !g.Visible(i, p) {
			continue
		}
		if !finiteParticle(p) {
			s.frame.SkippedPoints++
			s.logger.Debugf("%s: %s point %d has non-finite fields, skipped", s.name, owner, i)
			continue
		}
		c := [4]float32{float32(p.Color[0]), float32(p.Color[1]), float32(p.Color[2]), float32(p.Color[3]) * alpha}
		rec = s.vertex(rec[:0], p.Position, c, 1)
		if err := s.points.appendVertices(owner, rec); err != nil {
			return err
		}
	}
	return nil
}

// appendStrip converts a strip to segments. A closed loop ends with a segment back to its first point.
// Segments touching a non-finite point are dropped.
func (s *streamingLineRenderSystem) appendStrip(owner string, line *renderable.LineStrip, alpha float32) error {
	pts := line.Points
	if len(pts) < 2 {
		return nil
	}
	n := len(pts)
	if line.ClosedLoop {
		n++
	}
	at := func(i int) mgl64.Vec3 { return pts[i%len(pts)] }

	valid := make([]bool, len(pts))
	for i, p := range pts {
		valid[i] = common.IsFinite(p[0]) && common.IsFinite(p[1]) && common.IsFinite(p[2])
		if !valid[i] {
			s.frame.SkippedPoints++
			s.logger.Debugf("%s: %s point %d has non-finite fields, skipped", s.name, owner, i)
		}
	}

	c := line.Color
	c[3] *= alpha
	seg := make([]float32, 0, 2*s.record)
	for i := 0; i+1 < n; i++ {
		if !valid[i%len(pts)] || !valid[(i+1)%len(pts)] {
			continue
		}
		seg = s.vertex(seg[:0], at(i), c, stripCoord(line, i, n))
		seg = s.vertex(seg, at(i+1), c, stripCoord(line, i+1, n))
		if err := s.lines.appendVertices(owner, seg); err != nil {
			return err
		}
	}
	return nil
}

// stripCoord is the position of vertex i of n along a strip, in [0, 1]. Timestamps take precedence; a closed
// loop's repeated first point is the end of the strip.
func stripCoord(line *renderable.LineStrip, i, n int) float32 {
	if len(line.Times) == len(line.Points) && len(line.Times) > 1 {
		t0, t1 := line.Times[0], line.Times[len(line.Times)-1]
		if i >= len(line.Times) || t1 == t0 {
			return 1
		}
		return float32(common.Clamp((line.Times[i]-t0)/(t1-t0), 0, 1))
	}
	if line.CoordEnabled {
		return float32(i) / float32(n-1)
	}
	return 1
}
