package render_system

import (
	"time"

	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/mesh_buffer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
)

type instancedQuadRenderSystem struct {
	*renderSystem

	stream *stream
	center int
	color  int
	size   int
	record []float32
}

// NewInstancedQuadRenderSystem creates a transient billboard renderer. Every particle of every renderable
// becomes one instance of a shared unit quad, rebuilt each frame, with the renderable's alpha baked into the
// instance color. Renderables are sorted back to front unless WithBackToFront(false) is given.
// Panics if backend or provider is nil or the program has no layout.
//
// Parameters:
//   - backend: the graphics backend
//   - provider: the render settings source
//   - program: a program consuming BillboardLayout records
//   - options: functional options
//
// Returns:
//   - RenderSystem: the render system
func NewInstancedQuadRenderSystem(backend renderer.GraphicsBackend, provider settings.Provider, program pipeline.Pipeline, options ...RenderSystemBuilderOption) RenderSystem {
	options = append([]RenderSystemBuilderOption{WithBackToFront(true)}, options...)
	base := newRenderSystem("instanced-quad", backend, provider, program, pipeline.TopologyTriangles, options)

	l := program.Layout()
	s := &instancedQuadRenderSystem{
		renderSystem: base,
		stream:       newStream(base.pool, l, base.capacity, quadModel),
		center:       -1,
		color:        l.Offset(vertex_layout.SemanticColor),
		size:         l.Offset(vertex_layout.SemanticSize),
		record:       make([]float32, l.RecordSize(vertex_layout.DivisorInstance)),
	}
	for _, a := range l.AttributesFor(vertex_layout.DivisorInstance) {
		if a.Semantic == vertex_layout.SemanticPosition {
			s.center = a.Offset
			break
		}
	}
	base.stud = s.renderStud
	base.release = s.stream.release
	return s
}

func (s *instancedQuadRenderSystem) renderStud(renderables []renderable.Renderable, cam camera.Camera, t time.Time, snap settings.RenderSettings, version uint64) error {
	s.setSpriteUniforms(snap)

	for _, r := range renderables {
		if r.Disposed() {
			continue
		}
		alpha := alphaOf(r, snap)
		hl := r.Highlight()
		if err := s.appendRenderable(r, alpha, hl); err != nil {
			s.stream.reset()
			return err
		}
	}

	s.frame.Uploads += s.stream.flush(func(slot int, label string, m mesh_buffer.MeshBuffer, uploadErr error) {
		if uploadErr != nil {
			s.frame.DrawErrors++
			s.logger.Errorf("%s: upload %s to slot %d: %v", s.name, label, slot, uploadErr)
			return
		}
		_ = s.draw(label, slot, m, s.topology, m.VertexCount())
	})
	return nil
}

// appendRenderable streams the instances of r, copying them under its lock. A panic while reading r is
// logged and drops the rest of r's instances.
func (s *instancedQuadRenderSystem) appendRenderable(r renderable.Renderable, alpha float32, hl renderable.Highlight) (err error) {
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
	for i, p := range g.Particles {
		if g.Visible != nil && !g.Visible(i, p) {
			continue
		}
		if !finiteParticle(p) {
			s.frame.SkippedPoints++
			s.logger.Debugf("%s: %s point %d has non-finite fields, skipped", s.name, id, i)
			continue
		}

		c := particleColor(p, hl)
		c[3] *= alpha
		size := float32(p.Size)
		if hl.Enabled && hl.SizeFactor > 0 {
			size *= hl.SizeFactor
		}
		rec := s.record
		clear(rec)
		if s.center >= 0 {
			rec[s.center] = float32(p.Position[0])
			rec[s.center+1] = float32(p.Position[1])
			rec[s.center+2] = float32(p.Position[2])
		}
		if s.color >= 0 {
			copy(rec[s.color:], c[:])
		}
		if s.size >= 0 {
			rec[s.size] = size
		}
		if err := s.stream.appendInstance(id.String(), rec...); err != nil {
			return err
		}
	}
	return nil
}
