package render_system

import (
	"fmt"
	"math"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sky/common"
	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/mesh_buffer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/upload_tracker"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/vertex_layout"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
	"github.com/google/uuid"
)

// highlightMinSize is the smallest point size of a highlighted renderable drawn with AllVisible.
const highlightMinSize = 10

// pointOffsets are the float offsets of the point record attributes, -1 where the layout lacks one.
type pointOffsets struct {
	record   int
	position int
	pm       int
	color    int
	size     int
	nVari    int
	vmag     int
	vtime    int
}

func newPointOffsets(l vertex_layout.Layout) pointOffsets {
	o := pointOffsets{
		record:   l.RecordSize(vertex_layout.DivisorVertex),
		position: l.Offset(vertex_layout.SemanticPosition),
		pm:       l.Offset(vertex_layout.SemanticProperMotion),
		color:    l.Offset(vertex_layout.SemanticColor),
		size:     l.Offset(vertex_layout.SemanticSize),
		nVari:    -1,
		vmag:     -1,
		vtime:    -1,
	}
	if a, ok := l.Named(attrVariableCount); ok {
		o.nVari = a.Offset
	}
	if a, ok := l.Named(attrVariableMag + "0"); ok {
		o.vmag = a.Offset
	}
	if a, ok := l.Named(attrVariableTime + "0"); ok {
		o.vtime = a.Offset
	}
	return o
}

type pointCloudRenderSystem struct {
	*renderSystem

	offsets  pointOffsets
	variable bool
	loader   *loader

	// ownedPool is the loader pool this system created and stops on Dispose.
	ownedPool worker.DynamicWorkerPool
}

// PointCloudRenderSystem draws star and particle datasets as points. Each renderable's vertex data is built
// and uploaded once into its own pool slot and reused every frame until the renderable's version changes or
// it is evicted. Datasets of at least the background threshold are converted on a worker pool and uploaded
// by the render thread on a later frame.
type PointCloudRenderSystem interface {
	RenderSystem

	// LoadStatus reports the loading state of a renderable.
	//
	// Parameters:
	//   - r: the renderable
	//
	// Returns:
	//   - LoadStatus: StatusLoaded once its data is resident, otherwise the background job state
	LoadStatus(r renderable.Renderable) LoadStatus
}

var _ PointCloudRenderSystem = &pointCloudRenderSystem{}

// NewPointCloudRenderSystem creates a cached point renderer. Whether variable stars are animated follows
// from the program's layout; see PointCloudPipeline.
// Panics if backend or provider is nil or the program has no layout.
//
// Parameters:
//   - backend: the graphics backend
//   - provider: the render settings source
//   - program: a program consuming PointCloudLayout records
//   - options: functional options
//
// Returns:
//   - PointCloudRenderSystem: the render system
func NewPointCloudRenderSystem(backend renderer.GraphicsBackend, provider settings.Provider, program pipeline.Pipeline, options ...RenderSystemBuilderOption) PointCloudRenderSystem {
	base := newRenderSystem("point-cloud", backend, provider, program, pipeline.TopologyPoints, options)
	s := &pointCloudRenderSystem{
		renderSystem: base,
		offsets:      newPointOffsets(program.Layout()),
	}
	s.variable = s.offsets.nVari >= 0 && s.offsets.vmag >= 0 && s.offsets.vtime >= 0
	if base.bgThreshold > 0 {
		submit, limit := base.submit, base.maxPending
		if submit == nil {
			s.ownedPool = newLoaderPool(base.loaderWorkers)
			submit, limit = s.ownedPool.SubmitTask, LoaderQueueSize
		}
		s.loader = newLoader(base.name, submit, limit, base.logger)
	}

	base.stud = s.renderStud
	base.evicted = func(e upload_tracker.Eviction[uuid.UUID]) {
		if s.loader != nil {
			s.loader.forget(e.Key)
		}
	}
	base.release = func() {
		if s.loader != nil {
			s.loader.reset()
		}
		if s.ownedPool != nil {
			s.ownedPool.Stop()
			s.ownedPool = nil
		}
	}
	return s
}

func (s *pointCloudRenderSystem) LoadStatus(r renderable.Renderable) LoadStatus {
	if s.tracker.IsUploaded(r.ID()) {
		return StatusLoaded
	}
	if s.loader == nil {
		return StatusNotLoaded
	}
	return s.loader.status(r.ID())
}

func (s *pointCloudRenderSystem) renderStud(renderables []renderable.Renderable, cam camera.Camera, t time.Time, snap settings.RenderSettings, version uint64) error {
	s.setSpriteUniforms(snap)

	for _, r := range renderables {
		id := r.ID()
		if r.Disposed() {
			s.tracker.MarkDisposed(id)
			continue
		}

		st := s.tracker.Ensure(id)
		ver := r.Version()
		hl := r.Highlight()
		if st.InGPU && st.Version != ver {
			// the stale copy is drawn until the eviction is processed next frame
			s.tracker.MarkEvicted(id)
		}
		if !st.InGPU {
			var err error
			if st, err = s.load(r, id, ver, hl); err != nil {
				return err
			}
			if !st.InGPU {
				continue
			}
		}
		if st.Slot < 0 {
			continue
		}

		m, err := s.pool.Get(st.Slot)
		if err != nil {
			s.frame.DrawErrors++
			s.logger.Errorf("%s: draw %s: %v", s.name, id, err)
			continue
		}
		s.setObjectUniforms(r, hl, snap, t)
		_ = s.draw(id.String(), st.Slot, m, s.topology, m.VertexCount())
	}
	return nil
}

// load builds and uploads the records of r, inline or through the loader. It returns the resulting upload
// state; an error is only returned when the pool cannot allocate.
func (s *pointCloudRenderSystem) load(r renderable.Renderable, id uuid.UUID, version uint64, hl renderable.Highlight) (upload_tracker.UploadState, error) {
	var (
		records        []float32
		count, skipped int
		background     bool
	)
	if s.loader != nil && particleCount(r) >= s.bgThreshold {
		status, job := s.loader.poll(id, version, s.converter(r, id, hl))
		if status != StatusReady {
			return upload_tracker.UploadState{Slot: -1}, nil
		}
		records, count, skipped = job.records, job.count, job.skipped
		background = true
	} else {
		var err error
		if records, count, skipped, err = s.converter(r, id, hl)(); err != nil {
			s.frame.DrawErrors++
			s.logger.Errorf("%s: build %s: %v", s.name, id, err)
			return upload_tracker.UploadState{Slot: -1}, nil
		}
	}
	s.frame.SkippedPoints += skipped

	if count == 0 {
		s.tracker.MarkUploaded(id, -1, 0, version)
		if background {
			s.loader.loaded(id)
		}
		return upload_tracker.UploadState{InGPU: true, Slot: -1, Version: version}, nil
	}

	slot, err := s.pool.Allocate(count, 0, s.program.Layout(), mesh_buffer.WithReleaseStagingOnUpload())
	if err != nil {
		return upload_tracker.UploadState{Slot: -1}, fmt.Errorf("allocate %d points for %s: %w", count, id, err)
	}
	m, err := s.pool.Get(slot)
	if err == nil {
		err = m.AppendVertices(records)
	}
	if err == nil {
		err = m.Upload()
	}
	if err != nil {
		_ = s.pool.Release(slot)
		s.frame.DrawErrors++
		s.logger.Errorf("%s: upload %s to slot %d: %v", s.name, id, slot, err)
		return upload_tracker.UploadState{Slot: -1}, nil
	}

	s.tracker.MarkUploaded(id, slot, count, version)
	s.frame.Uploads++
	if background {
		s.loader.loaded(id)
	}
	s.logger.Debugf("%s: uploaded %d points of %s to slot %d", s.name, count, id, slot)
	return upload_tracker.UploadState{InGPU: true, Slot: slot, Count: count, Version: version}, nil
}

// converter packs r's particles into records. r's lock is held only while taking the geometry; the
// conversion runs on the snapshot. A panic while reading the renderable becomes an error.
func (s *pointCloudRenderSystem) converter(r renderable.Renderable, id uuid.UUID, hl renderable.Highlight) convertFunc {
	return func() (records []float32, count, skipped int, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("reading %s panicked: %v", id, rec)
			}
		}()
		records, count, skipped = s.buildRecords(id, geometryOf(r), hl)
		return records, count, skipped, nil
	}
}

// geometryOf takes r's geometry under its lock.
func geometryOf(r renderable.Renderable) renderable.Geometry {
	r.Lock()
	defer r.Unlock()
	g := r.Geometry()
	g.Particles = g.Particles[:len(g.Particles):len(g.Particles)]
	return g
}

func (s *pointCloudRenderSystem) buildRecords(id uuid.UUID, g renderable.Geometry, hl renderable.Highlight) ([]float32, int, int) {
	o := s.offsets
	records := make([]float32, 0, len(g.Particles)*o.record)
	rec := make([]float32, o.record)
	count, skipped := 0, 0
	for i, p := range g.Particles {
		if g.Visible != nil && !g.Visible(i, p) {
			continue
		}
		if !finiteParticle(p) {
			skipped++
			s.logger.Debugf("%s: %s point %d has non-finite fields, skipped", s.name, id, i)
			continue
		}

		clear(rec)
		color := particleColor(p, hl)
		size := float32(p.Size)
		if hl.Enabled {
			if hl.SizeFactor > 0 {
				size *= hl.SizeFactor
			}
			if hl.AllVisible {
				size = max(size, highlightMinSize)
			}
		}

		copy(rec[o.position:], []float32{float32(p.Position[0]), float32(p.Position[1]), float32(p.Position[2])})
		if o.pm >= 0 {
			copy(rec[o.pm:], []float32{float32(p.ProperMotion[0]), float32(p.ProperMotion[1]), float32(p.ProperMotion[2])})
		}
		if o.color >= 0 {
			copy(rec[o.color:], color[:])
		}
		if o.size >= 0 {
			rec[o.size] = size
		}
		if s.variable {
			s.writeVariability(rec, p, size)
		}

		records = append(records, rec...)
		count++
	}
	return records, count, skipped
}

// writeVariability packs up to variableSamples light curve samples. Sizes scale the point size by the flux
// ratio of each sample to the curve's mean magnitude. Longer curves are subsampled evenly.
func (s *pointCloudRenderSystem) writeVariability(rec []float32, p renderable.Particle, size float32) {
	v := p.Variability
	if v == nil {
		return
	}
	n := min(len(v.Magnitudes), len(v.Times))
	if n == 0 {
		return
	}
	mean := 0.0
	for _, m := range v.Magnitudes[:n] {
		mean += m
	}
	mean /= float64(n)

	samples := min(n, variableSamples)
	rec[s.offsets.nVari] = float32(samples)
	for k := 0; k < samples; k++ {
		src := k * n / samples
		flux := math.Pow(10, -0.4*(v.Magnitudes[src]-mean))
		rec[s.offsets.vmag+k] = size * float32(flux)
		rec[s.offsets.vtime+k] = float32(v.Times[src])
	}
}

func (s *pointCloudRenderSystem) setObjectUniforms(r renderable.Renderable, hl renderable.Highlight, snap settings.RenderSettings, t time.Time) {
	s.backend.SetUniform(UniformAlphaSizeBrRc, alphaOf(r, snap), snap.PointSize, snap.StarBrightness, snap.StarBrightnessPower)
	limits := snap.OpacityLimits
	if hl.Enabled && hl.AllVisible {
		limits = snap.HighlightOpacityLimits
	}
	s.backend.SetUniform(UniformOpacity, limits[0], limits[1])
	hi, lo := splitTime(t, r.Epoch())
	s.backend.SetUniform(UniformTime, hi, lo)
}

// particleColor is the particle's own color unless a highlight overrides it.
func particleColor(p renderable.Particle, hl renderable.Highlight) [4]float32 {
	if hl.Enabled {
		if hl.Plain {
			return hl.Color
		}
		if hl.ColorMap != nil {
			return hl.ColorMap(p)
		}
	}
	return [4]float32{float32(p.Color[0]), float32(p.Color[1]), float32(p.Color[2]), float32(p.Color[3])}
}

func finiteParticle(p renderable.Particle) bool {
	if !common.IsFinite(p.Size) {
		return false
	}
	for i := 0; i < 3; i++ {
		if !common.IsFinite(p.Position[i]) || !common.IsFinite(p.ProperMotion[i]) {
			return false
		}
	}
	for _, c := range p.Color {
		if !common.IsFinite(c) {
			return false
		}
	}
	if v := p.Variability; v != nil {
		for _, m := range v.Magnitudes {
			if !common.IsFinite(m) {
				return false
			}
		}
		for _, t := range v.Times {
			if !common.IsFinite(t) {
				return false
			}
		}
	}
	return true
}

// particleCount reads the particle count of r under its lock.
func particleCount(r renderable.Renderable) int {
	r.Lock()
	defer r.Unlock()
	return len(r.Geometry().Particles)
}
