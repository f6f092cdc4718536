// package render_system turns renderables into GPU-resident vertex data and draws it every frame.
//
// Every strategy shares the same frame: queued evictions are applied, pre hooks run, the strategy's draw
// pass runs, post hooks run. Strategies differ in topology, in whether vertex data is cached across frames
// or rebuilt every frame, and in whether they draw instanced geometry.
package render_system

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/logger"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/mesh_buffer"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/upload_tracker"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
	"github.com/google/uuid"
)

// ErrSystemDisposed is returned by Render after Dispose.
var ErrSystemDisposed = errors.New("render system disposed")

// Hook is a side effect run before or after a system's draw pass, in registration order.
type Hook func(renderables []renderable.Renderable, cam camera.Camera, t time.Time)

// FrameStats counts what a render system did in one frame.
type FrameStats struct {
	DrawCalls     int
	Uploads       int
	Evictions     int
	SkippedPoints int
	DrawErrors    int
}

// Add returns the field-wise sum of two stats.
func (f FrameStats) Add(o FrameStats) FrameStats {
	return FrameStats{
		DrawCalls:     f.DrawCalls + o.DrawCalls,
		Uploads:       f.Uploads + o.Uploads,
		Evictions:     f.Evictions + o.Evictions,
		SkippedPoints: f.SkippedPoints + o.SkippedPoints,
		DrawErrors:    f.DrawErrors + o.DrawErrors,
	}
}

// RenderSystem is the per-frame entry point for one group of renderables. All methods except Evict, Forget
// and OnSettingsChanged must be called from the render thread.
type RenderSystem interface {
	settings.Listener

	// Name returns the system name used in logs and buffer labels.
	Name() string

	// Render draws the renderables assigned to this system for one frame.
	//
	// Parameters:
	//   - renderables: the renderables, drawn in this order unless the system sorts back to front
	//   - cam: the camera
	//   - t: the simulation time
	//
	// Returns:
	//   - error: only for buffer allocation failures; per-object failures are logged and skipped
	Render(renderables []renderable.Renderable, cam camera.Camera, t time.Time) error

	// AddPreHooks registers hooks run before the draw pass.
	AddPreHooks(hooks ...Hook)

	// AddPostHooks registers hooks run after the draw pass.
	AddPostHooks(hooks ...Hook)

	// Evict drops a renderable's GPU copy at the start of the next frame so it is rebuilt from current data.
	// Safe from any goroutine.
	Evict(r renderable.Renderable)

	// Forget drops a renderable's GPU copy and tracking entry at the start of the next frame.
	// Safe from any goroutine.
	Forget(r renderable.Renderable)

	// IsUploaded reports whether a renderable's data is resident on the GPU.
	IsUploaded(r renderable.Renderable) bool

	// Stats returns the counters of the last completed frame.
	Stats() FrameStats

	// Pool returns the buffer pool backing this system.
	Pool() mesh_buffer.Pool

	// Dispose releases every GPU buffer. Safe to call more than once.
	Dispose()
}

// renderSystem holds everything strategies share. Strategies embed it and set stud.
type renderSystem struct {
	name     string
	backend  renderer.GraphicsBackend
	settings settings.Provider
	program  pipeline.Pipeline
	topology pipeline.Topology
	logger   logger.Logger

	pool    mesh_buffer.Pool
	tracker upload_tracker.Tracker[uuid.UUID]

	pre  []Hook
	post []Hook

	capacity       int
	backToFront    bool
	lineAlphaScale float32
	bgThreshold    int
	loaderWorkers  int
	submit         func(t worker.Task)
	maxPending     int

	// effectsVersion is the settings version the effect uniforms were last checked at, 0 if never.
	effectsVersion uint64
	effectsDirty   atomic.Bool
	effects        [4]float32

	frame    FrameStats
	last     FrameStats
	disposed bool

	stud    func(renderables []renderable.Renderable, cam camera.Camera, t time.Time, s settings.RenderSettings, version uint64) error
	evicted func(e upload_tracker.Eviction[uuid.UUID])
	release func()
}

func newRenderSystem(name string, backend renderer.GraphicsBackend, provider settings.Provider, program pipeline.Pipeline, topology pipeline.Topology, options []RenderSystemBuilderOption) *renderSystem {
	if backend == nil {
		panic("render_system: nil backend")
	}
	if provider == nil {
		panic("render_system: nil settings provider")
	}
	if program == nil || program.Layout() == nil {
		panic("render_system: program without vertex layout")
	}
	s := &renderSystem{
		name:           name,
		backend:        backend,
		settings:       provider,
		program:        program,
		topology:       topology,
		logger:         logger.NewNopLogger(),
		tracker:        upload_tracker.NewTracker[uuid.UUID](),
		capacity:       10000,
		lineAlphaScale: 1,
		loaderWorkers:  2,
	}
	for _, option := range options {
		option(s)
	}
	s.logger = logger.OrNop(s.logger)
	if s.capacity <= 0 {
		panic(fmt.Sprintf("render_system: %s: buffer capacity %d", name, s.capacity))
	}
	s.pool = mesh_buffer.NewPool(backend, name)
	s.tracker.Subscribe(s.onEviction)
	return s
}

func (s *renderSystem) Name() string { return s.name }

func (s *renderSystem) Render(renderables []renderable.Renderable, cam camera.Camera, t time.Time) error {
	if s.disposed {
		return fmt.Errorf("%s: %w", s.name, ErrSystemDisposed)
	}
	s.frame = FrameStats{}
	s.frame.Evictions = s.tracker.ProcessEvictions()

	for _, h := range s.pre {
		h(renderables, cam, t)
	}

	if s.backToFront {
		renderables = sortBackToFront(renderables, cam)
	}
	var err error
	if berr := s.backend.BeginShader(s.program); berr != nil {
		s.frame.DrawErrors++
		s.logger.Errorf("%s: bind program %s: %v", s.name, s.program.PipelineKey(), berr)
	} else {
		snap, version := s.settings.Snapshot(), s.settings.Version()
		s.setGlobalUniforms(cam, snap, version)
		err = s.stud(renderables, cam, t, snap, version)
		s.backend.EndShader()
	}

	for _, h := range s.post {
		h(renderables, cam, t)
	}
	s.last = s.frame
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

func (s *renderSystem) AddPreHooks(hooks ...Hook) {
	s.pre = append(s.pre, hooks...)
}

func (s *renderSystem) AddPostHooks(hooks ...Hook) {
	s.post = append(s.post, hooks...)
}

func (s *renderSystem) Evict(r renderable.Renderable) {
	s.tracker.MarkEvicted(r.ID())
}

func (s *renderSystem) Forget(r renderable.Renderable) {
	s.tracker.MarkDisposed(r.ID())
}

func (s *renderSystem) IsUploaded(r renderable.Renderable) bool {
	return s.tracker.IsUploaded(r.ID())
}

func (s *renderSystem) Stats() FrameStats {
	return s.last
}

func (s *renderSystem) Pool() mesh_buffer.Pool {
	return s.pool
}

func (s *renderSystem) OnSettingsChanged(d settings.Delta) {
	if d.AffectsEffects() {
		s.effectsDirty.Store(true)
	}
}

func (s *renderSystem) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.release != nil {
		s.release()
	}
	s.tracker.Reset()
	s.pool.Dispose()
}

// onEviction runs on the render thread inside ProcessEvictions.
func (s *renderSystem) onEviction(e upload_tracker.Eviction[uuid.UUID]) {
	if e.State.Slot >= 0 {
		if err := s.pool.Release(e.State.Slot); err != nil {
			s.logger.Warnf("%s: release slot %d of %s: %v", s.name, e.State.Slot, e.Key, err)
		}
	}
	if s.evicted != nil {
		s.evicted(e)
	}
	if e.Forgotten {
		s.logger.Debugf("%s: forgot %s", s.name, e.Key)
	} else {
		s.logger.Debugf("%s: evicted %s from slot %d", s.name, e.Key, e.State.Slot)
	}
}

// draw issues one draw call and turns a backend error or panic into a logged, counted skip.
func (s *renderSystem) draw(label string, slot int, m renderer.Mesh, topology pipeline.Topology, count int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("draw panicked: %v", rec)
		}
		if err != nil {
			s.frame.DrawErrors++
			s.logger.Errorf("%s: draw %s from slot %d failed: %v", s.name, label, slot, err)
			return
		}
		s.frame.DrawCalls++
	}()
	return s.backend.DrawMesh(m, topology, count)
}

// sortBackToFront returns a copy of renderables ordered by decreasing camera distance. Equal distances keep
// their input order.
func sortBackToFront(renderables []renderable.Renderable, cam camera.Camera) []renderable.Renderable {
	type entry struct {
		r renderable.Renderable
		d float64
	}
	entries := make([]entry, len(renderables))
	for i, r := range renderables {
		entries[i] = entry{r: r, d: cam.Distance(r.Position())}
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		switch {
		case a.d > b.d:
			return -1
		case a.d < b.d:
			return 1
		}
		return 0
	})
	out := make([]renderable.Renderable, len(entries))
	for i, e := range entries {
		out[i] = e.r
	}
	return out
}
