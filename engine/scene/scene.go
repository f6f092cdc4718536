// package scene sorts renderables into render groups and drives one render system per group each frame.
package scene

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/logger"
	"github.com/Carmen-Shannon/oxy-sky/engine/render_system"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
	"github.com/google/uuid"
)

// Group is a render group. Groups are drawn in ascending order.
type Group int

const (
	GroupPointCloud Group = iota
	GroupBillboard
	GroupLine
)

func (g Group) String() string {
	switch g {
	case GroupPointCloud:
		return "point-cloud"
	case GroupBillboard:
		return "billboard"
	case GroupLine:
		return "line"
	default:
		return fmt.Sprintf("Group(%d)", int(g))
	}
}

// ErrUnclassified is returned by Add when no group was given and the renderable's shape has no default group.
var ErrUnclassified = errors.New("renderable shape has no default render group")

// GroupOf returns the default group of a shape.
//
// Parameters:
//   - shape: the renderable shape
//
// Returns:
//   - Group: the default group
//   - bool: false when the shape has no default group
func GroupOf(shape renderable.Shape) (Group, bool) {
	switch shape {
	case renderable.ShapePoint:
		return GroupPointCloud, true
	case renderable.ShapeQuad:
		return GroupBillboard, true
	case renderable.ShapeLineStrip:
		return GroupLine, true
	default:
		return 0, false
	}
}

// disposeNotifier is implemented by renderables that announce their disposal.
type disposeNotifier interface {
	OnDispose(l renderable.DisposeListener)
}

// Scene holds the renderables of a view and the render systems that draw them.
// Membership changes are safe from any goroutine; Render and Dispose belong to the render thread.
type Scene interface {
	// AddSystem assigns the render system drawing a group and subscribes it to settings changes.
	// A system previously assigned to the group is disposed.
	//
	// Parameters:
	//   - g: the group
	//   - sys: the render system
	AddSystem(g Group, sys render_system.RenderSystem)

	// System returns the render system of a group, or nil.
	System(g Group) render_system.RenderSystem

	// Add registers a renderable. Without an explicit group the renderable's shape decides. Adding a
	// registered renderable to another group moves it. Renderables that announce their disposal are
	// removed when disposed.
	//
	// Parameters:
	//   - r: the renderable
	//   - group: an optional explicit group, only the first is used
	//
	// Returns:
	//   - error: ErrUnclassified when no group applies
	Add(r renderable.Renderable, group ...Group) error

	// Remove unregisters a renderable and frees its GPU data at the next frame. Unknown renderables are ignored.
	Remove(r renderable.Renderable)

	// Invalidate drops a renderable's GPU data at the next frame so it is rebuilt from current data.
	Invalidate(r renderable.Renderable)

	// Renderables returns a copy of a group's renderables in insertion order.
	Renderables(g Group) []renderable.Renderable

	// Len returns the number of registered renderables.
	Len() int

	// ApplySettings applies a settings change and notifies every subscribed render system.
	//
	// Parameters:
	//   - d: the change
	//
	// Returns:
	//   - uint64: the new settings version
	ApplySettings(d settings.Delta) uint64

	// Settings returns the settings store shared by the scene's render systems.
	Settings() settings.Store

	// Render draws every group with a system in ascending group order. A failing group does not stop the
	// groups after it.
	//
	// Parameters:
	//   - cam: the camera
	//   - t: the simulation time
	//
	// Returns:
	//   - error: the joined render errors of the frame
	Render(cam camera.Camera, t time.Time) error

	// Stats returns the summed statistics of every system's last frame.
	Stats() render_system.FrameStats

	// GroupStats returns the statistics of one group's last frame.
	GroupStats(g Group) render_system.FrameStats

	// Dispose releases every render system.
	Dispose()
}

type scene struct {
	mu *sync.RWMutex

	backend renderer.GraphicsBackend
	store   settings.Store
	logger  logger.Logger

	systems map[Group]render_system.RenderSystem
	groups  map[Group][]renderable.Renderable
	members map[uuid.UUID]Group
	unsubs  map[Group]func()

	defaults       bool
	variableStars  bool
	systemOptions  []render_system.RenderSystemBuilderOption
	loaderPool     worker.DynamicWorkerPool
	loaderWorkers  int
	loadThreshold  int
	pendingSystems map[Group]render_system.RenderSystem
}

var _ Scene = &scene{}

// NewScene creates an empty scene drawing through backend. Panics if backend or store is nil.
//
// Parameters:
//   - backend: the graphics backend shared by the default render systems
//   - store: the settings store
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(backend renderer.GraphicsBackend, store settings.Store, options ...SceneBuilderOption) Scene {
	if backend == nil {
		panic("scene: NewScene requires a non-nil backend")
	}
	if store == nil {
		panic("scene: NewScene requires a non-nil settings store")
	}

	s := &scene{
		mu:             &sync.RWMutex{},
		backend:        backend,
		store:          store,
		logger:         logger.NewNopLogger(),
		systems:        make(map[Group]render_system.RenderSystem),
		groups:         make(map[Group][]renderable.Renderable),
		members:        make(map[uuid.UUID]Group),
		unsubs:         make(map[Group]func()),
		pendingSystems: make(map[Group]render_system.RenderSystem),
		loaderWorkers:  2,
	}
	for _, option := range options {
		option(s)
	}
	s.logger = logger.OrNop(s.logger)

	if s.defaults {
		s.installDefaults()
	}
	for _, g := range sortedGroups(s.pendingSystems) {
		s.AddSystem(g, s.pendingSystems[g])
	}
	s.pendingSystems = nil
	return s
}

// installDefaults builds the standard point cloud, billboard and line systems. Background point conversion
// runs on a pool shared by the scene when a load threshold is set.
func (s *scene) installDefaults() {
	base := append([]render_system.RenderSystemBuilderOption{render_system.WithLogger(s.logger)}, s.systemOptions...)

	points, err := render_system.PointCloudPipeline("points", s.variableStars)
	if err != nil {
		panic(fmt.Sprintf("scene: point cloud program: %v", err))
	}
	pointOpts := base
	if s.loadThreshold > 0 {
		s.loaderPool = worker.NewDynamicWorkerPool(max(s.loaderWorkers, 1), render_system.LoaderQueueSize, 1*time.Second)
		pointOpts = append(slices.Clone(base),
			render_system.WithBackgroundLoading(s.loadThreshold, s.loaderWorkers),
			render_system.WithWorkerPool(s.loaderPool, render_system.LoaderQueueSize),
		)
	}

	billboards, err := render_system.BillboardPipeline("billboards")
	if err != nil {
		panic(fmt.Sprintf("scene: billboard program: %v", err))
	}
	lines, err := render_system.LinePipeline("lines")
	if err != nil {
		panic(fmt.Sprintf("scene: line program: %v", err))
	}

	defaults := map[Group]render_system.RenderSystem{
		GroupPointCloud: render_system.NewPointCloudRenderSystem(s.backend, s.store, points, pointOpts...),
		GroupBillboard:  render_system.NewInstancedQuadRenderSystem(s.backend, s.store, billboards, base...),
		GroupLine:       render_system.NewStreamingLineRenderSystem(s.backend, s.store, lines, base...),
	}
	for g, sys := range defaults {
		if _, ok := s.pendingSystems[g]; !ok {
			s.pendingSystems[g] = sys
		}
	}
}

func (s *scene) AddSystem(g Group, sys render_system.RenderSystem) {
	if sys == nil {
		return
	}
	s.mu.Lock()
	old := s.systems[g]
	if old == sys {
		s.mu.Unlock()
		return
	}
	s.systems[g] = sys
	unsub := s.unsubs[g]
	s.unsubs[g] = s.store.Subscribe(sys)
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if old != nil {
		old.Dispose()
		s.logger.Infof("scene: %s system %s replaced by %s", g, old.Name(), sys.Name())
	}
}

func (s *scene) System(g Group) render_system.RenderSystem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systems[g]
}

func (s *scene) Add(r renderable.Renderable, group ...Group) error {
	g, ok := GroupOf(r.Shape())
	if len(group) > 0 {
		g, ok = group[0], true
	}
	if !ok {
		return fmt.Errorf("scene: add %s (%s): %w", r.Name(), r.Shape(), ErrUnclassified)
	}

	s.mu.Lock()
	prev, known := s.members[r.ID()]
	if known && prev == g {
		s.mu.Unlock()
		return nil
	}
	var moved render_system.RenderSystem
	if known {
		s.groups[prev] = removeRenderable(s.groups[prev], r.ID())
		moved = s.systems[prev]
	}
	s.members[r.ID()] = g
	s.groups[g] = append(s.groups[g], r)
	s.mu.Unlock()

	if moved != nil {
		moved.Forget(r)
	}
	if !known {
		if n, ok := r.(disposeNotifier); ok {
			n.OnDispose(s.Remove)
		}
	}
	s.logger.Debugf("scene: %s %s added to %s", r.Name(), r.ID(), g)
	return nil
}

func (s *scene) Remove(r renderable.Renderable) {
	s.mu.Lock()
	g, ok := s.members[r.ID()]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.members, r.ID())
	s.groups[g] = removeRenderable(s.groups[g], r.ID())
	sys := s.systems[g]
	s.mu.Unlock()

	if sys != nil {
		sys.Forget(r)
	}
	s.logger.Debugf("scene: %s %s removed from %s", r.Name(), r.ID(), g)
}

func (s *scene) Invalidate(r renderable.Renderable) {
	s.mu.RLock()
	g, ok := s.members[r.ID()]
	sys := s.systems[g]
	s.mu.RUnlock()
	if ok && sys != nil {
		sys.Evict(r)
	}
}

func (s *scene) Renderables(g Group) []renderable.Renderable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.groups[g])
}

func (s *scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

func (s *scene) ApplySettings(d settings.Delta) uint64 {
	v := s.store.Apply(d)
	s.logger.Debugf("scene: settings %s applied, version %d", d.Kind, v)
	return v
}

func (s *scene) Settings() settings.Store {
	return s.store
}

func (s *scene) Render(cam camera.Camera, t time.Time) error {
	type pass struct {
		group       Group
		sys         render_system.RenderSystem
		renderables []renderable.Renderable
	}

	s.mu.RLock()
	passes := make([]pass, 0, len(s.systems))
	for _, g := range sortedGroups(s.systems) {
		passes = append(passes, pass{group: g, sys: s.systems[g], renderables: slices.Clone(s.groups[g])})
	}
	for g, rs := range s.groups {
		if _, ok := s.systems[g]; !ok && len(rs) > 0 {
			s.logger.Debugf("scene: no system for %s, %d renderables not drawn", g, len(rs))
		}
	}
	s.mu.RUnlock()

	var errs []error
	for _, p := range passes {
		if err := p.sys.Render(p.renderables, cam, t); err != nil {
			s.logger.Errorf("scene: render %s: %v", p.group, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.group, err))
		}
	}
	return errors.Join(errs...)
}

func (s *scene) Stats() render_system.FrameStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total render_system.FrameStats
	for _, sys := range s.systems {
		total = total.Add(sys.Stats())
	}
	return total
}

func (s *scene) GroupStats(g Group) render_system.FrameStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sys := s.systems[g]; sys != nil {
		return sys.Stats()
	}
	return render_system.FrameStats{}
}

func (s *scene) Dispose() {
	s.mu.Lock()
	systems, unsubs, pool := s.systems, s.unsubs, s.loaderPool
	s.systems = make(map[Group]render_system.RenderSystem)
	s.unsubs = make(map[Group]func())
	s.loaderPool = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, g := range sortedGroups(systems) {
		systems[g].Dispose()
	}
	// Systems are disposed first so none submit to a stopped pool.
	if pool != nil {
		pool.Stop()
	}
}

func removeRenderable(rs []renderable.Renderable, id uuid.UUID) []renderable.Renderable {
	return slices.DeleteFunc(rs, func(r renderable.Renderable) bool { return r.ID() == id })
}

func sortedGroups[V any](m map[Group]V) []Group {
	keys := make([]Group, 0, len(m))
	for g := range m {
		keys = append(keys, g)
	}
	slices.Sort(keys)
	return keys
}
