package scene

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/render_system"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/mesh_buffer"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

func testCamera() camera.Camera {
	return camera.NewCamera(camera.WithEye(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, -1}))
}

func stars(name string, n int) renderable.ParticleSet {
	ps := make([]renderable.Particle, n)
	for i := range ps {
		ps[i] = renderable.Particle{Position: mgl64.Vec3{float64(i), 0, -10}, Size: 1, Color: [4]float64{1, 1, 1, 1}}
	}
	return renderable.NewParticleSet(name, renderable.ShapePoint, renderable.WithEpoch(epoch), renderable.WithParticles(ps))
}

func orbit(name string) renderable.ParticleSet {
	return renderable.NewParticleSet(name, renderable.ShapeLineStrip, renderable.WithLine(renderable.LineStrip{
		Points: []mgl64.Vec3{{0, 0, -5}, {1, 0, -5}, {1, 1, -5}},
		Color:  [4]float32{0, 1, 0, 1},
	}))
}

func quads(name string) renderable.ParticleSet {
	return renderable.NewParticleSet(name, renderable.ShapeQuad, renderable.WithParticles([]renderable.Particle{
		{Position: mgl64.Vec3{0, 0, -3}, Size: 1, Color: [4]float64{1, 1, 1, 1}},
	}))
}

func programs(draws []headless.DrawCall) []string {
	out := make([]string, 0, len(draws))
	for _, d := range draws {
		out = append(out, d.Program)
	}
	return out
}

func TestGroupOf(t *testing.T) {
	g, ok := GroupOf(renderable.ShapePoint)
	assert.True(t, ok)
	assert.Equal(t, GroupPointCloud, g)
	g, _ = GroupOf(renderable.ShapeQuad)
	assert.Equal(t, GroupBillboard, g)
	g, _ = GroupOf(renderable.ShapeLineStrip)
	assert.Equal(t, GroupLine, g)
	_, ok = GroupOf(renderable.ShapeModel)
	assert.False(t, ok)
	assert.Equal(t, "billboard", GroupBillboard.String())
}

func TestAddRequiresAGroup(t *testing.T) {
	s := NewScene(headless.NewBackend(), settings.NewStore(settings.Default()))
	model := renderable.NewParticleSet("galaxy", renderable.ShapeModel)

	assert.ErrorIs(t, s.Add(model), ErrUnclassified)
	require.NoError(t, s.Add(model, GroupBillboard))
	assert.Len(t, s.Renderables(GroupBillboard), 1)
	assert.Equal(t, 1, s.Len())
}

func TestRenderDrawsGroupsInOrder(t *testing.T) {
	b := headless.NewBackend()
	s := NewScene(b, settings.NewStore(settings.Default()), WithDefaultSystems(false))
	require.NoError(t, s.Add(orbit("orbit")))
	require.NoError(t, s.Add(quads("cluster")))
	require.NoError(t, s.Add(stars("hip", 3)))

	require.NoError(t, s.Render(testCamera(), epoch))
	assert.Equal(t, []string{"points", "billboards", "lines"}, programs(b.Draws()))

	stats := s.Stats()
	assert.Equal(t, 3, stats.DrawCalls)
	assert.Equal(t, 3, stats.Uploads)
	assert.Equal(t, 1, s.GroupStats(GroupPointCloud).DrawCalls)
}

func TestRemoveFreesBuffersNextFrame(t *testing.T) {
	b := headless.NewBackend()
	store := settings.NewStore(settings.Default())
	program, err := render_system.PointCloudPipeline("points", false)
	require.NoError(t, err)
	sys := render_system.NewPointCloudRenderSystem(b, store, program)
	s := NewScene(b, store, WithSystem(GroupPointCloud, sys))
	set := stars("hip", 4)
	require.NoError(t, s.Add(set))

	require.NoError(t, s.Render(testCamera(), epoch))
	assert.Equal(t, 1, b.LiveBuffers())
	assert.True(t, sys.IsUploaded(set))

	s.Remove(set)
	s.Remove(set)
	assert.Equal(t, 0, s.Len())
	require.NoError(t, s.Render(testCamera(), epoch))
	assert.Equal(t, 0, b.LiveBuffers())
	assert.False(t, sys.IsUploaded(set))
}

func TestDisposedRenderableLeavesScene(t *testing.T) {
	s := NewScene(headless.NewBackend(), settings.NewStore(settings.Default()), WithDefaultSystems(false))
	set := stars("hip", 2)
	require.NoError(t, s.Add(set))
	require.NoError(t, s.Render(testCamera(), epoch))

	set.Dispose()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Renderables(GroupPointCloud))
}

func TestInvalidateRebuildsOnNextFrame(t *testing.T) {
	s := NewScene(headless.NewBackend(), settings.NewStore(settings.Default()), WithDefaultSystems(false))
	set := stars("hip", 2)
	require.NoError(t, s.Add(set))
	cam := testCamera()

	require.NoError(t, s.Render(cam, epoch))
	assert.Equal(t, 1, s.Stats().Uploads)
	require.NoError(t, s.Render(cam, epoch))
	assert.Equal(t, 0, s.Stats().Uploads)

	s.Invalidate(set)
	require.NoError(t, s.Render(cam, epoch))
	assert.Equal(t, 1, s.Stats().Evictions)
	assert.Equal(t, 1, s.Stats().Uploads)
}

func TestAddMovesBetweenGroups(t *testing.T) {
	s := NewScene(headless.NewBackend(), settings.NewStore(settings.Default()), WithDefaultSystems(false))
	set := stars("hip", 2)
	require.NoError(t, s.Add(set))
	require.NoError(t, s.Add(set))
	assert.Len(t, s.Renderables(GroupPointCloud), 1)

	require.NoError(t, s.Add(set, GroupBillboard))
	assert.Empty(t, s.Renderables(GroupPointCloud))
	assert.Len(t, s.Renderables(GroupBillboard), 1)
	assert.Equal(t, 1, s.Len())
}

func TestApplySettingsReachesSystems(t *testing.T) {
	b := headless.NewBackend()
	s := NewScene(b, settings.NewStore(settings.Default()), WithDefaultSystems(false))
	cam := testCamera()

	require.NoError(t, s.Render(cam, epoch))
	assert.Equal(t, 1, b.UniformWrites("points", render_system.UniformEffects))

	v := s.ApplySettings(settings.Relativistic(true))
	assert.Equal(t, v, s.Settings().Version())
	require.NoError(t, s.Render(cam, epoch))
	assert.Equal(t, 2, b.UniformWrites("points", render_system.UniformEffects))
	assert.True(t, s.Settings().Snapshot().Relativistic)
}

func TestFailingGroupDoesNotStopLaterGroups(t *testing.T) {
	b := headless.NewBackend()
	store := settings.NewStore(settings.Default())
	lines, err := render_system.LinePipeline("lines")
	require.NoError(t, err)
	tiny := render_system.NewStreamingLineRenderSystem(b, store, lines, render_system.WithBufferCapacity(1))
	s := NewScene(b, store, WithDefaultSystems(false), WithSystem(GroupPointCloud, tiny))
	require.NoError(t, s.Add(quads("cluster")))
	tiny.AddLine(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, [4]float32{1, 1, 1, 1})

	err = s.Render(testCamera(), epoch)
	assert.ErrorIs(t, err, mesh_buffer.ErrInvalidCapacity)
	assert.Equal(t, []string{"billboards"}, programs(b.Draws()))
}

func TestAddSystemDisposesReplacedSystem(t *testing.T) {
	b := headless.NewBackend()
	store := settings.NewStore(settings.Default())
	s := NewScene(b, store, WithDefaultSystems(false))
	require.NoError(t, s.Add(stars("hip", 2)))
	require.NoError(t, s.Render(testCamera(), epoch))
	old := s.System(GroupPointCloud)
	assert.Equal(t, 1, old.Pool().Live())

	program, err := render_system.PointCloudPipeline("points-v2", false)
	require.NoError(t, err)
	s.AddSystem(GroupPointCloud, render_system.NewPointCloudRenderSystem(b, store, program))
	assert.Equal(t, 0, old.Pool().Live())
	assert.ErrorIs(t, old.Render(nil, testCamera(), epoch), render_system.ErrSystemDisposed)

	b.Reset()
	require.NoError(t, s.Render(testCamera(), epoch))
	assert.Equal(t, []string{"points-v2"}, programs(b.Draws()))
}

func TestDisposeReleasesEverySystem(t *testing.T) {
	b := headless.NewBackend()
	s := NewScene(b, settings.NewStore(settings.Default()), WithDefaultSystems(false))
	require.NoError(t, s.Add(stars("hip", 2)))
	require.NoError(t, s.Add(orbit("orbit")))
	require.NoError(t, s.Render(testCamera(), epoch))
	assert.Positive(t, b.LiveBuffers())

	s.Dispose()
	assert.Equal(t, 0, b.LiveBuffers())
	assert.Nil(t, s.System(GroupLine))
}

func TestNewScenePanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() { NewScene(nil, settings.NewStore(settings.Default())) })
	assert.Panics(t, func() { NewScene(headless.NewBackend(), nil) })
}

type countingSystem struct {
	render_system.RenderSystem
	deltas atomic.Int32
}

func (c *countingSystem) OnSettingsChanged(d settings.Delta) {
	c.deltas.Add(1)
	c.RenderSystem.OnSettingsChanged(d)
}

func TestReplacedSystemStopsReceivingSettings(t *testing.T) {
	b := headless.NewBackend()
	store := settings.NewStore(settings.Default())
	lines, err := render_system.LinePipeline("lines")
	require.NoError(t, err)
	first := &countingSystem{RenderSystem: render_system.NewStreamingLineRenderSystem(b, store, lines)}
	second := &countingSystem{RenderSystem: render_system.NewStreamingLineRenderSystem(b, store, lines)}
	s := NewScene(b, store, WithSystem(GroupLine, first))

	s.ApplySettings(settings.PointSize(2))
	assert.Equal(t, int32(1), first.deltas.Load())

	s.AddSystem(GroupLine, second)
	s.AddSystem(GroupLine, second)
	s.ApplySettings(settings.PointSize(3))
	assert.Equal(t, int32(1), first.deltas.Load())
	assert.Equal(t, int32(1), second.deltas.Load())

	s.Dispose()
	s.ApplySettings(settings.PointSize(4))
	assert.Equal(t, int32(1), second.deltas.Load())
}

type stopCounter struct {
	worker.DynamicWorkerPool
	stops atomic.Int32
}

func (p *stopCounter) Stop() {
	p.stops.Add(1)
	p.DynamicWorkerPool.Stop()
}

func TestDisposeStopsSharedLoaderPool(t *testing.T) {
	s := NewScene(headless.NewBackend(), settings.NewStore(settings.Default()),
		WithDefaultSystems(false), WithBackgroundLoading(1, 1))
	sc := s.(*scene)
	require.NotNil(t, sc.loaderPool)
	pool := &stopCounter{DynamicWorkerPool: sc.loaderPool}
	sc.loaderPool = pool

	require.NoError(t, s.Add(stars("hip", 3)))
	require.NoError(t, s.Render(testCamera(), epoch))
	s.Dispose()
	s.Dispose()
	assert.Equal(t, int32(1), pool.stops.Load())
	assert.Nil(t, sc.loaderPool)
}
