package renderable

import (
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParticleSet(t *testing.T) {
	ps := NewParticleSet("hip", ShapePoint,
		WithComponentTypes(ComponentStars, ComponentParticles),
		WithOpacity(0.5),
		WithParticles([]Particle{{Size: 1}, {Size: 2}}),
	)
	assert.Equal(t, "hip", ps.Name())
	assert.Equal(t, ShapePoint, ps.Shape())
	assert.Equal(t, []int{0, 1}, Ordinals(ps.ComponentTypes()))
	assert.Equal(t, float32(0.5), ps.Opacity())
	assert.Equal(t, 2, ps.Len())
	assert.NotEqual(t, ps.ID(), NewParticleSet("other", ShapePoint).ID())
}

func TestVersionBumps(t *testing.T) {
	ps := NewParticleSet("s", ShapePoint)
	v := ps.Version()

	ps.SetOpacity(0.2)
	ps.SetPosition(mgl64.Vec3{1, 2, 3})
	assert.Equal(t, v, ps.Version())

	ps.AppendParticles(Particle{Size: 1})
	ps.SetHighlight(Highlight{Enabled: true, Plain: true})
	ps.SetFilter(func(int, Particle) bool { return true })
	assert.Equal(t, v+3, ps.Version())
}

func TestGeometryVariant(t *testing.T) {
	line := NewParticleSet("orbit", ShapeLineStrip, WithLine(LineStrip{
		Points:     []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}},
		ClosedLoop: true,
	}))
	line.Lock()
	g := line.Geometry()
	line.Unlock()
	assert.Equal(t, ShapeLineStrip, g.Shape)
	require.NotNil(t, g.Line)
	assert.Nil(t, g.Particles)
	assert.Equal(t, 2, line.Len())
}

func TestDisposeNotifiesOnce(t *testing.T) {
	ps := NewParticleSet("s", ShapeQuad)
	calls := 0
	ps.OnDispose(func(r Renderable) {
		calls++
		assert.True(t, r.Disposed())
	})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ps.Dispose()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "line-strip", ShapeLineStrip.String())
	assert.Equal(t, "Shape(9)", Shape(9).String())
}

func TestAccessorsDoNotWaitForGeometryLock(t *testing.T) {
	ps := NewParticleSet("held", ShapePoint, WithOpacity(0.25), WithParticles([]Particle{{Size: 1}}))
	ps.Lock()
	defer ps.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ps.Version()
		_ = ps.Disposed()
		_ = ps.Highlight()
		_ = ps.Opacity()
		_ = ps.Position()
		ps.SetOpacity(0.5)
		ps.SetHighlight(Highlight{Enabled: true})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("accessors blocked on the geometry lock")
	}
	assert.Equal(t, float32(0.5), ps.Opacity())
	assert.True(t, ps.Highlight().Enabled)
}

func TestGeometrySnapshotSurvivesAppend(t *testing.T) {
	ps := NewParticleSet("grow", ShapePoint, WithParticles([]Particle{{Size: 1}, {Size: 2}}))
	ps.Lock()
	g := ps.Geometry()
	ps.Unlock()

	ps.AppendParticles(Particle{Size: 3})
	ps.SetParticles([]Particle{{Size: 9}})

	require.Len(t, g.Particles, 2)
	assert.Equal(t, 1.0, g.Particles[0].Size)
	assert.Equal(t, 2.0, g.Particles[1].Size)
}
