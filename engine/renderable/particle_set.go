package renderable

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// DisposeListener is called, on the goroutine that disposed the set, after a ParticleSet is disposed.
type DisposeListener func(r Renderable)

// particleSet guards its geometry with mu, the lock handed out through Lock. Scalar state has its own lock
// and atomics so render threads reading it never wait on a goroutine copying geometry.
type particleSet struct {
	mu sync.Mutex

	id             uuid.UUID
	name           string
	shape          Shape
	componentTypes []ComponentType
	epoch          time.Time
	version        atomic.Uint64
	disposed       atomic.Bool

	state            sync.RWMutex
	opacity          float32
	highlight        Highlight
	position         mgl64.Vec3
	disposeListeners []DisposeListener

	particles []Particle
	line      *LineStrip
	visible   func(index int, p Particle) bool
}

// ParticleSet is the concrete Renderable backing datasets, billboards and orbit lines.
// Setters that change uploaded data bump Version; opacity changes do not.
type ParticleSet interface {
	Renderable

	// SetParticles replaces the particles.
	//
	// Parameters:
	//   - particles: the new particles, owned by the set afterwards
	SetParticles(particles []Particle)

	// AppendParticles adds particles to the set.
	AppendParticles(particles ...Particle)

	// SetLine replaces the line strip.
	SetLine(line LineStrip)

	// SetFilter sets the particle visibility predicate; nil shows every particle.
	SetFilter(visible func(index int, p Particle) bool)

	// SetHighlight changes the highlight. Colours are baked into vertices, so this bumps Version.
	SetHighlight(h Highlight)

	SetOpacity(opacity float32)
	SetPosition(p mgl64.Vec3)

	// Len returns the number of particles, or line points for line strips.
	Len() int

	// OnDispose registers a listener called after Dispose.
	OnDispose(l DisposeListener)

	// Dispose marks the set disposed and notifies listeners. Safe from any goroutine; idempotent.
	Dispose()
}

var _ ParticleSet = &particleSet{}

// NewParticleSet creates an empty set of the given shape with opacity 1.
//
// Parameters:
//   - name: display name used in logs
//   - shape: the geometry kind
//   - options: functional options to configure the set
//
// Returns:
//   - ParticleSet: the newly created set
func NewParticleSet(name string, shape Shape, options ...ParticleSetBuilderOption) ParticleSet {
	ps := &particleSet{
		id:      uuid.New(),
		name:    name,
		shape:   shape,
		opacity: 1,
	}
	ps.version.Store(1)
	for _, option := range options {
		option(ps)
	}
	return ps
}

func (ps *particleSet) Lock()   { ps.mu.Lock() }
func (ps *particleSet) Unlock() { ps.mu.Unlock() }

func (ps *particleSet) ID() uuid.UUID { return ps.id }
func (ps *particleSet) Name() string  { return ps.name }
func (ps *particleSet) Shape() Shape  { return ps.shape }

func (ps *particleSet) ComponentTypes() []ComponentType {
	return slices.Clone(ps.componentTypes)
}

// The accessors below never take the geometry lock.

func (ps *particleSet) Opacity() float32 {
	ps.state.RLock()
	defer ps.state.RUnlock()
	return ps.opacity
}

func (ps *particleSet) Highlight() Highlight {
	ps.state.RLock()
	defer ps.state.RUnlock()
	return ps.highlight
}

func (ps *particleSet) Position() mgl64.Vec3 {
	ps.state.RLock()
	defer ps.state.RUnlock()
	return ps.position
}

func (ps *particleSet) Epoch() time.Time {
	return ps.epoch
}

func (ps *particleSet) Version() uint64 {
	return ps.version.Load()
}

func (ps *particleSet) Disposed() bool {
	return ps.disposed.Load()
}

// Geometry must be called with the lock held.
func (ps *particleSet) Geometry() Geometry {
	return Geometry{
		Shape:     ps.shape,
		Particles: ps.particles,
		Line:      ps.line,
		Visible:   ps.visible,
	}
}

func (ps *particleSet) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.line != nil {
		return len(ps.line.Points)
	}
	return len(ps.particles)
}

func (ps *particleSet) SetParticles(particles []Particle) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.particles = particles
	ps.version.Add(1)
}

func (ps *particleSet) AppendParticles(particles ...Particle) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.particles = append(ps.particles, particles...)
	ps.version.Add(1)
}

func (ps *particleSet) SetLine(line LineStrip) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.line = &line
	ps.version.Add(1)
}

func (ps *particleSet) SetFilter(visible func(index int, p Particle) bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.visible = visible
	ps.version.Add(1)
}

func (ps *particleSet) SetHighlight(h Highlight) {
	ps.state.Lock()
	defer ps.state.Unlock()
	ps.highlight = h
	ps.version.Add(1)
}

func (ps *particleSet) SetOpacity(opacity float32) {
	ps.state.Lock()
	defer ps.state.Unlock()
	ps.opacity = opacity
}

func (ps *particleSet) SetPosition(p mgl64.Vec3) {
	ps.state.Lock()
	defer ps.state.Unlock()
	ps.position = p
}

func (ps *particleSet) OnDispose(l DisposeListener) {
	ps.state.Lock()
	defer ps.state.Unlock()
	ps.disposeListeners = append(ps.disposeListeners, l)
}

func (ps *particleSet) Dispose() {
	ps.state.Lock()
	if !ps.disposed.CompareAndSwap(false, true) {
		ps.state.Unlock()
		return
	}
	listeners := slices.Clone(ps.disposeListeners)
	ps.state.Unlock()

	for _, l := range listeners {
		l(ps)
	}
}
