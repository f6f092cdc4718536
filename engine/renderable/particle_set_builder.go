package renderable

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

type ParticleSetBuilderOption func(*particleSet)

// WithComponentTypes sets the component types used to look up visibility multipliers.
//
// Parameters:
//   - types: the component types
//
// Returns:
//   - ParticleSetBuilderOption: a function that sets the component types
func WithComponentTypes(types ...ComponentType) ParticleSetBuilderOption {
	return func(ps *particleSet) {
		ps.componentTypes = types
	}
}

// WithOpacity sets the initial opacity.
func WithOpacity(opacity float32) ParticleSetBuilderOption {
	return func(ps *particleSet) {
		ps.opacity = opacity
	}
}

// WithEpoch sets the reference time of positions and proper motions.
func WithEpoch(epoch time.Time) ParticleSetBuilderOption {
	return func(ps *particleSet) {
		ps.epoch = epoch
	}
}

// WithPosition sets the reference position used for distance sorting.
func WithPosition(p mgl64.Vec3) ParticleSetBuilderOption {
	return func(ps *particleSet) {
		ps.position = p
	}
}

// WithParticles sets the initial particles.
//
// Parameters:
//   - particles: the particles, owned by the set afterwards
//
// Returns:
//   - ParticleSetBuilderOption: a function that sets the particles
func WithParticles(particles []Particle) ParticleSetBuilderOption {
	return func(ps *particleSet) {
		ps.particles = particles
	}
}

// WithLine sets the initial line strip.
func WithLine(line LineStrip) ParticleSetBuilderOption {
	return func(ps *particleSet) {
		ps.line = &line
	}
}

// WithHighlight sets the initial highlight.
func WithHighlight(h Highlight) ParticleSetBuilderOption {
	return func(ps *particleSet) {
		ps.highlight = h
	}
}
