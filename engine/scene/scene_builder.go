package scene

import (
	"github.com/Carmen-Shannon/oxy-sky/engine/logger"
	"github.com/Carmen-Shannon/oxy-sky/engine/render_system"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithLogger sets the scene logger. Default systems log through it too.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLogger(l logger.Logger) SceneBuilderOption {
	return func(s *scene) {
		s.logger = l
	}
}

// WithSystem assigns a render system to a group during construction. It takes precedence over the
// default system of the same group.
//
// Parameters:
//   - g: the group
//   - sys: the render system
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSystem(g Group, sys render_system.RenderSystem) SceneBuilderOption {
	return func(s *scene) {
		s.pendingSystems[g] = sys
	}
}

// WithDefaultSystems installs the standard point cloud, billboard and line systems for every group that was
// not given a system with WithSystem.
//
// Parameters:
//   - variableStars: whether point clouds carry light curves
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithDefaultSystems(variableStars bool) SceneBuilderOption {
	return func(s *scene) {
		s.defaults = true
		s.variableStars = variableStars
	}
}

// WithSystemOptions passes options to every default system.
func WithSystemOptions(options ...render_system.RenderSystemBuilderOption) SceneBuilderOption {
	return func(s *scene) {
		s.systemOptions = append(s.systemOptions, options...)
	}
}

// WithBackgroundLoading converts point clouds of at least threshold particles on a worker pool shared by
// the default systems. Defaults to 2 workers; a threshold of 0 keeps every conversion on the render thread.
//
// Parameters:
//   - threshold: the minimum particle count converted in the background
//   - workers: the number of loader workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBackgroundLoading(threshold, workers int) SceneBuilderOption {
	return func(s *scene) {
		if workers < 1 {
			workers = 1
		}
		s.loadThreshold = threshold
		s.loaderWorkers = workers
	}
}
