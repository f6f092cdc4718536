package render_system

import (
	"time"

	"github.com/Carmen-Shannon/oxy-sky/common"
	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderable"
	"github.com/Carmen-Shannon/oxy-sky/engine/settings"
)

// Uniform names shared by every program.
const (
	UniformProjView = "u_projView"
	UniformCamPos   = "u_camPos"
	UniformCamDir   = "u_camDir"
	UniformCamUp    = "u_camUp"
	UniformClip     = "u_clip"
	UniformEffects  = "u_effects"
	UniformVelDir   = "u_velDirVc"
)

// Point cloud and billboard uniforms.
const (
	UniformAlphaSizeBrRc = "u_alphaSizeBrRc"
	UniformOpacity       = "u_opacityLimits"
	UniformTime          = "u_t"
	UniformSizeParams    = "u_sizeParams"
	// UniformStarTex carries the star sprite profile index in x.
	UniformStarTex       = "u_starTex"
)

// speedOfLight in internal units (km) per second.
const speedOfLight = 299792.458

// setGlobalUniforms writes the per-frame camera uniforms of the bound program. The effect toggles are only
// rewritten when the settings version moved and their values actually changed.
func (s *renderSystem) setGlobalUniforms(cam camera.Camera, snap settings.RenderSettings, version uint64) {
	pv := cam.ProjectionView()
	s.backend.SetUniform(UniformProjView, pv[:]...)
	p := cam.Position()
	s.backend.SetUniform(UniformCamPos, float32(p[0]), float32(p[1]), float32(p[2]))
	d := cam.Direction()
	s.backend.SetUniform(UniformCamDir, d[:]...)
	up := cam.Up()
	s.backend.SetUniform(UniformCamUp, up[:]...)
	s.backend.SetUniform(UniformClip, cam.Near(), cam.Far())

	if snap.Relativistic {
		v := cam.Velocity()
		speed := v.Len()
		var dir [3]float32
		if speed > 0 {
			n := v.Mul(1 / speed)
			dir = [3]float32{float32(n[0]), float32(n[1]), float32(n[2])}
		}
		s.backend.SetUniform(UniformVelDir, dir[0], dir[1], dir[2], float32(speed/speedOfLight))
	}

	dirty := s.effectsDirty.Swap(false)
	if s.effectsVersion == version && !dirty {
		return
	}
	effects := [4]float32{boolToFloat(snap.Relativistic), boolToFloat(snap.GravitationalWaves), boolToFloat(snap.LogarithmicDepth), 0}
	if s.effectsVersion == 0 || dirty || effects != s.effects {
		s.backend.SetUniform(UniformEffects, effects[:]...)
		s.effects = effects
	}
	s.effectsVersion = version
}

// alphaOf is the product of the per-component-type alphas of r times its opacity. Component ordinals
// outside the alpha table contribute 1.
func alphaOf(r renderable.Renderable, snap settings.RenderSettings) float32 {
	a := float32(1)
	for _, ord := range renderable.Ordinals(r.ComponentTypes()) {
		a *= snap.ComponentAlpha(ord)
	}
	return a * r.Opacity()
}

// daysSince returns the fractional days from epoch to t without overflowing time.Duration.
func daysSince(t, epoch time.Time) float64 {
	secs := float64(t.Unix() - epoch.Unix())
	nanos := float64(t.Nanosecond() - epoch.Nanosecond())
	return (secs + nanos/1e9) / 86400
}

// splitTime returns the u_t pair for a renderable.
func splitTime(t, epoch time.Time) (hi, lo float32) {
	return common.SplitDouble(daysSince(t, epoch))
}

// setSpriteUniforms writes the per-frame size parameters and the star sprite profile.
func (s *renderSystem) setSpriteUniforms(snap settings.RenderSettings) {
	s.backend.SetUniform(UniformSizeParams, snap.PointSize, snap.ScaleFactor, snap.SizeFalloff, snap.LineWidth)
	s.backend.SetUniform(UniformStarTex, float32(snap.StarTextureIndex))
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
