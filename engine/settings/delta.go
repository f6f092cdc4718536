package settings

import "fmt"

// DeltaKind names the setting a Delta changes.
type DeltaKind int

const (
	DeltaStarBrightness DeltaKind = iota
	DeltaStarBrightnessPower
	DeltaPointSize
	DeltaOpacityLimits
	DeltaStarTexture
	DeltaComponentAlpha
	DeltaRelativistic
	DeltaGravitationalWaves
	DeltaLogarithmicDepth
	DeltaReplace
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaStarBrightness:
		return "star-brightness"
	case DeltaStarBrightnessPower:
		return "star-brightness-power"
	case DeltaPointSize:
		return "point-size"
	case DeltaOpacityLimits:
		return "opacity-limits"
	case DeltaStarTexture:
		return "star-texture"
	case DeltaComponentAlpha:
		return "component-alpha"
	case DeltaRelativistic:
		return "relativistic"
	case DeltaGravitationalWaves:
		return "gravitational-waves"
	case DeltaLogarithmicDepth:
		return "logarithmic-depth"
	case DeltaReplace:
		return "replace"
	default:
		return fmt.Sprintf("DeltaKind(%d)", int(k))
	}
}

// Delta is a single typed settings change. Build one with the constructors below.
type Delta struct {
	Kind    DeltaKind
	Value   float32
	Limits  [2]float32
	Index   int
	Enabled bool
	// Settings is the full replacement for DeltaReplace.
	Settings RenderSettings
}

// StarBrightness sets RenderSettings.StarBrightness.
func StarBrightness(v float32) Delta { return Delta{Kind: DeltaStarBrightness, Value: v} }

// StarBrightnessPower sets RenderSettings.StarBrightnessPower.
func StarBrightnessPower(v float32) Delta { return Delta{Kind: DeltaStarBrightnessPower, Value: v} }

// PointSize sets RenderSettings.PointSize.
func PointSize(v float32) Delta { return Delta{Kind: DeltaPointSize, Value: v} }

// OpacityLimits sets RenderSettings.OpacityLimits.
func OpacityLimits(min, max float32) Delta {
	return Delta{Kind: DeltaOpacityLimits, Limits: [2]float32{min, max}}
}

// StarTexture selects the star sprite texture.
func StarTexture(index int) Delta { return Delta{Kind: DeltaStarTexture, Index: index} }

// ComponentAlpha sets the alpha of one component type ordinal, growing the alpha table with ones if needed.
func ComponentAlpha(ordinal int, v float32) Delta {
	return Delta{Kind: DeltaComponentAlpha, Index: ordinal, Value: v}
}

// Relativistic toggles relativistic aberration.
func Relativistic(on bool) Delta { return Delta{Kind: DeltaRelativistic, Enabled: on} }

// GravitationalWaves toggles gravitational wave displacement.
func GravitationalWaves(on bool) Delta { return Delta{Kind: DeltaGravitationalWaves, Enabled: on} }

// LogarithmicDepth toggles the logarithmic depth buffer.
func LogarithmicDepth(on bool) Delta { return Delta{Kind: DeltaLogarithmicDepth, Enabled: on} }

// Replace swaps the whole snapshot, e.g. after reloading a settings file.
func Replace(s RenderSettings) Delta { return Delta{Kind: DeltaReplace, Settings: s.Clone()} }

// AffectsEffects reports whether the change touches the per-program effect uniforms.
func (d Delta) AffectsEffects() bool {
	switch d.Kind {
	case DeltaRelativistic, DeltaGravitationalWaves, DeltaLogarithmicDepth, DeltaReplace:
		return true
	}
	return false
}

func (d Delta) apply(s *RenderSettings) {
	switch d.Kind {
	case DeltaStarBrightness:
		s.StarBrightness = d.Value
	case DeltaStarBrightnessPower:
		s.StarBrightnessPower = d.Value
	case DeltaPointSize:
		s.PointSize = d.Value
	case DeltaOpacityLimits:
		s.OpacityLimits = d.Limits
	case DeltaStarTexture:
		s.StarTextureIndex = d.Index
	case DeltaComponentAlpha:
		if d.Index < 0 {
			return
		}
		for len(s.ComponentAlphas) <= d.Index {
			s.ComponentAlphas = append(s.ComponentAlphas, 1)
		}
		s.ComponentAlphas[d.Index] = d.Value
	case DeltaRelativistic:
		s.Relativistic = d.Enabled
	case DeltaGravitationalWaves:
		s.GravitationalWaves = d.Enabled
	case DeltaLogarithmicDepth:
		s.LogarithmicDepth = d.Enabled
	case DeltaReplace:
		*s = d.Settings.Clone()
	}
}
