// package settings holds the render settings snapshot read by the render systems, the versioned store that
// hands it out, and TOML decoding for settings files.
package settings

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// RenderSettings is an immutable snapshot of every value the render systems read when setting uniforms.
type RenderSettings struct {
	StarBrightness         float32    `toml:"star_brightness"`
	StarBrightnessPower    float32    `toml:"star_brightness_power"`
	PointSize              float32    `toml:"point_size"`
	OpacityLimits          [2]float32 `toml:"opacity_limits"`
	HighlightOpacityLimits [2]float32 `toml:"highlight_opacity_limits"`
	StarTextureIndex       int        `toml:"star_texture_index"`
	// ComponentAlphas is indexed by component type ordinal. Ordinals past the end have alpha 1.
	ComponentAlphas    []float32 `toml:"component_alphas"`
	SizeFalloff        float32   `toml:"size_falloff"`
	ScaleFactor        float32   `toml:"scale_factor"`
	LineWidth          float32   `toml:"line_width"`
	Relativistic       bool      `toml:"relativistic"`
	GravitationalWaves bool      `toml:"gravitational_waves"`
	LogarithmicDepth   bool      `toml:"logarithmic_depth"`
}

// Default returns the settings used when no file is given.
func Default() RenderSettings {
	return RenderSettings{
		StarBrightness:         1.0,
		StarBrightnessPower:    0.65,
		PointSize:              3.0,
		OpacityLimits:          [2]float32{0.0, 1.0},
		HighlightOpacityLimits: [2]float32{2.0, 4.0},
		SizeFalloff:            1.0,
		ScaleFactor:            1.0,
		LineWidth:              1.0,
	}
}

// Load reads a TOML settings file on top of Default.
//
// Parameters:
//   - path: the settings file
//
// Returns:
//   - RenderSettings: the decoded settings
//   - error: if the file cannot be opened or decoded
func Load(path string) (RenderSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return RenderSettings{}, fmt.Errorf("settings: open %s: %w", path, err)
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return RenderSettings{}, fmt.Errorf("settings: %s: %w", path, err)
	}
	return s, nil
}

// Decode reads TOML settings on top of Default. Keys absent from the document keep their default value and
// unknown keys are rejected.
//
// Parameters:
//   - r: the TOML document
//
// Returns:
//   - RenderSettings: the decoded settings
//   - error: if the document is malformed or has unknown keys
func Decode(r io.Reader) (RenderSettings, error) {
	s := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return RenderSettings{}, fmt.Errorf("settings: decode: %w", err)
	}
	return s, nil
}

// ComponentAlpha returns the alpha multiplier for a component type ordinal.
func (s RenderSettings) ComponentAlpha(ordinal int) float32 {
	if ordinal < 0 || ordinal >= len(s.ComponentAlphas) {
		return 1
	}
	return s.ComponentAlphas[ordinal]
}

// Clone returns a copy sharing no memory with s.
func (s RenderSettings) Clone() RenderSettings {
	s.ComponentAlphas = slices.Clone(s.ComponentAlphas)
	return s
}
