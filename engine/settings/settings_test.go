package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeepsDefaults(t *testing.T) {
	doc := `
star_brightness = 2.5
opacity_limits = [0.1, 0.9]
component_alphas = [0.5, 0.8]
relativistic = true
`
	s, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), s.StarBrightness)
	assert.Equal(t, [2]float32{0.1, 0.9}, s.OpacityLimits)
	assert.Equal(t, []float32{0.5, 0.8}, s.ComponentAlphas)
	assert.True(t, s.Relativistic)

	d := Default()
	assert.Equal(t, d.PointSize, s.PointSize)
	assert.Equal(t, [2]float32{2, 4}, s.HighlightOpacityLimits)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("star_brightnes = 1.0\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.toml")
	require.NoError(t, os.WriteFile(path, []byte("point_size = 5.0\n"), 0o644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float32(5), s.PointSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestComponentAlpha(t *testing.T) {
	s := Default()
	s.ComponentAlphas = []float32{0.5, 0.8}
	assert.Equal(t, float32(0.5), s.ComponentAlpha(0))
	assert.Equal(t, float32(0.8), s.ComponentAlpha(1))
	assert.Equal(t, float32(1), s.ComponentAlpha(7))
	assert.Equal(t, float32(1), s.ComponentAlpha(-1))
}

func TestStoreApplyBumpsVersionAndNotifies(t *testing.T) {
	st := NewStore(Default())
	assert.Equal(t, uint64(1), st.Version())

	var got []DeltaKind
	st.Subscribe(ListenerFunc(func(d Delta) { got = append(got, d.Kind) }))

	assert.Equal(t, uint64(2), st.Apply(StarBrightness(3)))
	assert.Equal(t, uint64(3), st.Apply(ComponentAlpha(2, 0.25)))
	assert.Equal(t, []DeltaKind{DeltaStarBrightness, DeltaComponentAlpha}, got)

	s := st.Snapshot()
	assert.Equal(t, float32(3), s.StarBrightness)
	assert.Equal(t, []float32{1, 1, 0.25}, s.ComponentAlphas)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	st := NewStore(Default())

	var first, second int
	unsub := st.Subscribe(ListenerFunc(func(Delta) { first++ }))
	st.Subscribe(ListenerFunc(func(Delta) { second++ }))

	st.Apply(PointSize(2))
	unsub()
	unsub()
	st.Apply(PointSize(3))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestSnapshotIsolation(t *testing.T) {
	st := NewStore(Default())
	st.Apply(ComponentAlpha(0, 0.5))
	s := st.Snapshot()
	s.ComponentAlphas[0] = 0
	assert.Equal(t, float32(0.5), st.Snapshot().ComponentAlpha(0))
}

func TestReplace(t *testing.T) {
	st := NewStore(Default())
	next := Default()
	next.LogarithmicDepth = true
	d := Replace(next)
	assert.True(t, d.AffectsEffects())
	assert.False(t, PointSize(2).AffectsEffects())
	st.Apply(d)
	assert.True(t, st.Snapshot().LogarithmicDepth)
}
