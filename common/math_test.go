package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDoubleRecombines(t *testing.T) {
	d := 9131.123456789
	hi, lo := SplitDouble(d)
	assert.Equal(t, float32(d), hi)
	assert.InDelta(t, d, float64(hi)+float64(lo), 1e-6)
	assert.Less(t, math.Abs(d-(float64(hi)+float64(lo))), math.Abs(d-float64(hi))+1e-12)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(1.5))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(-1)))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 0, AlignUp(0, 256))
	assert.Equal(t, 256, AlignUp(1, 256))
	assert.Equal(t, 256, AlignUp(256, 256))
	assert.Equal(t, 512, AlignUp(257, 256))
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32{}))
	b := SliceToBytes([]float32{1, 2})
	assert.Len(t, b, 8)
}
