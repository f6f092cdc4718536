package mesh_buffer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sky/engine/renderer/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReusesLowestReleasedSlot(t *testing.T) {
	b := headless.NewBackend()
	p := NewPool(b, "test")
	for want := 0; want < 4; want++ {
		slot, err := p.Allocate(4, 0, pointLayout())
		require.NoError(t, err)
		assert.Equal(t, want, slot)
	}

	require.NoError(t, p.Release(2))
	require.NoError(t, p.Release(1))
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, 2, p.Live())
	assert.Equal(t, []int{0, 3}, p.Slots())

	slot, err := p.Allocate(4, 0, pointLayout())
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
	slot, err = p.Allocate(4, 0, pointLayout())
	require.NoError(t, err)
	assert.Equal(t, 2, slot)
	slot, err = p.Allocate(4, 0, pointLayout())
	require.NoError(t, err)
	assert.Equal(t, 4, slot)
}

func TestPoolGetFailsOnBadSlots(t *testing.T) {
	p := NewPool(headless.NewBackend(), "test")
	_, err := p.Get(0)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
	_, err = p.Get(-1)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)

	slot, err := p.Allocate(4, 0, pointLayout())
	require.NoError(t, err)
	require.NoError(t, p.Release(slot))
	_, err = p.Get(slot)
	assert.ErrorIs(t, err, ErrSlotReleased)
	assert.ErrorIs(t, p.Release(slot), ErrSlotReleased)
}

func TestPoolReleaseDisposesBuffer(t *testing.T) {
	b := headless.NewBackend()
	p := NewPool(b, "test")
	slot, err := p.Allocate(4, 0, pointLayout())
	require.NoError(t, err)
	m, _ := p.Get(slot)
	require.NoError(t, p.Release(slot))
	assert.True(t, m.Disposed())
	assert.Equal(t, 0, b.LiveBuffers())
}

func TestPoolAllocateFailureKeepsSlotFree(t *testing.T) {
	p := NewPool(headless.NewBackend(), "test")
	_, err := p.Allocate(0, 0, pointLayout())
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.Equal(t, 0, p.Len())
}

func TestPoolDispose(t *testing.T) {
	b := headless.NewBackend()
	p := NewPool(b, "test")
	for i := 0; i < 3; i++ {
		_, err := p.Allocate(2, 0, pointLayout())
		require.NoError(t, err)
	}
	p.Dispose()
	assert.Equal(t, 0, p.Live())
	assert.Equal(t, 0, b.LiveBuffers())
}
