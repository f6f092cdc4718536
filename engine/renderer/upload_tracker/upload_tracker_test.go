package upload_tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadLifecycle(t *testing.T) {
	tr := NewTracker[string]()
	assert.False(t, tr.IsUploaded("a"))
	s, ok := tr.State("a")
	assert.False(t, ok)
	assert.Equal(t, -1, s.Slot)

	assert.Equal(t, UploadState{Slot: -1}, tr.Ensure("a"))
	tr.MarkUploaded("a", 3, 120, 7)
	assert.True(t, tr.IsUploaded("a"))
	s, _ = tr.State("a")
	assert.Equal(t, UploadState{InGPU: true, Slot: 3, Count: 120, Version: 7}, s)
}

func TestEvictionIsDeferredUntilProcessed(t *testing.T) {
	tr := NewTracker[string]()
	tr.MarkUploaded("a", 2, 10, 1)

	var got []Eviction[string]
	tr.Subscribe(func(e Eviction[string]) { got = append(got, e) })

	tr.MarkEvicted("a")
	assert.True(t, tr.IsUploaded("a"))
	assert.Equal(t, 1, tr.Pending())
	assert.Empty(t, got)

	assert.Equal(t, 1, tr.ProcessEvictions())
	assert.False(t, tr.IsUploaded("a"))
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].State.Slot)
	assert.False(t, got[0].Forgotten)
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 0, tr.Pending())
}

func TestDisposeRemovesEntry(t *testing.T) {
	tr := NewTracker[int]()
	tr.MarkUploaded(1, 0, 5, 1)
	var forgotten bool
	tr.Subscribe(func(e Eviction[int]) { forgotten = e.Forgotten })

	tr.MarkDisposed(1)
	tr.MarkEvicted(99)
	assert.Equal(t, 1, tr.ProcessEvictions())
	assert.True(t, forgotten)
	assert.Equal(t, 0, tr.Len())
}

func TestConcurrentEvictionRequests(t *testing.T) {
	tr := NewTracker[int]()
	for i := 0; i < 100; i++ {
		tr.MarkUploaded(i, i, 1, 1)
	}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			tr.MarkEvicted(k)
		}(i)
	}
	wg.Wait()

	released := map[int]bool{}
	tr.Subscribe(func(e Eviction[int]) { released[e.State.Slot] = true })
	assert.Equal(t, 100, tr.ProcessEvictions())
	assert.Len(t, released, 100)
}

func TestReset(t *testing.T) {
	tr := NewTracker[string]()
	tr.MarkUploaded("a", 0, 1, 1)
	tr.MarkEvicted("a")
	states := tr.Reset()
	assert.Len(t, states, 1)
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, 0, tr.Pending())
	assert.ElementsMatch(t, []string{}, tr.Keys())
}

func TestForget(t *testing.T) {
	tr := NewTracker[string]()
	tr.MarkUploaded("a", 4, 1, 1)
	s, ok := tr.Forget("a")
	assert.True(t, ok)
	assert.Equal(t, 4, s.Slot)
	_, ok = tr.Forget("a")
	assert.False(t, ok)
}
