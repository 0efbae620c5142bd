package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPool builds a pool with n slots without touching the kernel, by
// populating slots directly — Allocate() is not exercised here since it
// requires a real heap device.
func newTestPool(n int) *Pool {
	p := New(KindInput, nil, n)
	for i := 0; i < n; i++ {
		p.slots = append(p.slots, Slot{Index: i})
	}
	return p
}

func TestGetFreeBufferIndexIsPeek(t *testing.T) {
	p := newTestPool(3)
	idx, ok := p.GetFreeBufferIndex()
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	// peeking again without MarkInUse must return the same answer
	idx2, ok2 := p.GetFreeBufferIndex()
	require.True(t, ok2)
	assert.Equal(t, idx, idx2)
}

func TestRollingCursorRoundRobin(t *testing.T) {
	p := newTestPool(3)

	idx, ok := p.GetFreeBufferIndex()
	require.True(t, ok)
	p.MarkInUse(idx)
	assert.Equal(t, 0, idx)

	idx, ok = p.GetFreeBufferIndex()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	p.MarkInUse(idx)

	p.MarkFree(0) // slot 0 frees up again, but cursor has moved past it
	idx, ok = p.GetFreeBufferIndex()
	require.True(t, ok)
	assert.Equal(t, 2, idx, "cursor should prefer the untouched slot over the freed one")
}

func TestNoFreeSlotWhenAllInUse(t *testing.T) {
	p := newTestPool(2)
	p.MarkInUse(0)
	p.MarkInUse(1)
	_, ok := p.GetFreeBufferIndex()
	assert.False(t, ok)
}

func TestMarkInUseMarkFreeOutOfRangeNoop(t *testing.T) {
	p := newTestPool(2)
	assert.NotPanics(t, func() {
		p.MarkInUse(-1)
		p.MarkInUse(99)
		p.MarkFree(-1)
		p.MarkFree(99)
	})
	assert.Equal(t, 0, p.InUseCount())
}

func TestInUseCount(t *testing.T) {
	p := newTestPool(4)
	p.MarkInUse(0)
	p.MarkInUse(2)
	assert.Equal(t, 2, p.InUseCount())
	p.MarkFree(0)
	assert.Equal(t, 1, p.InUseCount())
}

func TestSlotOutOfRange(t *testing.T) {
	p := newTestPool(1)
	_, ok := p.Slot(5)
	assert.False(t, ok)
	_, ok = p.Slot(0)
	assert.True(t, ok)
}
