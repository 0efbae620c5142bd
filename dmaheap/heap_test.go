package dmaheap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateBeforeInitialize(t *testing.T) {
	a := New()
	_, err := a.Allocate(4096, "")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestAllocateZeroSize(t *testing.T) {
	a := New()
	a.fd = 3 // pretend initialized; size validation happens before any syscall
	_, err := a.Allocate(0, "")
	assert.ErrorIs(t, err, ErrAllocFailed)
}

func TestAllocateOversized(t *testing.T) {
	a := New()
	a.fd = 3
	_, err := a.Allocate(maxAllocSize+1, "")
	assert.ErrorIs(t, err, ErrAllocFailed)
}

func TestInitializeNoHeapAvailable(t *testing.T) {
	a := New(WithHeapPaths("/nonexistent/heap/a", "/nonexistent/heap/b"))
	err := a.Initialize("")
	assert.True(t, errors.Is(err, ErrAllocatorUnavailable))
}

func TestUnmapReleaseIdempotent(t *testing.T) {
	a := New()
	obj := BufferObject{FD: -1}
	assert.NoError(t, a.Unmap(&obj))
	assert.NoError(t, a.Release(&obj))
}

func TestBufferObjectIsMapped(t *testing.T) {
	obj := BufferObject{}
	assert.False(t, obj.IsMapped())
	obj.MappedAddr = make([]byte, 16)
	assert.True(t, obj.IsMapped())
}
