package dmaheap

import "errors"

// Error sentinels for the DMA heap allocator (C1). Use errors.Is to check
// for a specific condition; wrapped with context via fmt.Errorf("...: %w").
var (
	// ErrNotInitialized is returned by any operation attempted before
	// Initialize has opened a heap device successfully.
	ErrNotInitialized = errors.New("dmaheap: allocator not initialized")

	// ErrAllocatorUnavailable is returned by Initialize when none of the
	// candidate heap device paths could be opened.
	ErrAllocatorUnavailable = errors.New("dmaheap: no heap device openable")

	// ErrAllocFailed covers a zero or oversized request, and kernel-level
	// allocation failure (DMA_HEAP_IOCTL_ALLOC returning an error).
	ErrAllocFailed = errors.New("dmaheap: allocation failed")

	// ErrMapFailed is returned when mmap of an allocated descriptor fails.
	ErrMapFailed = errors.New("dmaheap: map failed")
)
