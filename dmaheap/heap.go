// Package dmaheap implements C1, the DMA Heap Allocator: it mints kernel DMA
// buffer objects from a named kernel heap and maps/unmaps them into the
// process address space. Every buffer object minted here is later handed,
// by file descriptor, into the video decoder's queues (package device) and
// imported as a display framebuffer (package display) — the fd itself is
// never duplicated or copied; see the zero-copy ownership rule in the
// decode pipeline's design notes.
package dmaheap

/*
#include <linux/dma-heap.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/rs/zerolog"
	sys "golang.org/x/sys/unix"
)

const maxAllocSize = 1 << 32 // 4 GiB, per spec boundary behavior

// defaultHeapPaths is the prioritized list of candidate heap device nodes:
// a video-cached heap first (CPU-visible writes stay coherent without an
// explicit cache flush on most SoCs that expose one), then the generic
// CMA-backed contiguous heap.
var defaultHeapPaths = []string{
	"/dev/dma_heap/vidbuf_cached",
	"/dev/dma_heap/linux,cma",
}

// BufferObject is one kernel-minted DMA buffer (spec data model §3).
type BufferObject struct {
	FD         int32
	Size       uint64
	MappedAddr []byte
	Name       string
}

// IsMapped reports whether this buffer currently has a CPU mapping.
func (b BufferObject) IsMapped() bool {
	return b.MappedAddr != nil
}

// Allocator is C1. Zero value is unusable; call Initialize first.
type Allocator struct {
	fd        int
	path      string
	heapPaths []string
	logger    zerolog.Logger
}

// Option configures an Allocator at construction, following the functional
// options pattern used throughout this module (see device.Option).
type Option func(*Allocator)

// WithLogger attaches a logger for non-fatal, best-effort failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

// WithHeapPaths overrides the prioritized list of candidate heap device
// paths tried by Initialize.
func WithHeapPaths(paths ...string) Option {
	return func(a *Allocator) { a.heapPaths = append([]string(nil), paths...) }
}

// New constructs an Allocator. Initialize must still be called before use.
func New(opts ...Option) *Allocator {
	a := &Allocator{fd: -1, heapPaths: defaultHeapPaths, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize tries each candidate heap path in order and opens the first
// that succeeds (spec.md §4.1). Returns ErrAllocatorUnavailable if none do.
func (a *Allocator) Initialize(preferredPath string) error {
	paths := a.heapPaths
	if preferredPath != "" {
		paths = append([]string{preferredPath}, paths...)
	}

	var lastErr error
	for _, p := range paths {
		fd, err := sys.Open(p, sys.O_RDWR|sys.O_CLOEXEC, 0)
		if err != nil {
			lastErr = err
			continue
		}
		a.fd = fd
		a.path = p
		a.logger.Debug().Str("heap", p).Msg("dma heap opened")
		return nil
	}
	return fmt.Errorf("dmaheap: initialize: %w: %v", ErrAllocatorUnavailable, lastErr)
}

// Allocate mints a new BufferObject of at least size bytes (spec.md §4.1).
// The returned object's Size reflects what the kernel actually committed,
// which callers must honor thereafter as it may exceed the request.
func (a *Allocator) Allocate(size uint64, name string) (BufferObject, error) {
	if a.fd < 0 {
		return BufferObject{}, ErrNotInitialized
	}
	if size == 0 || size > maxAllocSize {
		return BufferObject{}, fmt.Errorf("dmaheap: allocate %d bytes: %w", size, ErrAllocFailed)
	}

	var req C.struct_dma_heap_allocation_data
	req.len = C.__u64(size)
	req.fd_flags = C.__u32(sys.O_RDWR | sys.O_CLOEXEC)
	req.heap_flags = 0

	if errno := ioctl(uintptr(a.fd), uintptr(C.DMA_HEAP_IOCTL_ALLOC), uintptr(unsafe.Pointer(&req))); errno != 0 {
		return BufferObject{}, fmt.Errorf("dmaheap: allocate %d bytes: %w: %v", size, ErrAllocFailed, errno)
	}

	obj := BufferObject{FD: int32(req.fd), Size: size, Name: name}

	var stat sys.Stat_t
	if err := sys.Fstat(int(obj.FD), &stat); err != nil {
		_ = sys.Close(int(obj.FD))
		return BufferObject{}, fmt.Errorf("dmaheap: allocate %d bytes: stat committed size: %w: %v", size, ErrAllocFailed, err)
	}
	obj.Size = uint64(stat.Size)

	obj.setName(name, a.logger)
	return obj, nil
}

// setName attempts to label the descriptor for debugging (e.g. visible in
// /proc/<pid>/fd listings via DMA_BUF_SET_NAME on newer kernels). Best
// effort; failure is logged, never returned (spec.md §4.1).
func (obj *BufferObject) setName(name string, logger zerolog.Logger) {
	if name == "" {
		return
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	const dmaBufSetName = 0x40086201 // _IOW('b', 1, sizeof(char*)) on 64-bit kernels
	if errno := ioctl(uintptr(obj.FD), dmaBufSetName, uintptr(unsafe.Pointer(cname))); errno != 0 {
		logger.Debug().Str("name", name).Err(errno).Msg("dma-buf set-name failed (non-fatal)")
	}
}

// Map creates a shared read-write CPU mapping of exactly obj.Size bytes at
// offset 0 (spec.md §4.1).
func (a *Allocator) Map(obj *BufferObject) error {
	if obj.FD < 0 {
		return fmt.Errorf("dmaheap: map: invalid fd: %w", ErrMapFailed)
	}
	data, err := sys.Mmap(int(obj.FD), 0, int(obj.Size), sys.PROT_READ|sys.PROT_WRITE, sys.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("dmaheap: map: %w: %v", ErrMapFailed, err)
	}
	obj.MappedAddr = data
	return nil
}

// Unmap releases the CPU mapping. Idempotent no-op if already unmapped.
func (a *Allocator) Unmap(obj *BufferObject) error {
	if obj.MappedAddr == nil {
		return nil
	}
	if err := sys.Munmap(obj.MappedAddr); err != nil {
		return fmt.Errorf("dmaheap: unmap: %w", err)
	}
	obj.MappedAddr = nil
	return nil
}

// Release closes the descriptor. Idempotent no-op if already released.
func (a *Allocator) Release(obj *BufferObject) error {
	if obj.FD < 0 {
		return nil
	}
	if err := sys.Close(int(obj.FD)); err != nil {
		return fmt.Errorf("dmaheap: release: %w", err)
	}
	obj.FD = -1
	return nil
}

// Close releases the allocator's own heap fd. Idempotent.
func (a *Allocator) Close() error {
	if a.fd < 0 {
		return nil
	}
	err := sys.Close(a.fd)
	a.fd = -1
	return err
}
