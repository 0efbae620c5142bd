// Package v4l2 provides low-level Go bindings for the Video4Linux2 (V4L2)
// API, trimmed to the surface a stateful multi-planar memory-to-memory
// decoder needs.
//
// # Overview
//
// This package maps directly onto V4L2 kernel structures and ioctls: it
// handles capability query, multi-planar format negotiation, buffer
// request/queue/dequeue, stream on/off, poll-based readiness, and
// asynchronous event subscription. It knows nothing about decoders,
// buffer pools, or display — those live in the device, bufferpool, and
// display packages built on top of it.
//
// # Memory Type
//
// QueueBuffer and DequeueBuffer use V4L2_MEMORY_DMABUF only: every buffer
// is minted externally (see package dmaheap) and handed to the kernel as a
// file descriptor. The one MMAP-typed call is QueryBuf, which nothing in
// this module calls; there is no USERPTR path.
//
// # Basic Usage
//
//	fd, err := v4l2.OpenDevice("/dev/video10", syscall.O_RDWR|syscall.O_NONBLOCK, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v4l2.CloseDevice(fd)
//
//	cap, err := v4l2.GetCapability(fd)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !cap.IsMem2MemMultiplanarSupported() {
//	    log.Fatal("device lacks M2M multi-planar capability")
//	}
//
// # Thread Safety
//
// V4L2 operations are NOT thread-safe at the kernel level: all ioctls
// against one file descriptor must be issued from a single goroutine.
// Package device enforces this by construction — it is the only package
// that issues this package's ioctls (others use only its types, constants
// and event accessors), and its own contract confines it to one goroutine.
//
// # CGO
//
// This package uses CGO against the system's V4L2 kernel UAPI headers
// (typically /usr/include/linux/videodev2.h). See cgo.go for the
// centralized compiler directives and how to override the include path.
package v4l2
