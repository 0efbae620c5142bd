// Package device wraps a stateful, multi-planar memory-to-memory V4L2 H.264
// decoder node.
//
// # Overview
//
// Unlike a capture device, which exposes a single queue of frames, a
// stateful M2M decoder exposes two independent queues on one file
// descriptor: an OUTPUT queue the application feeds with coded access
// units, and a CAPTURE queue the driver fills with decoded pictures. Both
// queues are backed by buffers the application supplies as DMA-buf file
// descriptors (V4L2_MEMORY_DMABUF) — this package never allocates or maps
// memory itself, it only hands buffer ownership to and from the kernel.
//
// # Basic Usage
//
//	dev, err := device.Open("/dev/video10")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	if err := dev.ConfigureDecoderFormats(1920, 1080, v4l2.PixelFmtH264, v4l2.PixelFmtYUV420); err != nil {
//	    log.Fatal(err)
//	}
//
// # Ownership and Queues
//
// Both bufferpool.Pool instances (one per queue) call RequestBuffers
// against a Device through the narrow bufferpool.Device interface, so this
// package never imports bufferpool. QueueBuffer and DequeueBuffer are
// called by the decode pipeline and the streaming controller.
//
// # Thread Safety
//
// Device is NOT thread-safe. All ioctls for a given decoder node — formats,
// buffer requests, queue/dequeue, stream on/off, poll, and event dequeue —
// must be issued from a single goroutine, matching the decoder-thread
// confinement the orchestrator enforces.
package device
