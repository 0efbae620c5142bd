package v4l2

// #include <linux/videodev2.h>
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// Streaming with buffers, multi-planar, DMA-buf backed.
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/buffer.html
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/planar-apis.html

// BufType (v4l2_buf_type) identifies one of the decoder's two mem2mem queues.
type BufType = uint32

const (
	// BufTypeVideoOutputMPlane is the decoder's bitstream input queue.
	BufTypeVideoOutputMPlane BufType = C.V4L2_BUF_TYPE_VIDEO_OUTPUT_MPLANE
	// BufTypeVideoCaptureMPlane is the decoder's decoded picture output queue.
	BufTypeVideoCaptureMPlane BufType = C.V4L2_BUF_TYPE_VIDEO_CAPTURE_MPLANE
)

// MemoryType (v4l2_memory) selects how a queue's buffers are backed.
type MemoryType = uint32

const (
	MemoryTypeMMAP   MemoryType = C.V4L2_MEMORY_MMAP
	MemoryTypeDMABuf MemoryType = C.V4L2_MEMORY_DMABUF
)

// RequestBuffers (v4l2_requestbuffers) allocates or releases (count=0) the slots
// of one queue. This pipeline always requests MemoryTypeDMABuf: the buffer
// objects themselves are minted by the DMA heap allocator, not by the driver.
type RequestBuffers struct {
	Count   uint32
	Type    BufType
	Memory  MemoryType
}

// ReqBufs issues VIDIOC_REQBUFS for the given queue and memory type.
func ReqBufs(fd uintptr, bufType BufType, memory MemoryType, count uint32) (RequestBuffers, error) {
	var req C.struct_v4l2_requestbuffers
	req.count = C.__u32(count)
	req._type = C.__u32(bufType)
	req.memory = C.__u32(memory)

	if err := send(fd, C.VIDIOC_REQBUFS, uintptr(unsafe.Pointer(&req))); err != nil {
		return RequestBuffers{}, fmt.Errorf("request buffers: %w", err)
	}
	return RequestBuffers{Count: uint32(req.count), Type: bufType, Memory: memory}, nil
}

// Plane (v4l2_plane) describes one plane of a queued/dequeued multi-planar buffer.
// This pipeline only ever uses a single plane per buffer (see PixFormatMPlane).
type Plane struct {
	BytesUsed  uint32
	Length     uint32
	FD         int32 // valid when Memory == MemoryTypeDMABuf
	DataOffset uint32
}

// Buffer (v4l2_buffer + its one v4l2_plane) carries one slot in/out of the kernel.
type Buffer struct {
	Index     uint32
	Type      BufType
	Flags     uint32
	Field     FieldType
	Sequence  uint32
	Memory    MemoryType
	Planes    [1]Plane
	Length    uint32 // number of planes (always 1 here)
	Timestamp sys.Timeval
}

// BufferFlag bits relevant to this pipeline (v4l2_buf_flags).
const (
	BufFlagLast  uint32 = C.V4L2_BUF_FLAG_LAST
	BufFlagError uint32 = C.V4L2_BUF_FLAG_ERROR
)

func cBufferFor(buf *Buffer, planes *[1]C.struct_v4l2_plane) C.struct_v4l2_buffer {
	var v4l2Buf C.struct_v4l2_buffer
	v4l2Buf._type = C.__u32(buf.Type)
	v4l2Buf.index = C.__u32(buf.Index)
	v4l2Buf.memory = C.__u32(buf.Memory)
	v4l2Buf.flags = C.__u32(buf.Flags)
	v4l2Buf.length = 1
	*(**C.struct_v4l2_plane)(unsafe.Pointer(&v4l2Buf.m[0])) = &planes[0]

	planes[0].bytesused = C.__u32(buf.Planes[0].BytesUsed)
	planes[0].length = C.__u32(buf.Planes[0].Length)
	planes[0].data_offset = C.__u32(buf.Planes[0].DataOffset)
	if buf.Memory == MemoryTypeDMABuf {
		*(*C.int)(unsafe.Pointer(&planes[0].m[0])) = C.int(buf.Planes[0].FD)
	}
	return v4l2Buf
}

func bufferFromC(v4l2Buf *C.struct_v4l2_buffer, planes *[1]C.struct_v4l2_plane) Buffer {
	return Buffer{
		Index:    uint32(v4l2Buf.index),
		Type:     BufType(v4l2Buf._type),
		Flags:    uint32(v4l2Buf.flags),
		Field:    FieldType(v4l2Buf.field),
		Sequence: uint32(v4l2Buf.sequence),
		Memory:   MemoryType(v4l2Buf.memory),
		Length:   uint32(v4l2Buf.length),
		Planes: [1]Plane{{
			BytesUsed:  uint32(planes[0].bytesused),
			Length:     uint32(planes[0].length),
			FD:         int32(*(*C.int)(unsafe.Pointer(&planes[0].m[0]))),
			DataOffset: uint32(planes[0].data_offset),
		}},
	}
}

// QueryBuf issues VIDIOC_QUERYBUF, used only to learn the driver-assigned plane
// length for a freshly requested MMAP-backed scratch buffer (not used for the
// DMA-buf-backed queues but kept for completeness/parity with the single-planar API).
func QueryBuf(fd uintptr, bufType BufType, index uint32) (Buffer, error) {
	var planes [1]C.struct_v4l2_plane
	buf := Buffer{Index: index, Type: bufType, Memory: MemoryTypeMMAP}
	v4l2Buf := cBufferFor(&buf, &planes)

	if err := send(fd, C.VIDIOC_QUERYBUF, uintptr(unsafe.Pointer(&v4l2Buf))); err != nil {
		return Buffer{}, fmt.Errorf("query buffer: %w", err)
	}
	return bufferFromC(&v4l2Buf, &planes), nil
}

// QueueBuffer issues VIDIOC_QBUF, handing a buffer's single DMA-buf plane to the
// driver. bytesUsed is passed through as given; callers pass 0 for capture
// buffers, whose bytesused the driver fills in.
// last sets V4L2_BUF_FLAG_LAST, used by the input queue to mark the final,
// possibly zero-byte, buffer of a flush (spec.md §4.7).
func QueueBuffer(fd uintptr, bufType BufType, index uint32, planeFD int32, planeLength, bytesUsed uint32, last bool) (Buffer, error) {
	var planes [1]C.struct_v4l2_plane
	buf := Buffer{
		Index:  index,
		Type:   bufType,
		Memory: MemoryTypeDMABuf,
		Planes: [1]Plane{{FD: planeFD, Length: planeLength, BytesUsed: bytesUsed}},
	}
	if last {
		buf.Flags |= BufFlagLast
	}
	v4l2Buf := cBufferFor(&buf, &planes)

	if err := send(fd, C.VIDIOC_QBUF, uintptr(unsafe.Pointer(&v4l2Buf))); err != nil {
		return Buffer{}, fmt.Errorf("queue buffer: %w", err)
	}
	return bufferFromC(&v4l2Buf, &planes), nil
}

// DequeueBuffer issues VIDIOC_DQBUF for the given queue in non-blocking mode.
// A wrapped raw EAGAIN errno (not ErrorTemporary, see send) signals "nothing
// ready" and is not a fatal condition.
func DequeueBuffer(fd uintptr, bufType BufType) (Buffer, error) {
	var planes [1]C.struct_v4l2_plane
	buf := Buffer{Type: bufType, Memory: MemoryTypeDMABuf}
	v4l2Buf := cBufferFor(&buf, &planes)

	if err := send(fd, C.VIDIOC_DQBUF, uintptr(unsafe.Pointer(&v4l2Buf))); err != nil {
		return Buffer{}, fmt.Errorf("dequeue buffer: %w", err)
	}
	return bufferFromC(&v4l2Buf, &planes), nil
}

// StreamOn requests streaming to be turned on for the given queue.
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-streamon.html
func StreamOn(fd uintptr, bufType BufType) error {
	if err := send(fd, C.VIDIOC_STREAMON, uintptr(unsafe.Pointer(&bufType))); err != nil {
		return fmt.Errorf("stream on: %w", err)
	}
	return nil
}

// StreamOff requests streaming to be turned off for the given queue.
func StreamOff(fd uintptr, bufType BufType) error {
	if err := send(fd, C.VIDIOC_STREAMOFF, uintptr(unsafe.Pointer(&bufType))); err != nil {
		return fmt.Errorf("stream off: %w", err)
	}
	return nil
}

// PollEvent reports what Poll found ready on the device fd.
type PollEvent struct {
	HasEvent      bool // a v4l2 event (source-change, EOS, ...) is pending
	HasError      bool
	ReadyForRead  bool
	ReadyForWrite bool
}

// Poll waits up to timeout for the device fd to become readable (capture queue has
// a completed buffer), writable (output queue has room), or to report a priority
// (v4l2 event) or error condition. timeout=0 implements a non-blocking probe.
func Poll(fd uintptr, timeout time.Duration) (PollEvent, error) {
	pfd := []sys.PollFd{{Fd: int32(fd), Events: sys.POLLIN | sys.POLLOUT | sys.POLLPRI}}
	ms := int(timeout / time.Millisecond)
	for {
		n, err := sys.Poll(pfd, ms)
		if err == sys.EINTR {
			continue
		}
		if err != nil {
			return PollEvent{}, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return PollEvent{}, nil
		}
		revents := pfd[0].Revents
		return PollEvent{
			HasEvent:      revents&sys.POLLPRI != 0,
			HasError:      revents&(sys.POLLERR|sys.POLLHUP) != 0,
			ReadyForRead:  revents&sys.POLLIN != 0,
			ReadyForWrite: revents&sys.POLLOUT != 0,
		}, nil
	}
}
