// Package device wraps one stateful M2M multi-planar V4L2 decoder node: a
// character device exposing two independent queues (bitstream input,
// decoded-picture output) on the same file descriptor. All ioctls for a
// given Device must be issued from a single goroutine — the kernel state
// machine behind a V4L2 fd is not designed for concurrent callers.
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	sys "golang.org/x/sys/unix"

	"github.com/buldo/RtpDrmPlayer/v4l2"
)

// Sentinel errors for conditions specific to opening/configuring a decoder
// node, distinct from the lower-level v4l2 package's syscall-derived errors.
var (
	ErrDeviceUnavailable = errors.New("device: unavailable")
	ErrConfigInvalid     = errors.New("device: invalid configuration")
	ErrDecoderRejected   = errors.New("device: decoder rejected request")
)

// defaultInputPlaneSize is generous enough for a single 1080p access unit;
// callers with larger frames should override via WithInputPlaneSize.
const defaultInputPlaneSize uint32 = 2 << 20

// Device is the handle to one decoder node (e.g. /dev/video10). It owns the
// open file descriptor and tracks the most recent Poll() result so callers
// can inspect readiness without re-polling.
type Device struct {
	fd   uintptr
	path string
	cfg  config

	cap      v4l2.Capability
	lastPoll v4l2.PollEvent

	inputFormat  v4l2.PixFormatMPlane
	outputFormat v4l2.PixFormatMPlane
}

// WithLogger attaches a logger used for warnings-only conditions (event
// subscription failures, best-effort control sets) that are not fatal.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Open performs initialize_for_decoding (spec.md §4.2): it opens path
// non-blocking, verifies the device advertises stateful M2M multi-planar
// decode, verifies the input queue accepts DMA-buf backed buffers, and
// subscribes (best-effort) to the source-change and end-of-stream events.
func Open(path string, opts ...Option) (*Device, error) {
	cfg := config{inputPlaneSize: defaultInputPlaneSize, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	fd, err := v4l2.OpenDevice(path, sys.O_RDWR|sys.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w: %v", path, ErrDeviceUnavailable, err)
	}

	d := &Device{fd: fd, path: path, cfg: cfg}

	capInfo, err := v4l2.GetCapability(fd)
	if err != nil {
		_ = v4l2.CloseDevice(fd)
		return nil, fmt.Errorf("device: query capability: %w: %v", ErrDeviceUnavailable, err)
	}
	if !capInfo.IsMem2MemMultiplanarSupported() {
		_ = v4l2.CloseDevice(fd)
		return nil, fmt.Errorf("device: %s: %w: missing M2M multi-planar capability", path, ErrDeviceUnavailable)
	}
	d.cap = capInfo

	if err := d.probeDMABufSupport(); err != nil {
		_ = v4l2.CloseDevice(fd)
		return nil, err
	}

	d.subscribeBestEffort(v4l2.EventSourceChange)
	d.subscribeBestEffort(v4l2.EventEOS)

	return d, nil
}

// Capability returns the device's reported V4L2 capabilities.
func (d *Device) Capability() v4l2.Capability { return d.cap }

// probeDMABufSupport issues a throwaway REQBUFS(count=1, DMABUF) on the
// input queue, then releases it (count=0). A driver that rejects DMA-buf
// memory here cannot run this pipeline's zero-copy design at all.
func (d *Device) probeDMABufSupport() error {
	if _, err := v4l2.ReqBufs(d.fd, v4l2.BufTypeVideoOutputMPlane, v4l2.MemoryTypeDMABuf, 1); err != nil {
		return fmt.Errorf("device: %s: %w: DMA-buf memory not accepted on input queue: %v", d.path, ErrDeviceUnavailable, err)
	}
	if _, err := v4l2.ReqBufs(d.fd, v4l2.BufTypeVideoOutputMPlane, v4l2.MemoryTypeDMABuf, 0); err != nil {
		return fmt.Errorf("device: %s: release probe buffers: %w", d.path, err)
	}
	return nil
}

func (d *Device) subscribeBestEffort(evt v4l2.EventType) {
	sub := v4l2.NewEventSubscription(evt)
	if err := v4l2.SubscribeEvent(d.fd, sub); err != nil {
		d.cfg.logger.Warn().Err(err).Uint32("event", evt).Msg("event subscription failed, continuing without it")
	}
}

// ConfigureDecoderFormats negotiates the input (bitstream) and output
// (decoded picture) queue formats (spec.md §4.2) and makes a best-effort
// attempt to lower the driver's minimum CAPTURE buffer count to reduce
// pipeline latency. Failure of that last step is logged, not fatal.
func (d *Device) ConfigureDecoderFormats(width, height uint32, inputCodec, outputPixelFormat v4l2.FourCCType) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("device: configure formats: %w: zero dimension", ErrConfigInvalid)
	}

	inSize := d.cfg.inputPlaneSize
	inFmt, err := v4l2.SetFormatMPlane(d.fd, v4l2.BufTypeVideoOutputMPlane, v4l2.PixFormatMPlane{
		Width:       width,
		Height:      height,
		PixelFormat: inputCodec,
		Field:       v4l2.FieldNone,
		Planes:      [1]v4l2.PlaneFormat{{SizeImage: inSize}},
	})
	if err != nil {
		return fmt.Errorf("device: set input format: %w: %v", ErrDecoderRejected, err)
	}
	d.inputFormat = inFmt

	outSize := d.cfg.outputPlaneSize
	if outSize == 0 {
		outSize = width * height * 3 / 2
	}
	outFmt, err := v4l2.SetFormatMPlane(d.fd, v4l2.BufTypeVideoCaptureMPlane, v4l2.PixFormatMPlane{
		Width:       width,
		Height:      height,
		PixelFormat: outputPixelFormat,
		Field:       v4l2.FieldNone,
		Planes:      [1]v4l2.PlaneFormat{{SizeImage: outSize}},
	})
	if err != nil {
		return fmt.Errorf("device: set output format: %w: %v", ErrDecoderRejected, err)
	}
	d.outputFormat = outFmt

	if err := v4l2.SetControl(d.fd, v4l2.CtrlMinBuffersForCapture, 1); err != nil {
		d.cfg.logger.Debug().Err(err).Msg("could not reduce minimum capture buffers, continuing with driver default")
	}

	return nil
}

// InputFormat returns the negotiated bitstream queue format.
func (d *Device) InputFormat() v4l2.PixFormatMPlane { return d.inputFormat }

// OutputFormat returns the negotiated decoded-picture queue format.
func (d *Device) OutputFormat() v4l2.PixFormatMPlane { return d.outputFormat }

func (d *Device) bufType(kindIsOutput bool) v4l2.BufType {
	if kindIsOutput {
		return v4l2.BufTypeVideoCaptureMPlane
	}
	return v4l2.BufTypeVideoOutputMPlane
}

// RequestBuffers implements bufferpool.Device: it issues VIDIOC_REQBUFS for
// the queue (input or output) with DMA-buf memory and returns the count the
// driver actually granted.
func (d *Device) RequestBuffers(kindIsOutput bool, count uint32) (uint32, error) {
	req, err := v4l2.ReqBufs(d.fd, d.bufType(kindIsOutput), v4l2.MemoryTypeDMABuf, count)
	if err != nil {
		return 0, fmt.Errorf("device: request buffers: %w", err)
	}
	return req.Count, nil
}

// QueueBuffer hands one DMA-buf-backed slot to the given queue. last sets
// V4L2_BUF_FLAG_LAST, used on the input queue's final flush buffer.
func (d *Device) QueueBuffer(kindIsOutput bool, index uint32, planeFD int32, length, bytesUsed uint32, last bool) (v4l2.Buffer, error) {
	return v4l2.QueueBuffer(d.fd, d.bufType(kindIsOutput), index, planeFD, length, bytesUsed, last)
}

// DequeueBuffer attempts to reclaim one completed slot from the given
// queue. A nil error with ok=false means "nothing ready yet" (EAGAIN),
// which callers must not treat as fatal.
func (d *Device) DequeueBuffer(kindIsOutput bool) (buf v4l2.Buffer, ok bool, err error) {
	buf, err = v4l2.DequeueBuffer(d.fd, d.bufType(kindIsOutput))
	if err != nil {
		// v4l2.send() returns the raw syscall errno for EAGAIN/EINTR rather
		// than its own sentinels (see v4l2/syscalls.go), so check the errno
		// values directly here.
		if errors.Is(err, sys.EAGAIN) || errors.Is(err, sys.EINTR) {
			return v4l2.Buffer{}, false, nil
		}
		return v4l2.Buffer{}, false, fmt.Errorf("device: dequeue buffer: %w", err)
	}
	return buf, true, nil
}

// StreamOn turns streaming on for the given queue.
func (d *Device) StreamOn(kindIsOutput bool) error {
	if err := v4l2.StreamOn(d.fd, d.bufType(kindIsOutput)); err != nil {
		return fmt.Errorf("device: stream on: %w", err)
	}
	return nil
}

// StreamOff turns streaming off for the given queue.
func (d *Device) StreamOff(kindIsOutput bool) error {
	if err := v4l2.StreamOff(d.fd, d.bufType(kindIsOutput)); err != nil {
		return fmt.Errorf("device: stream off: %w", err)
	}
	return nil
}

// Poll waits up to timeout for the device fd to report readiness or a
// pending event, remembering the result for the accessor methods below.
func (d *Device) Poll(timeout time.Duration) (v4l2.PollEvent, error) {
	evt, err := v4l2.Poll(d.fd, timeout)
	if err != nil {
		return v4l2.PollEvent{}, fmt.Errorf("device: poll: %w", err)
	}
	d.lastPoll = evt
	return evt, nil
}

// HasEvent reports whether the most recent Poll found a pending v4l2 event.
func (d *Device) HasEvent() bool { return d.lastPoll.HasEvent }

// HasError reports whether the most recent Poll found an error condition.
func (d *Device) HasError() bool { return d.lastPoll.HasError }

// IsReadyForRead reports whether the most recent Poll found the capture
// queue has a completed buffer waiting.
func (d *Device) IsReadyForRead() bool { return d.lastPoll.ReadyForRead }

// IsReadyForWrite reports whether the most recent Poll found the output
// queue has room for another buffer.
func (d *Device) IsReadyForWrite() bool { return d.lastPoll.ReadyForWrite }

// DequeueEvent reclaims one pending v4l2 event (source-change, EOS, ...).
func (d *Device) DequeueEvent() (*v4l2.Event, error) {
	evt, err := v4l2.DequeueEvent(d.fd)
	if err != nil {
		return nil, fmt.Errorf("device: dequeue event: %w", err)
	}
	return evt, nil
}

// Fd returns the underlying device file descriptor, for use by the
// orchestrator's poll loop alongside other fds it may need to watch.
func (d *Device) Fd() uintptr { return d.fd }

// Close releases both queues' buffer allocations and closes the device fd.
func (d *Device) Close() error {
	_, _ = v4l2.ReqBufs(d.fd, v4l2.BufTypeVideoOutputMPlane, v4l2.MemoryTypeDMABuf, 0)
	_, _ = v4l2.ReqBufs(d.fd, v4l2.BufTypeVideoCaptureMPlane, v4l2.MemoryTypeDMABuf, 0)
	if err := v4l2.CloseDevice(d.fd); err != nil {
		return fmt.Errorf("device: close: %w", err)
	}
	return nil
}
