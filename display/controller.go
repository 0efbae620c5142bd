// Package display implements C5, the Display Controller: it opens the
// kernel mode-setting device, selects a connector/encoder/CRTC/mode, imports
// decoder output buffer objects as framebuffers (one per output slot,
// cached), and issues mode-sets to scan a given framebuffer out to the
// display. No pixel data is ever copied through this package — it only
// imports views onto buffers the decoder already wrote into.
package display

/*
#include <drm/drm.h>
#include <drm/drm_mode.h>
#include <drm/drm_fourcc.h>
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
	sys "golang.org/x/sys/unix"
)

// PixelFormatYUV420 is the DRM fourcc for planar 4:2:0, matching the V4L2
// output queue's negotiated pixel format (v4l2.PixelFmtYUV420).
const PixelFormatYUV420 uint32 = C.DRM_FORMAT_YUV420

// defaultDevicePaths are scanned in order; the first whose resource
// enumeration succeeds is used (spec.md §4.5 step 1).
var defaultDevicePaths = []string{
	"/dev/dri/card0",
	"/dev/dri/card1",
	"/dev/dri/card2",
	"/dev/dri/card3",
}

// FrameInfo is the frame descriptor the presenter hands to DisplayFrame.
type FrameInfo struct {
	MappedAddr  []byte
	FD          int32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	BytesUsed   uint32
	IsDMABuf    bool
}

type cacheEntry struct {
	handle uint32
	fbID   uint32
}

// Controller holds the bound display output and the per-fd framebuffer cache.
type Controller struct {
	fd     uintptr
	logger zerolog.Logger

	connectorID uint32
	crtcID      uint32
	mode        mode

	cache map[int32]cacheEntry
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger attaches a logger for best-effort/teardown conditions.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New constructs an unopened Controller.
func New(opts ...Option) *Controller {
	c := &Controller{logger: zerolog.Nop(), cache: make(map[int32]cacheEntry)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize performs spec.md §4.5's initialize(w, h): scans mode-setting
// device paths, picks a connected output preferring 1920x1080, and binds an
// encoder and CRTC. w and h are accepted for interface symmetry with the
// decoder's negotiated resolution but do not constrain mode selection beyond
// the 1080p preference already encoded in pick1080pOrFirst.
func (c *Controller) Initialize(w, h uint32) error {
	var lastErr error
	for _, path := range defaultDevicePaths {
		fd, err := sys.Open(path, sys.O_RDWR|sys.O_CLOEXEC, 0)
		if err != nil {
			lastErr = err
			continue
		}
		res, err := getResources(uintptr(fd))
		if err != nil {
			_ = sys.Close(fd)
			lastErr = err
			continue
		}
		c.fd = uintptr(fd)
		return c.bind(res)
	}
	return fmt.Errorf("display: initialize: %w: %v", ErrDeviceUnavailable, lastErr)
}

func (c *Controller) bind(res resources) error {
	var chosen connectorInfo
	found := false
	for _, id := range res.connectorIDs {
		conn, err := getConnector(c.fd, id)
		if err != nil {
			c.logger.Debug().Err(err).Uint32("connector", id).Msg("connector query failed, skipping")
			continue
		}
		if conn.connected && len(conn.modes) > 0 {
			chosen = conn
			found = true
			break
		}
	}
	if !found {
		return ErrNoConnector
	}
	c.connectorID = chosen.id

	m, ok := pick1080pOrFirst(chosen.modes)
	if !ok {
		return ErrNoConnector
	}
	c.mode = m

	var enc encoderInfo
	var err error
	if chosen.encoderID != 0 {
		enc, err = getEncoder(c.fd, chosen.encoderID)
	}
	if chosen.encoderID == 0 || err != nil {
		enc, err = c.scanEncoders(res)
	}
	if err != nil {
		return err
	}

	crtcID, err := acquireCRTC(c.fd, enc, res)
	if err != nil {
		return err
	}
	c.crtcID = crtcID
	return nil
}

func (c *Controller) scanEncoders(res resources) (encoderInfo, error) {
	for _, id := range res.encoderIDs {
		enc, err := getEncoder(c.fd, id)
		if err == nil {
			return enc, nil
		}
	}
	return encoderInfo{}, ErrNoEncoder
}

// SetupZeroCopyBuffer implements spec.md §4.5's setup_zero_copy_buffer(fd,
// w, h): lazily imports a dma-buf fd as a framebuffer, caching the result by
// fd so repeat presentation of the same slot never re-imports.
func (c *Controller) SetupZeroCopyBuffer(fd int32, w, h uint32) error {
	if fd < 0 {
		return fmt.Errorf("display: setup zero-copy buffer: %w: fd<0", ErrInvalidFrame)
	}
	if w == 0 || h == 0 || w > maxDimension || h > maxDimension {
		return fmt.Errorf("display: setup zero-copy buffer %dx%d: %w", w, h, ErrInvalidFrame)
	}
	if _, ok := c.cache[fd]; ok {
		return nil
	}

	handle, err := importPrimeFD(c.fd, fd)
	if err != nil {
		return err
	}

	layout, err := computePlanarLayout(w, h)
	if err != nil {
		_ = closeGEMHandle(c.fd, handle)
		return err
	}

	fbID, err := addFramebuffer(c.fd, handle, w, h, PixelFormatYUV420, layout)
	if err != nil {
		_ = closeGEMHandle(c.fd, handle)
		return err
	}

	c.cache[fd] = cacheEntry{handle: handle, fbID: fbID}
	return nil
}

// DisplayFrame implements spec.md §4.5's display_frame(frame_info): issues a
// mode-set on the bound CRTC/connector using the cached framebuffer for
// frame.FD, placed at origin (0,0).
func (c *Controller) DisplayFrame(frame FrameInfo) (time.Duration, error) {
	if !frame.IsDMABuf || frame.FD < 0 {
		return 0, fmt.Errorf("display: display frame: %w", ErrInvalidFrame)
	}
	entry, ok := c.cache[frame.FD]
	if !ok {
		return 0, fmt.Errorf("display: display frame: %w: fd %d not imported", ErrPresentFailed, frame.FD)
	}

	start := time.Now()

	var crtc C.struct_drm_mode_crtc
	crtc.crtc_id = C.__u32(c.crtcID)
	crtc.fb_id = C.__u32(entry.fbID)
	crtc.x = 0
	crtc.y = 0
	crtc.mode_valid = 1
	connectorID := C.__u32(c.connectorID)
	crtc.count_connectors = 1
	crtc.set_connectors_ptr = C.__u64(uintptr(unsafe.Pointer(&connectorID)))
	copy((*[C.sizeof_struct_drm_mode_modeinfo]byte)(unsafe.Pointer(&crtc.mode))[:], c.mode.raw[:])

	if errno := ioctl(c.fd, uintptr(C.DRM_IOCTL_MODE_SETCRTC), uintptr(unsafe.Pointer(&crtc))); errno != 0 {
		return time.Since(start), fmt.Errorf("display: set crtc: %w: %v", ErrPresentFailed, errno)
	}
	return time.Since(start), nil
}

// Teardown implements spec.md §4.5's teardown: removes every cached
// framebuffer, closes every cached GEM handle, then closes the device.
// Errors are logged, never fatal, matching §7's teardown propagation policy.
func (c *Controller) Teardown() error {
	for fd, entry := range c.cache {
		if err := removeFramebuffer(c.fd, entry.fbID); err != nil {
			c.logger.Warn().Err(err).Int32("fd", fd).Msg("remove framebuffer failed during teardown")
		}
		if err := closeGEMHandle(c.fd, entry.handle); err != nil {
			c.logger.Warn().Err(err).Int32("fd", fd).Msg("close gem handle failed during teardown")
		}
	}
	c.cache = make(map[int32]cacheEntry)

	if c.fd == 0 {
		return nil
	}
	err := sys.Close(int(c.fd))
	c.fd = 0
	if err != nil {
		return fmt.Errorf("display: close device: %w", err)
	}
	return nil
}
