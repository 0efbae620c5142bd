// Package present implements C6, the Frame Presenter: it validates one
// freshly dequeued decoder output buffer, applies the content-liveness
// heuristic, and drives the display controller, triggering lazy per-slot
// framebuffer import on first use.
package present

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/buldo/RtpDrmPlayer/display"
)

// sentinel values this pipeline pre-paints output buffers with before the
// first successful decode (spec.md §4.7's setup_buffers, §4.6 step 3).
const (
	sentinelLuma   = 16
	sentinelChroma = 128
	livenessWindow = 1024
	livenessStride = 64
)

// BufferInfo is what the caller (the decode pipeline) knows about one
// dequeued output slot.
type BufferInfo struct {
	Index       uint32
	FD          int32
	MappedAddr  []byte
	BytesUsed   uint32
	DriverError bool
}

// Requeuer hands a validated-or-rejected slot back to the kernel output
// queue with its original fd and length, restoring kernel ownership.
type Requeuer interface {
	RequeueOutput(index uint32, fd int32, length uint32) error
}

// Display is the narrow slice of the display controller the presenter
// drives: lazy import plus the actual present call.
type Display interface {
	SetupZeroCopyBuffer(fd int32, w, h uint32) error
	DisplayFrame(frame display.FrameInfo) (time.Duration, error)
}

// Presenter ties buffer validation to display presentation for one
// decoder's output queue.
type Presenter struct {
	poolCount   uint32
	width       uint32
	height      uint32
	pixelFormat uint32
	slotSize    uint32

	disp    Display
	requeue Requeuer
	logger  zerolog.Logger

	zeroCopyInit map[int32]bool
	frameCount   uint64
}

// New constructs a Presenter for a pool of poolCount output slots, each
// sized slotSize bytes, decoding pictures of width x height in pixelFormat.
func New(poolCount, width, height, slotSize, pixelFormat uint32, disp Display, requeue Requeuer, logger zerolog.Logger) *Presenter {
	return &Presenter{
		poolCount:    poolCount,
		width:        width,
		height:       height,
		pixelFormat:  pixelFormat,
		slotSize:     slotSize,
		disp:         disp,
		requeue:      requeue,
		logger:       logger,
		zeroCopyInit: make(map[int32]bool),
	}
}

// FrameCount returns the number of dequeue attempts seen so far (spec.md
// §4.6: the counter tracks attempts, not successful presentations).
func (p *Presenter) FrameCount() uint64 { return p.frameCount }

// ClearZeroCopyCache forgets which fds have already been imported into the
// display controller, used by the pipeline's reset_buffers procedure
// (spec.md §4.7 step 6) once every pool slot has been deallocated and the
// old fds are no longer meaningful.
func (p *Presenter) ClearZeroCopyCache() {
	p.zeroCopyInit = make(map[int32]bool)
}

// Present runs spec.md §4.6's five-step procedure on one dequeued output
// buffer. Any rejection still re-queues the slot so kernel ownership is
// restored. Only a failure of the requeue itself is returned to the caller;
// a zero-copy setup failure is treated as a rejection and a DisplayFrame
// failure is logged.
func (p *Presenter) Present(buf BufferInfo) error {
	p.frameCount++

	if rejectErr := p.validate(buf); rejectErr != nil {
		p.logger.Debug().Err(rejectErr).Uint32("index", buf.Index).Msg("output buffer rejected")
		return p.requeueAfterRejection(buf)
	}

	if !p.zeroCopyInit[buf.FD] {
		if err := p.disp.SetupZeroCopyBuffer(buf.FD, p.width, p.height); err != nil {
			p.logger.Debug().Err(err).Int32("fd", buf.FD).Msg("zero-copy setup failed, rejecting frame")
			return p.requeueAfterRejection(buf)
		}
		p.zeroCopyInit[buf.FD] = true
	}

	if _, err := p.disp.DisplayFrame(display.FrameInfo{
		MappedAddr:  buf.MappedAddr,
		FD:          buf.FD,
		Width:       p.width,
		Height:      p.height,
		PixelFormat: p.pixelFormat,
		BytesUsed:   buf.BytesUsed,
		IsDMABuf:    true,
	}); err != nil {
		p.logger.Debug().Err(err).Uint32("index", buf.Index).Msg("present failed")
	}

	return p.requeue.RequeueOutput(buf.Index, buf.FD, p.slotSize)
}

func (p *Presenter) validate(buf BufferInfo) error {
	if buf.Index >= p.poolCount || buf.FD < 0 || buf.MappedAddr == nil {
		return ErrInvalidBuffer
	}
	if buf.DriverError {
		return ErrDecoderRejected
	}
	if uint64(buf.BytesUsed) < uint64(p.width)*uint64(p.height)*3/2/2 {
		return ErrBufferTooSmall
	}
	if isUntouched(buf.MappedAddr) {
		return ErrBufferUntouched
	}
	return nil
}

func (p *Presenter) requeueAfterRejection(buf BufferInfo) error {
	if buf.FD < 0 {
		return nil // nothing kernel-owned to hand back
	}
	if err := p.requeue.RequeueOutput(buf.Index, buf.FD, p.slotSize); err != nil {
		return fmt.Errorf("present: requeue rejected slot %d: %w", buf.Index, err)
	}
	return nil
}

// isUntouched implements spec.md §4.6 step 3: scan up to the first 1 KiB at
// stride 64; if every sampled byte equals the sentinel luma/chroma value,
// the buffer has never been written by a successful decode.
func isUntouched(mapped []byte) bool {
	limit := livenessWindow
	if len(mapped) < limit {
		limit = len(mapped)
	}
	if limit == 0 {
		return true
	}
	for i := 0; i < limit; i += livenessStride {
		b := mapped[i]
		if b != sentinelLuma && b != sentinelChroma {
			return false
		}
	}
	return true
}
