// Package pipeline implements C7, the Decode Pipeline: the orchestrator
// that owns the video device handle, both buffer pools, the streaming
// controller, the frame presenter, and the display controller (which the
// presenter drives through a non-owning view). It accepts access units,
// drives them through the decoder, and drains decoded pictures out to the
// screen.
package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/buldo/RtpDrmPlayer/bufferpool"
	"github.com/buldo/RtpDrmPlayer/device"
	"github.com/buldo/RtpDrmPlayer/display"
	"github.com/buldo/RtpDrmPlayer/dmaheap"
	"github.com/buldo/RtpDrmPlayer/present"
	"github.com/buldo/RtpDrmPlayer/streamctl"
	"github.com/buldo/RtpDrmPlayer/v4l2"
)

const (
	defaultInputPoolCount  = 6
	defaultOutputPoolCount = 4
	defaultInputPlaneSize  = 2 << 20

	inputWritableTimeout = 20 * time.Millisecond
	flushPollInterval    = 50 * time.Millisecond
	flushMaxAttempts     = 20
	resetDrainSleep      = 50 * time.Millisecond
	resetMemorySleep     = 200 * time.Millisecond
)

// Config describes one pipeline instantiation.
type Config struct {
	DevicePath        string
	PreferredHeapPath string
	Width             uint32
	Height            uint32
	InputCodec        v4l2.FourCCType
	OutputPixelFormat v4l2.FourCCType
	InputPoolCount    int
	OutputPoolCount   int
	Logger            zerolog.Logger
}

// AccessUnit is one complete, externally reassembled H.264 access unit.
type AccessUnit struct {
	Data         []byte
	RTPTimestamp uint32
}

// State is spec.md §3's PipelineState.
type State struct {
	DecoderReady      bool
	NeedsReset        bool
	FrameWidth        uint32
	FrameHeight       uint32
	DecodedFrameCount uint64
}

// Pipeline is C7.
type Pipeline struct {
	cfg    Config
	logger zerolog.Logger

	dev       *device.Device
	allocator *dmaheap.Allocator
	inputPool *bufferpool.Pool
	outPool   *bufferpool.Pool
	streamCtl *streamctl.Controller
	presenter *present.Presenter
	disp      *display.Controller

	state State
}

// requeueAdapter implements present.Requeuer against the output queue of a
// device.Device, restating the shared device reference as a narrow
// interface per spec.md §9.
type requeueAdapter struct{ dev *device.Device }

func (r requeueAdapter) RequeueOutput(index uint32, fd int32, length uint32) error {
	_, err := r.dev.QueueBuffer(true, index, fd, length, 0, false)
	return err
}

// New builds an unconfigured Pipeline.
func New(logger zerolog.Logger) *Pipeline {
	return &Pipeline{logger: logger}
}

// Initialize implements spec.md §4.7's initialize(config): builds pools, the
// streaming controller, opens and verifies the video device, initializes
// the DMA heap allocator, builds the presenter, negotiates formats, and
// sets up buffers.
func (p *Pipeline) Initialize(cfg Config) error {
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("pipeline: initialize: %w: zero dimension", ErrConfigInvalid)
	}
	if cfg.InputPoolCount == 0 {
		cfg.InputPoolCount = defaultInputPoolCount
	}
	if cfg.OutputPoolCount == 0 {
		cfg.OutputPoolCount = defaultOutputPoolCount
	}
	p.cfg = cfg
	p.state = State{FrameWidth: cfg.Width, FrameHeight: cfg.Height}

	dev, err := device.Open(cfg.DevicePath, device.WithLogger(cfg.Logger))
	if err != nil {
		return err
	}
	p.dev = dev

	p.allocator = dmaheap.New(dmaheap.WithLogger(cfg.Logger))
	if err := p.allocator.Initialize(cfg.PreferredHeapPath); err != nil {
		return err
	}

	if err := dev.ConfigureDecoderFormats(cfg.Width, cfg.Height, cfg.InputCodec, cfg.OutputPixelFormat); err != nil {
		return err
	}

	p.inputPool = bufferpool.New(bufferpool.KindInput, p.allocator, cfg.InputPoolCount)
	p.outPool = bufferpool.New(bufferpool.KindOutput, p.allocator, cfg.OutputPoolCount)
	p.streamCtl = streamctl.New()
	p.disp = display.New(display.WithLogger(cfg.Logger))
	if err := p.disp.Initialize(cfg.Width, cfg.Height); err != nil {
		return err
	}

	outSlotSize := outputSlotSize(dev, cfg)
	p.presenter = present.New(
		uint32(cfg.OutputPoolCount), cfg.Width, cfg.Height, outSlotSize, display.PixelFormatYUV420,
		p.disp, requeueAdapter{dev: dev}, cfg.Logger,
	)

	return p.setupBuffers()
}

func outputSlotSize(dev *device.Device, cfg Config) uint32 {
	size := dev.OutputFormat().Planes[0].SizeImage
	if size == 0 {
		size = cfg.Width * cfg.Height * 3 / 2
	}
	return size
}

func inputSlotSize(dev *device.Device) uint32 {
	size := dev.InputFormat().Planes[0].SizeImage
	if size == 0 {
		size = defaultInputPlaneSize
	}
	return size
}

// setupBuffers implements spec.md §4.7's setup_buffers: query actual
// sizeimage for both queues (falling back to defaults), allocate both
// pools, pre-paint the output pool with the sentinel pattern, then ask the
// device to realize both pools in shared-memory mode.
func (p *Pipeline) setupBuffers() error {
	if err := p.inputPool.Allocate(p.cfg.InputPoolCount, uint64(inputSlotSize(p.dev))); err != nil {
		return err
	}
	if err := p.outPool.Allocate(p.cfg.OutputPoolCount, uint64(outputSlotSize(p.dev, p.cfg))); err != nil {
		return err
	}
	prePaintOutputPool(p.outPool)

	if err := p.inputPool.RequestOnDevice(p.dev); err != nil {
		return err
	}
	if err := p.outPool.RequestOnDevice(p.dev); err != nil {
		return err
	}
	return nil
}

const (
	sentinelLuma   = 16
	sentinelChroma = 128
)

// prePaintOutputPool fills every output slot's mapping with the luma/chroma
// sentinel pattern the presenter's content-liveness heuristic relies on
// (spec.md §4.7's setup_buffers, §4.6 step 3).
func prePaintOutputPool(pool *bufferpool.Pool) {
	for i := 0; i < pool.Count(); i++ {
		slot, _ := pool.Slot(i)
		paintSentinel(slot.Object.MappedAddr)
	}
}

// paintSentinel writes the alternating luma/chroma sentinel byte pattern
// into mapped, isolated from prePaintOutputPool so the pattern itself is
// unit-testable without a live pool.
func paintSentinel(mapped []byte) {
	for j := range mapped {
		if j%2 == 0 {
			mapped[j] = sentinelLuma
		} else {
			mapped[j] = sentinelChroma
		}
	}
}

func (p *Pipeline) outputStreamctlSlots() []streamctl.OutputSlot {
	slots := make([]streamctl.OutputSlot, 0, p.outPool.Count())
	for i := 0; i < p.outPool.Count(); i++ {
		s, _ := p.outPool.Slot(i)
		slots = append(slots, streamctl.OutputSlot{Index: uint32(i), FD: s.Object.FD, Length: uint32(len(s.Object.MappedAddr))})
	}
	return slots
}

// DecodeAccessUnit runs the ten-step ordered procedure of spec.md §4.7's
// "Normal decode step" for one access unit.
func (p *Pipeline) DecodeAccessUnit(au AccessUnit) error {
	if p.state.NeedsReset {
		if err := p.resetBuffers(); err != nil {
			return err
		}
		p.state.NeedsReset = false
	}

	p.state.DecoderReady = true

	if !p.streamCtl.IsActive() {
		if err := p.streamCtl.Start(p.dev, p.outputStreamctlSlots()); err != nil {
			return err
		}
	}

	p.drainInputCompletions()

	slotIdx, err := p.selectInputSlot()
	if err != nil {
		return err
	}
	slot, _ := p.inputPool.Slot(slotIdx)

	if err := dmaheap.SyncStart(slot.Object.FD); err != nil {
		p.logger.Debug().Err(err).Int("slot", slotIdx).Msg("input sync-start failed, continuing")
	}

	chunkSize := len(au.Data)
	if len(slot.Object.MappedAddr) < chunkSize {
		chunkSize = len(slot.Object.MappedAddr)
	}
	if chunkSize == 0 {
		return fmt.Errorf("pipeline: decode access unit: %w", ErrEmptyAccessUnit)
	}
	copy(slot.Object.MappedAddr, au.Data[:chunkSize])

	if err := dmaheap.SyncEnd(slot.Object.FD); err != nil {
		p.logger.Debug().Err(err).Int("slot", slotIdx).Msg("input sync-end failed, continuing")
	}

	if _, err := p.dev.QueueBuffer(false, uint32(slotIdx), slot.Object.FD, uint32(len(slot.Object.MappedAddr)), uint32(chunkSize), false); err != nil {
		return fmt.Errorf("pipeline: enqueue input slot %d: %w", slotIdx, err)
	}
	p.inputPool.MarkInUse(slotIdx)

	return p.drainOutputCompletions()
}

// drainInputCompletions repeatedly non-blocking-dequeues input buffers and
// marks their slots free (spec.md §4.7 step 4).
func (p *Pipeline) drainInputCompletions() {
	for {
		buf, ok, err := p.dev.DequeueBuffer(false)
		if err != nil {
			p.logger.Debug().Err(err).Msg("input drain dequeue failed, continuing")
			return
		}
		if !ok {
			return
		}
		p.inputPool.MarkFree(int(buf.Index))
	}
}

// selectInputSlot implements spec.md §4.7 step 5: peek-free from the input
// pool; on exhaustion, poll for writability once with a 20ms timeout, then
// retry after draining one more completion.
func (p *Pipeline) selectInputSlot() (int, error) {
	if idx, ok := p.inputPool.GetFreeBufferIndex(); ok {
		return idx, nil
	}

	if _, err := p.dev.Poll(inputWritableTimeout); err != nil {
		return 0, fmt.Errorf("pipeline: select input slot: poll: %w", err)
	}
	if p.dev.IsReadyForWrite() {
		if buf, ok, err := p.dev.DequeueBuffer(false); err == nil && ok {
			p.inputPool.MarkFree(int(buf.Index))
		}
	}

	if idx, ok := p.inputPool.GetFreeBufferIndex(); ok {
		return idx, nil
	}
	return 0, fmt.Errorf("pipeline: select input slot: %w", ErrNoFreeInputSlot)
}

// drainOutputCompletions implements spec.md §4.7 step 10: poll with a
// zero timeout until no more output frames are immediately available,
// handling asynchronous notifications and device errors along the way.
func (p *Pipeline) drainOutputCompletions() error {
	for {
		evt, err := p.dev.Poll(0)
		if err != nil {
			return fmt.Errorf("pipeline: drain output completions: poll: %w", err)
		}

		if evt.HasEvent {
			p.handleAsyncNotification()
			continue
		}
		if evt.HasError {
			p.state.NeedsReset = true
			return fmt.Errorf("pipeline: drain output completions: %w", ErrDeviceError)
		}
		if !evt.ReadyForRead {
			return nil
		}

		buf, ok, err := p.dev.DequeueBuffer(true)
		if err != nil {
			return fmt.Errorf("pipeline: dequeue output: %w", err)
		}
		if !ok {
			return nil
		}

		slot, _ := p.outPool.Slot(int(buf.Index))
		p.state.DecodedFrameCount++

		_ = p.presenter.Present(present.BufferInfo{
			Index:       buf.Index,
			FD:          slot.Object.FD,
			MappedAddr:  slot.Object.MappedAddr,
			BytesUsed:   buf.Planes[0].BytesUsed,
			DriverError: buf.Flags&v4l2.BufFlagError != 0,
		})
	}
}

// handleAsyncNotification implements spec.md §4.7's "Asynchronous
// notifications": source-change and frame-sync are advisory (Open Question
// 1 decides against resetting on resolution change); end-of-stream is
// advisory too.
func (p *Pipeline) handleAsyncNotification() {
	evt, err := p.dev.DequeueEvent()
	if err != nil {
		p.logger.Debug().Err(err).Msg("dequeue event failed")
		return
	}
	switch evt.GetType() {
	case v4l2.EventSourceChange:
		p.logger.Info().Msg("source change event received, continuing without reset")
	case v4l2.EventEOS:
		p.logger.Info().Msg("end-of-stream event received")
	case v4l2.EventFrameSync:
		p.logger.Debug().Uint32("sequence", evt.GetFrameSyncData().FrameSequence).Msg("frame sync event")
	}
}

// Flush implements spec.md §4.7's flush(): emits one zero-length,
// last-of-stream input buffer using a free input slot, then drains output
// completions for up to flushMaxAttempts intervals, resetting the attempt
// counter whenever a frame is produced.
func (p *Pipeline) Flush() error {
	slotIdx, err := p.selectInputSlot()
	if err != nil {
		return err
	}
	slot, _ := p.inputPool.Slot(slotIdx)
	if _, err := p.dev.QueueBuffer(false, uint32(slotIdx), slot.Object.FD, uint32(len(slot.Object.MappedAddr)), 0, true); err != nil {
		return fmt.Errorf("pipeline: flush: enqueue last buffer: %w", err)
	}
	p.inputPool.MarkInUse(slotIdx)

	attempts := 0
	for attempts < flushMaxAttempts {
		before := p.state.DecodedFrameCount
		if err := p.drainOutputCompletionsOnce(); err != nil {
			return err
		}
		if p.state.DecodedFrameCount > before {
			attempts = 0
		} else {
			attempts++
		}
		time.Sleep(flushPollInterval)
	}
	return nil
}

func (p *Pipeline) drainOutputCompletionsOnce() error {
	evt, err := p.dev.Poll(0)
	if err != nil {
		return fmt.Errorf("pipeline: flush: poll: %w", err)
	}
	if evt.HasError {
		p.state.NeedsReset = true
		return fmt.Errorf("pipeline: flush: %w", ErrDeviceError)
	}
	if evt.HasEvent {
		p.handleAsyncNotification()
	}
	if !evt.ReadyForRead {
		return nil
	}
	return p.drainOutputCompletions()
}

// resetBuffers implements spec.md §4.7's reset_buffers, recovering from a
// fatal device error or honoring a resolution change.
func (p *Pipeline) resetBuffers() error {
	p.streamCtl.Stop(p.dev)
	p.streamCtl.ForceStopped()

	if err := p.inputPool.ReleaseOnDevice(p.dev); err != nil {
		p.logger.Warn().Err(err).Msg("release input pool on device failed during reset")
	}
	if err := p.outPool.ReleaseOnDevice(p.dev); err != nil {
		p.logger.Warn().Err(err).Msg("release output pool on device failed during reset")
	}

	time.Sleep(resetDrainSleep)

	p.inputPool.ResetUsage()
	p.outPool.ResetUsage()

	p.inputPool.Deallocate()
	p.outPool.Deallocate()

	p.presenter.ClearZeroCopyCache()

	time.Sleep(resetMemorySleep)

	return p.setupBuffers()
}

// Teardown implements spec.md §4.7's teardown: stop streaming, release
// pools on device, deallocate pools, drop the display controller before
// closing the device, close the device, zero the state.
func (p *Pipeline) Teardown() {
	if p.streamCtl != nil {
		p.streamCtl.Stop(p.dev)
	}
	if p.inputPool != nil {
		if err := p.inputPool.ReleaseOnDevice(p.dev); err != nil {
			p.logger.Warn().Err(err).Msg("release input pool on device failed during teardown")
		}
		p.inputPool.Deallocate()
	}
	if p.outPool != nil {
		if err := p.outPool.ReleaseOnDevice(p.dev); err != nil {
			p.logger.Warn().Err(err).Msg("release output pool on device failed during teardown")
		}
		p.outPool.Deallocate()
	}
	if p.disp != nil {
		if err := p.disp.Teardown(); err != nil {
			p.logger.Warn().Err(err).Msg("display teardown failed")
		}
	}
	if p.dev != nil {
		if err := p.dev.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("device close failed during teardown")
		}
	}
	if p.allocator != nil {
		if err := p.allocator.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("allocator close failed during teardown")
		}
	}
	p.state = State{}
}

// State returns a copy of the pipeline's current state.
func (p *Pipeline) State() State { return p.state }
