// Package playback implements C8, the Buffered Playback Loop: the bounded
// hand-off between an external receiver's callback thread and the decode
// thread that owns the decoder pipeline end to end.
package playback

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/buldo/RtpDrmPlayer/pipeline"
)

const (
	queueCapacity       = 5
	parameterSetBackoff = time.Second
)

// Decoder is the narrow slice of the decode pipeline the loop drives,
// restating the shared pipeline reference as an interface per spec.md §9.
type Decoder interface {
	DecodeAccessUnit(au pipeline.AccessUnit) error
	Flush() error
}

// Loop is C8.
type Loop struct {
	decoder Decoder
	queue   *boundedQueue
	logger  zerolog.Logger

	running         atomic.Bool
	sawParameterSet atomic.Bool
	decodedCount    atomic.Uint64
	errorCount      atomic.Uint64

	done chan struct{}
}

// New constructs a Loop that will drive decoder once Start is called.
func New(decoder Decoder, logger zerolog.Logger) *Loop {
	return &Loop{
		decoder: decoder,
		queue:   newBoundedQueue(queueCapacity),
		logger:  logger,
	}
}

// Start spawns the decode thread. Not re-entrant: calling Start while
// already running reports ErrAlreadyRunning.
func (l *Loop) Start() error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	l.done = make(chan struct{})
	go l.run()
	return nil
}

// Submit is the receiver contract of spec.md §6: the external receiver
// invokes this from its own thread with one decoded-ready access-unit
// payload plus its RTP timestamp. The receiver only owns data up to this
// call's return, so Submit copies it before enqueuing.
func (l *Loop) Submit(data []byte, rtpTimestamp uint32) {
	buf := make([]byte, len(data))
	copy(buf, data)

	if !l.sawParameterSet.Load() && containsParameterSet(buf) {
		l.sawParameterSet.Store(true)
	}

	if dropped := l.queue.push(pipeline.AccessUnit{Data: buf, RTPTimestamp: rtpTimestamp}); dropped {
		l.logger.Warn().Msg("playback queue full, dropped oldest access unit")
	}
}

// Stop implements spec.md §4.8's shutdown: flip the running flag, wake the
// decode thread, and join it.
func (l *Loop) Stop() error {
	if !l.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	l.queue.close()
	<-l.done
	return nil
}

// DecodedCount returns how many access units the pipeline has accepted
// without error so far.
func (l *Loop) DecodedCount() uint64 { return l.decodedCount.Load() }

// DroppedCount returns how many access units were dropped for overflow.
func (l *Loop) DroppedCount() uint64 { return l.queue.droppedCount() }

// run is the decode thread body (spec.md §5): it owns the pipeline and
// everything under it, and while the loop is running it is the only
// goroutine that calls into it. FlushAndStop touches the pipeline only
// after this goroutine has exited.
func (l *Loop) run() {
	defer close(l.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := raiseToRealtimeFIFO(); err != nil {
		l.logger.Warn().Err(err).Msg("could not raise decode thread to real-time FIFO priority, continuing at default priority")
	}

	for l.running.Load() {
		if !l.sawParameterSet.Load() {
			time.Sleep(parameterSetBackoff)
			continue
		}

		au, ok := l.queue.pop()
		if !ok {
			return
		}

		if err := l.decoder.DecodeAccessUnit(au); err != nil {
			l.errorCount.Add(1)
			l.logger.Warn().Err(err).Uint32("rtp_timestamp", au.RTPTimestamp).Msg("decode access unit failed")
			continue
		}
		l.decodedCount.Add(1)
	}
}

// FlushAndStop stops the loop and joins the decode thread, then drains any
// remaining queued access units through the pipeline and issues a final
// flush. Used for a graceful end-of-stream shutdown rather than an abrupt
// Stop.
func (l *Loop) FlushAndStop() error {
	if err := l.Stop(); err != nil {
		return err
	}
	for l.sawParameterSet.Load() {
		au, ok := l.queue.pop()
		if !ok {
			break
		}
		if err := l.decoder.DecodeAccessUnit(au); err != nil {
			l.errorCount.Add(1)
			continue
		}
		l.decodedCount.Add(1)
	}
	if err := l.decoder.Flush(); err != nil {
		return fmt.Errorf("playback: flush and stop: %w", err)
	}
	return nil
}
