// Package streamctl implements C4, the Streaming Controller: the state
// machine governing when the decoder's two queues are actually streaming,
// independent of buffer allocation (bufferpool) and decode stepping
// (pipeline).
package streamctl

import (
	"fmt"
	"time"

	"github.com/buldo/RtpDrmPlayer/v4l2"
)

// State is one of the five streaming states spec.md §4.4 names.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateActive
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Device is the narrow slice of the video device handle (package device)
// the controller needs: queueing the output pool's scratch slots and
// turning each queue's streaming on/off. Kept as an interface per spec.md
// §9's design note against concrete shared-pointer dependencies.
type Device interface {
	QueueBuffer(kindIsOutput bool, index uint32, planeFD int32, length, bytesUsed uint32, last bool) (v4l2.Buffer, error)
	StreamOn(kindIsOutput bool) error
	StreamOff(kindIsOutput bool) error
}

// OutputSlot is the minimal description of one output-pool slot the
// controller needs to pre-queue it before streaming starts.
type OutputSlot struct {
	Index  uint32
	FD     int32
	Length uint32
}

// Controller tracks streaming state for one decoder device.
type Controller struct {
	state State
}

// New returns a Controller in StateStopped.
func New() *Controller {
	return &Controller{state: StateStopped}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// IsActive reports whether the controller is in StateActive.
func (c *Controller) IsActive() bool { return c.state == StateActive }

// Start implements spec.md §4.4's start(): from Stopped or Error, pre-queue
// every output-pool slot (the decoder's scratch area for writing decoded
// pictures), stream-on the input queue, then stream-on the output queue,
// rolling the input queue back off if the output stream-on fails. Calling
// Start while already Active is an idempotent success.
func (c *Controller) Start(dev Device, outputSlots []OutputSlot) error {
	if c.state == StateActive {
		return nil
	}

	c.state = StateStarting

	for _, slot := range outputSlots {
		if _, err := dev.QueueBuffer(true, slot.Index, slot.FD, slot.Length, 0, false); err != nil {
			c.state = StateError
			return fmt.Errorf("streamctl: pre-queue output slot %d: %w", slot.Index, err)
		}
	}

	if err := dev.StreamOn(false); err != nil {
		c.state = StateError
		return fmt.Errorf("streamctl: stream on input: %w", err)
	}

	if err := dev.StreamOn(true); err != nil {
		_ = dev.StreamOff(false) // roll back the input queue per spec.md §4.4
		c.state = StateError
		return fmt.Errorf("streamctl: stream on output: %w", err)
	}

	c.state = StateActive
	return nil
}

// Stop implements spec.md §4.4's stop(): stream-off output then input, wait
// ~10ms for pending work to drain, and transition to Stopped. Stream-off
// errors are ignored (best-effort teardown, per spec.md §7).
func (c *Controller) Stop(dev Device) {
	c.state = StateStopping
	_ = dev.StreamOff(true)
	_ = dev.StreamOff(false)
	time.Sleep(10 * time.Millisecond)
	c.state = StateStopped
}

// ForceStopped transitions directly to Stopped without touching the device,
// used by the pipeline's reset_buffers procedure (spec.md §4.7 step 1) when
// recovering from a fatal device error.
func (c *Controller) ForceStopped() {
	c.state = StateStopped
}
