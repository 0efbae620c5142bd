package bufferpool

import "fmt"

// Device is the narrow slice of the video device handle (package device)
// that the pool needs to request/release buffer slots on the kernel queue.
// Kept as an interface, not a concrete dependency, so the pool never reaches
// back into the device's full surface — only RequestBuffers, per spec.md
// §9's "restate shared references as an interface" design note.
type Device interface {
	RequestBuffers(kindIsOutput bool, count uint32) (uint32, error)
}

// RequestOnDevice asks the kernel to prepare Count() shared-memory slots on
// the pool's queue (spec.md §4.3). Owned by the pool, not the device.
func (p *Pool) RequestOnDevice(dev Device) error {
	got, err := dev.RequestBuffers(p.kind == KindOutput, uint32(len(p.slots)))
	if err != nil {
		return fmt.Errorf("bufferpool: request buffers on device: %w", err)
	}
	if int(got) < len(p.slots) {
		return fmt.Errorf("bufferpool: device granted %d of %d requested buffers", got, len(p.slots))
	}
	return nil
}

// ReleaseOnDevice asks the kernel for 0 buffers on the pool's queue, which
// is how V4L2 signals "release this queue's buffer allocation" (teardown).
func (p *Pool) ReleaseOnDevice(dev Device) error {
	if _, err := dev.RequestBuffers(p.kind == KindOutput, 0); err != nil {
		return fmt.Errorf("bufferpool: release buffers on device: %w", err)
	}
	return nil
}
