package streamctl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buldo/RtpDrmPlayer/v4l2"
)

type fakeDevice struct {
	queued         []uint32
	streamOnCalls  []bool
	streamOffCalls []bool
	failStreamOn   map[bool]bool
	failQueue      bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{failStreamOn: map[bool]bool{}}
}

func (f *fakeDevice) QueueBuffer(kindIsOutput bool, index uint32, planeFD int32, length, bytesUsed uint32, last bool) (v4l2.Buffer, error) {
	if f.failQueue {
		return v4l2.Buffer{}, errors.New("queue failed")
	}
	f.queued = append(f.queued, index)
	return v4l2.Buffer{}, nil
}

func (f *fakeDevice) StreamOn(kindIsOutput bool) error {
	f.streamOnCalls = append(f.streamOnCalls, kindIsOutput)
	if f.failStreamOn[kindIsOutput] {
		return errors.New("stream on failed")
	}
	return nil
}

func (f *fakeDevice) StreamOff(kindIsOutput bool) error {
	f.streamOffCalls = append(f.streamOffCalls, kindIsOutput)
	return nil
}

func testSlots(n int) []OutputSlot {
	slots := make([]OutputSlot, n)
	for i := range slots {
		slots[i] = OutputSlot{Index: uint32(i), FD: int32(100 + i), Length: 4096}
	}
	return slots
}

func TestStartPreQueuesAllOutputSlotsThenStreamsOn(t *testing.T) {
	dev := newFakeDevice()
	c := New()

	err := c.Start(dev, testSlots(4))
	require.NoError(t, err)
	assert.Equal(t, StateActive, c.State())
	assert.Len(t, dev.queued, 4)
	assert.Equal(t, []bool{false, true}, dev.streamOnCalls)
}

func TestStartIsIdempotentWhenActive(t *testing.T) {
	dev := newFakeDevice()
	c := New()
	require.NoError(t, c.Start(dev, testSlots(2)))

	err := c.Start(dev, testSlots(2))
	require.NoError(t, err)
	assert.Len(t, dev.queued, 2, "second Start call must not re-queue")
}

func TestStartRollsBackInputOnOutputStreamOnFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.failStreamOn[true] = true
	c := New()

	err := c.Start(dev, testSlots(1))
	require.Error(t, err)
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, []bool{false}, dev.streamOffCalls, "input queue must be rolled back")
}

func TestStopTransitionsToStopped(t *testing.T) {
	dev := newFakeDevice()
	c := New()
	require.NoError(t, c.Start(dev, testSlots(1)))

	c.Stop(dev)
	assert.Equal(t, StateStopped, c.State())
	assert.ElementsMatch(t, []bool{true, false}, dev.streamOffCalls)
}

func TestForceStoppedDoesNotTouchDevice(t *testing.T) {
	dev := newFakeDevice()
	c := New()
	c.state = StateActive

	c.ForceStopped()
	assert.Equal(t, StateStopped, c.State())
	assert.Empty(t, dev.streamOffCalls)
}
