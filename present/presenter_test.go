package present

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buldo/RtpDrmPlayer/display"
)

type fakeDisplay struct {
	setupCalls     []int32
	presentCalls   []display.FrameInfo
	failSetup      bool
	failDisplay    bool
}

func (f *fakeDisplay) SetupZeroCopyBuffer(fd int32, w, h uint32) error {
	f.setupCalls = append(f.setupCalls, fd)
	if f.failSetup {
		return errors.New("setup failed")
	}
	return nil
}

func (f *fakeDisplay) DisplayFrame(frame display.FrameInfo) (time.Duration, error) {
	f.presentCalls = append(f.presentCalls, frame)
	if f.failDisplay {
		return 0, errors.New("present failed")
	}
	return time.Millisecond, nil
}

type fakeRequeuer struct {
	requeued []uint32
	fail     bool
}

func (f *fakeRequeuer) RequeueOutput(index uint32, fd int32, length uint32) error {
	if f.fail {
		return errors.New("requeue failed")
	}
	f.requeued = append(f.requeued, index)
	return nil
}

const (
	testWidth  = 16
	testHeight = 16
)

func liveFrame() []byte {
	buf := make([]byte, 2048)
	for i := range buf {
		buf[i] = 200 // anything not sentinel
	}
	return buf
}

func untouchedFrame() []byte {
	buf := make([]byte, 2048)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = sentinelLuma
		} else {
			buf[i] = sentinelChroma
		}
	}
	return buf
}

func minBytesUsed() uint32 {
	return testWidth * testHeight * 3 / 2 / 2
}

func newPresenter(disp Display, req Requeuer) *Presenter {
	return New(4, testWidth, testHeight, testWidth*testHeight*3/2, 0, disp, req, zerolog.Nop())
}

func TestPresentHappyPathImportsOnceAndPresents(t *testing.T) {
	disp := &fakeDisplay{}
	req := &fakeRequeuer{}
	p := newPresenter(disp, req)

	buf := BufferInfo{Index: 0, FD: 5, MappedAddr: liveFrame(), BytesUsed: minBytesUsed()}
	require.NoError(t, p.Present(buf))
	require.NoError(t, p.Present(buf))

	assert.Len(t, disp.setupCalls, 1, "zero-copy setup must only happen on first use per fd")
	assert.Len(t, disp.presentCalls, 2)
	assert.Equal(t, []uint32{0, 0}, req.requeued)
	assert.EqualValues(t, 2, p.FrameCount())
}

func TestPresentRejectsOutOfRangeIndex(t *testing.T) {
	disp := &fakeDisplay{}
	req := &fakeRequeuer{}
	p := newPresenter(disp, req)

	err := p.Present(BufferInfo{Index: 99, FD: 5, MappedAddr: liveFrame(), BytesUsed: minBytesUsed()})
	require.NoError(t, err)
	assert.Empty(t, disp.presentCalls)
	assert.Equal(t, []uint32{99}, req.requeued, "rejected slot must still be requeued")
}

func TestPresentRejectsDriverErrorFlag(t *testing.T) {
	disp := &fakeDisplay{}
	req := &fakeRequeuer{}
	p := newPresenter(disp, req)

	err := p.Present(BufferInfo{Index: 1, FD: 5, MappedAddr: liveFrame(), BytesUsed: minBytesUsed(), DriverError: true})
	require.NoError(t, err)
	assert.Empty(t, disp.presentCalls)
	assert.Equal(t, []uint32{1}, req.requeued)
}

func TestPresentRejectsTooSmallBuffer(t *testing.T) {
	disp := &fakeDisplay{}
	req := &fakeRequeuer{}
	p := newPresenter(disp, req)

	err := p.Present(BufferInfo{Index: 1, FD: 5, MappedAddr: liveFrame(), BytesUsed: 1})
	require.NoError(t, err)
	assert.Empty(t, disp.presentCalls)
}

func TestPresentRejectsUntouchedSentinelBuffer(t *testing.T) {
	disp := &fakeDisplay{}
	req := &fakeRequeuer{}
	p := newPresenter(disp, req)

	err := p.Present(BufferInfo{Index: 1, FD: 5, MappedAddr: untouchedFrame(), BytesUsed: minBytesUsed()})
	require.NoError(t, err)
	assert.Empty(t, disp.presentCalls)
}

func TestFrameCountIncrementsOnEveryAttemptNotOnlySuccess(t *testing.T) {
	disp := &fakeDisplay{}
	req := &fakeRequeuer{}
	p := newPresenter(disp, req)

	_ = p.Present(BufferInfo{Index: 99, FD: 5, MappedAddr: liveFrame(), BytesUsed: minBytesUsed()}) // rejected
	_ = p.Present(BufferInfo{Index: 0, FD: 5, MappedAddr: liveFrame(), BytesUsed: minBytesUsed()})   // accepted
	assert.EqualValues(t, 2, p.FrameCount())
}
