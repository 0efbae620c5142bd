package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/buldo/RtpDrmPlayer/pipeline"
)

type fakeDecoder struct {
	mu      sync.Mutex
	decoded []pipeline.AccessUnit
	flushed int
	failAll bool
}

func (f *fakeDecoder) DecodeAccessUnit(au pipeline.AccessUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("fake decode failure")
	}
	f.decoded = append(f.decoded, au)
	return nil
}

func (f *fakeDecoder) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
	return nil
}

func (f *fakeDecoder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.decoded)
}

func spsAccessUnit() []byte {
	return []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1e}
}

func TestLoopWaitsForParameterSetBeforeDecoding(t *testing.T) {
	dec := &fakeDecoder{}
	loop := New(dec, zerolog.Nop())
	require.NoError(t, loop.Start())
	defer loop.Stop()

	loop.Submit([]byte{0x00, 0x00, 0x00, 0x01, 0x61, 0x88}, 1)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, dec.count(), "must not decode before a parameter set has been seen")

	loop.Submit(spsAccessUnit(), 2)
	require.Eventually(t, func() bool { return dec.count() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestLoopStartIsNotReentrant(t *testing.T) {
	dec := &fakeDecoder{}
	loop := New(dec, zerolog.Nop())
	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.ErrorIs(t, loop.Start(), ErrAlreadyRunning)
}

func TestLoopStopWithoutStartReturnsNotRunning(t *testing.T) {
	loop := New(&fakeDecoder{}, zerolog.Nop())
	require.ErrorIs(t, loop.Stop(), ErrNotRunning)
}
