package pipeline

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/buldo/RtpDrmPlayer/v4l2"
)

func requireHardware(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/video10"); err != nil {
		t.Skipf("skipping: /dev/video10 not present on this host")
	}
	if _, err := os.Stat("/dev/dri/card0"); err != nil {
		t.Skipf("skipping: /dev/dri/card0 not present on this host")
	}
}

func TestPrePaintOutputPoolWritesSentinelPattern(t *testing.T) {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = 0xff
	}
	paintSentinel(buf)
	for i, b := range buf {
		if i%2 == 0 {
			require.Equal(t, byte(sentinelLuma), b)
		} else {
			require.Equal(t, byte(sentinelChroma), b)
		}
	}
}

func TestInitializeRejectsZeroDimensions(t *testing.T) {
	p := New(zerolog.Nop())
	err := p.Initialize(Config{DevicePath: "/dev/video10", Width: 0, Height: 1080})
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestFullLifecycleOnRealHardware(t *testing.T) {
	requireHardware(t)

	p := New(zerolog.Nop())
	err := p.Initialize(Config{
		DevicePath:        "/dev/video10",
		Width:             1920,
		Height:            1080,
		InputCodec:        v4l2.PixelFmtH264,
		OutputPixelFormat: v4l2.PixelFmtYUV420,
	})
	require.NoError(t, err)
	defer p.Teardown()

	require.NoError(t, p.Flush())
}
