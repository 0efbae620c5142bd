package device

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buldo/RtpDrmPlayer/v4l2"
)

const testDevicePath = "/dev/video10"

func requireDevice(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testDevicePath); err != nil {
		t.Skipf("skipping: %s not present on this host", testDevicePath)
	}
}

func TestOpenAndConfigureRealDevice(t *testing.T) {
	requireDevice(t)

	dev, err := Open(testDevicePath)
	require.NoError(t, err)
	defer dev.Close()

	require.True(t, dev.Capability().IsMem2MemMultiplanarSupported())

	err = dev.ConfigureDecoderFormats(1920, 1080, v4l2.PixelFmtH264, v4l2.PixelFmtYUV420)
	require.NoError(t, err)
	require.Equal(t, uint32(1920), dev.InputFormat().Width)
}

func TestOpenMissingDeviceReturnsUnavailable(t *testing.T) {
	_, err := Open("/dev/does-not-exist-rtpdrmplayer")
	require.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestConfigureRejectsZeroDimensions(t *testing.T) {
	requireDevice(t)

	dev, err := Open(testDevicePath)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.ConfigureDecoderFormats(0, 1080, v4l2.PixelFmtH264, v4l2.PixelFmtYUV420)
	require.ErrorIs(t, err, ErrConfigInvalid)
}
