package display

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePlanarLayout(t *testing.T) {
	layout, err := computePlanarLayout(1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{1920, 960, 960}, layout.strides)
	assert.Equal(t, uint32(0), layout.offsets[0])
	assert.Equal(t, uint32(1920*1080), layout.offsets[1])
	assert.Equal(t, uint32(1920*1080+1920*1080/4), layout.offsets[2])
}

func TestPick1080pOrFirst(t *testing.T) {
	modes := []mode{{width: 1280, height: 720}, {width: 1920, height: 1080}, {width: 640, height: 480}}
	m, ok := pick1080pOrFirst(modes)
	require.True(t, ok)
	assert.Equal(t, uint32(1920), m.width)

	m, ok = pick1080pOrFirst([]mode{{width: 1280, height: 720}})
	require.True(t, ok)
	assert.Equal(t, uint32(1280), m.width)

	_, ok = pick1080pOrFirst(nil)
	assert.False(t, ok)
}

func TestSetupZeroCopyBufferRejectsInvalidInput(t *testing.T) {
	c := New()

	err := c.SetupZeroCopyBuffer(-1, 1920, 1080)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	err = c.SetupZeroCopyBuffer(3, 0, 1080)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	err = c.SetupZeroCopyBuffer(3, maxDimension+1, 1080)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDisplayFrameRejectsNonDMABuf(t *testing.T) {
	c := New()
	_, err := c.DisplayFrame(FrameInfo{IsDMABuf: false, FD: 3})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDisplayFrameRejectsUnimportedFD(t *testing.T) {
	c := New()
	_, err := c.DisplayFrame(FrameInfo{IsDMABuf: true, FD: 99})
	assert.ErrorIs(t, err, ErrPresentFailed)
}

func requireDRMDevice(t *testing.T) {
	t.Helper()
	for _, p := range defaultDevicePaths {
		if _, err := os.Stat(p); err == nil {
			return
		}
	}
	t.Skip("skipping: no /dev/dri/cardN present on this host")
}

func TestInitializeRealDevice(t *testing.T) {
	requireDRMDevice(t)

	c := New()
	err := c.Initialize(1920, 1080)
	require.NoError(t, err)
	defer c.Teardown()

	assert.NotZero(t, c.crtcID)
	assert.NotZero(t, c.connectorID)
}
