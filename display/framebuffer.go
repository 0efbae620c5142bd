package display

/*
#include <drm/drm.h>
#include <drm/drm_mode.h>
#include <drm/drm_fourcc.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const maxDimension = 8192

// planarLayout computes the three-plane stride/offset layout spec.md §4.5
// describes for a common 8-bit 4:2:0 planar format: strides {w, w/2, w/2},
// offsets {0, w*h, w*h + w*h/4}.
type planarLayout struct {
	strides [3]uint32
	offsets [3]uint32
}

func computePlanarLayout(w, h uint32) (planarLayout, error) {
	wh := uint64(w) * uint64(h)
	if wh > 1<<32-1 {
		return planarLayout{}, fmt.Errorf("display: %dx%d: %w: luma plane size overflows 32 bits", w, h, ErrInvalidFrame)
	}
	return planarLayout{
		strides: [3]uint32{w, w / 2, w / 2},
		offsets: [3]uint32{0, uint32(wh), uint32(wh) + uint32(wh)/4},
	}, nil
}

// importPrimeFD issues DRM_IOCTL_PRIME_FD_TO_HANDLE, converting a dma-buf fd
// into a driver-local GEM handle. This does NOT take ownership of fd — the
// handle is a view, closed independently via closeGEMHandle.
func importPrimeFD(devFD uintptr, bufFD int32) (uint32, error) {
	var req C.struct_drm_prime_handle
	req.fd = C.__s32(bufFD)

	if errno := ioctl(devFD, uintptr(C.DRM_IOCTL_PRIME_FD_TO_HANDLE), uintptr(unsafe.Pointer(&req))); errno != 0 {
		return 0, fmt.Errorf("display: prime_fd_to_handle: %w: %v", ErrImportFailed, errno)
	}
	return uint32(req.handle), nil
}

// addFramebuffer issues DRM_IOCTL_MODE_ADDFB2, creating a framebuffer object
// from a single GEM handle shared across all three 4:2:0 planes (the decoder
// writes one contiguous allocation; the planar layout only differs by offset).
func addFramebuffer(devFD uintptr, handle uint32, w, h uint32, pixelFormat uint32, layout planarLayout) (uint32, error) {
	var cmd C.struct_drm_mode_fb_cmd2
	cmd.width = C.__u32(w)
	cmd.height = C.__u32(h)
	cmd.pixel_format = C.__u32(pixelFormat)
	for i := 0; i < 3; i++ {
		cmd.handles[i] = C.__u32(handle)
		cmd.pitches[i] = C.__u32(layout.strides[i])
		cmd.offsets[i] = C.__u32(layout.offsets[i])
	}

	if errno := ioctl(devFD, uintptr(C.DRM_IOCTL_MODE_ADDFB2), uintptr(unsafe.Pointer(&cmd))); errno != 0 {
		return 0, fmt.Errorf("display: addfb2: %w: %v", ErrImportFailed, errno)
	}
	return uint32(cmd.fb_id), nil
}

func removeFramebuffer(devFD uintptr, fbID uint32) error {
	id := C.__u32(fbID)
	if errno := ioctl(devFD, uintptr(C.DRM_IOCTL_MODE_RMFB), uintptr(unsafe.Pointer(&id))); errno != 0 {
		return fmt.Errorf("display: rmfb %d: %v", fbID, errno)
	}
	return nil
}

func closeGEMHandle(devFD uintptr, handle uint32) error {
	var req C.struct_drm_gem_close
	req.handle = C.__u32(handle)
	if errno := ioctl(devFD, uintptr(C.DRM_IOCTL_GEM_CLOSE), uintptr(unsafe.Pointer(&req))); errno != 0 {
		return fmt.Errorf("display: gem close %d: %v", handle, errno)
	}
	return nil
}
