package v4l2

// #include <linux/videodev2.h>
import "C"

import (
	"fmt"
	"unsafe"
)

// FourCCType is a type alias for uint32, representing a Four Character Code (FourCC)
// used to identify pixel and codec formats in V4L2.
type FourCCType = uint32

// Pixel/codec format FourCC constants relevant to hardware AVC decoding.
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/pixfmt.html
var (
	// PixelFmtH264 identifies the AVC (H.264) byte-stream elementary format used
	// on the decoder's OUTPUT (bitstream input) queue.
	PixelFmtH264 FourCCType = C.V4L2_PIX_FMT_H264

	// PixelFmtYUV420 identifies planar 4:2:0 YUV (three distinct Y/Cb/Cr planes),
	// the format negotiated on the decoder's CAPTURE (decoded picture) queue.
	PixelFmtYUV420 FourCCType = C.V4L2_PIX_FMT_YUV420
)

// FieldType mirrors v4l2_field; decoded output from this pipeline is always progressive.
type FieldType = uint32

const (
	FieldAny  FieldType = C.V4L2_FIELD_ANY
	FieldNone FieldType = C.V4L2_FIELD_NONE
)

// PlaneFormat (v4l2_plane_pix_format) describes one plane of a multi-planar format:
// its per-line stride and its total byte size.
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/pixfmt-v4l2-mplane.html
type PlaneFormat struct {
	SizeImage    uint32
	BytesPerLine uint32
}

// PixFormatMPlane mirrors v4l2_pix_format_mplane. The decoder's input and output
// queues both negotiate exactly one plane (NumPlanes=1): the input queue's one
// plane holds the whole coded access unit, and the output queue's one plane holds
// the full planar 4:2:0 picture — the Y/Cb/Cr sub-plane layout within it is a
// display-side concern (see the display package), not a V4L2 concern.
type PixFormatMPlane struct {
	Width       uint32
	Height      uint32
	PixelFormat FourCCType
	Field       FieldType
	Colorspace  uint32
	NumPlanes   uint32
	Planes      [1]PlaneFormat
}

// Format wraps a PixFormatMPlane with the buffer type it applies to (the decoder's
// OUTPUT-MPLANE bitstream queue or CAPTURE-MPLANE picture queue).
type Format struct {
	Type      BufType
	PixMPlane PixFormatMPlane
}

// GetFormatMPlane issues VIDIOC_G_FMT for the given multi-planar queue and returns
// the negotiated format, including the sizeimage the driver actually allocated for.
func GetFormatMPlane(fd uintptr, bufType BufType) (PixFormatMPlane, error) {
	var v4l2Fmt C.struct_v4l2_format
	v4l2Fmt._type = C.uint(bufType)

	if err := send(fd, C.VIDIOC_G_FMT, uintptr(unsafe.Pointer(&v4l2Fmt))); err != nil {
		return PixFormatMPlane{}, fmt.Errorf("get format: %w", err)
	}
	return decodePixFormatMPlane(&v4l2Fmt), nil
}

// SetFormatMPlane issues VIDIOC_S_FMT to negotiate a multi-planar format on the
// given queue and returns the format the driver actually accepted, which may
// differ from the request (e.g. a rounded-up sizeimage).
func SetFormatMPlane(fd uintptr, bufType BufType, want PixFormatMPlane) (PixFormatMPlane, error) {
	var v4l2Fmt C.struct_v4l2_format
	v4l2Fmt._type = C.uint(bufType)

	pixMP := (*C.struct_v4l2_pix_format_mplane)(unsafe.Pointer(&v4l2Fmt.fmt[0]))
	pixMP.width = C.__u32(want.Width)
	pixMP.height = C.__u32(want.Height)
	pixMP.pixelformat = C.__u32(want.PixelFormat)
	pixMP.field = C.__u32(want.Field)
	pixMP.colorspace = C.__u32(want.Colorspace)
	pixMP.num_planes = C.__u8(1)
	planes := (*[C.VIDEO_MAX_PLANES]C.struct_v4l2_plane_pix_format)(unsafe.Pointer(&pixMP.plane_fmt[0]))
	planes[0].sizeimage = C.__u32(want.Planes[0].SizeImage)
	planes[0].bytesperline = C.__u32(want.Planes[0].BytesPerLine)

	if err := send(fd, C.VIDIOC_S_FMT, uintptr(unsafe.Pointer(&v4l2Fmt))); err != nil {
		return PixFormatMPlane{}, fmt.Errorf("set format: %w", err)
	}
	return decodePixFormatMPlane(&v4l2Fmt), nil
}

func decodePixFormatMPlane(v4l2Fmt *C.struct_v4l2_format) PixFormatMPlane {
	pixMP := (*C.struct_v4l2_pix_format_mplane)(unsafe.Pointer(&v4l2Fmt.fmt[0]))
	planes := (*[C.VIDEO_MAX_PLANES]C.struct_v4l2_plane_pix_format)(unsafe.Pointer(&pixMP.plane_fmt[0]))
	return PixFormatMPlane{
		Width:       uint32(pixMP.width),
		Height:      uint32(pixMP.height),
		PixelFormat: FourCCType(pixMP.pixelformat),
		Field:       FieldType(pixMP.field),
		Colorspace:  uint32(pixMP.colorspace),
		NumPlanes:   uint32(pixMP.num_planes),
		Planes: [1]PlaneFormat{{
			SizeImage:    uint32(planes[0].sizeimage),
			BytesPerLine: uint32(planes[0].bytesperline),
		}},
	}
}
