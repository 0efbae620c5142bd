package v4l2

/*
#include <linux/videodev2.h>
#include <linux/v4l2-controls.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// CtrlMinBuffersForCapture is V4L2_CID_MIN_BUFFERS_FOR_CAPTURE. Stateful
// M2M decoders use it to let userspace reduce the minimum number of CAPTURE
// buffers the driver insists on, trading a little pipelining depth for
// lower end-to-end latency (spec.md §4.2).
const CtrlMinBuffersForCapture uint32 = C.V4L2_CID_MIN_BUFFERS_FOR_CAPTURE

// SetControl issues VIDIOC_S_CTRL for a single 32-bit control value.
func SetControl(fd uintptr, id uint32, value int32) error {
	var ctrl C.struct_v4l2_control
	ctrl.id = C.__u32(id)
	ctrl.value = C.__s32(value)

	if err := send(fd, C.VIDIOC_S_CTRL, uintptr(unsafe.Pointer(&ctrl))); err != nil {
		return fmt.Errorf("set control %#x: %w", id, err)
	}
	return nil
}
