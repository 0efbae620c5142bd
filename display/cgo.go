package display

/*
#cgo linux CFLAGS: -I/usr/include

#include <drm/drm.h>
#include <drm/drm_mode.h>
#include <drm/drm_fourcc.h>
*/
import "C"

// This file centralizes all CGO compiler directives for the display package,
// mirroring v4l2/cgo.go.
//
// The default configuration uses system-provided DRM/KMS kernel UAPI headers
// from /usr/include/drm (typically installed via libdrm-dev on Debian/Ubuntu
// or libdrm-devel on Fedora). To use custom or newer kernel headers, override
// the include path with CGO_CFLAGS, same as for the v4l2 package:
//
//	CGO_CFLAGS="-I/path/to/custom/headers" go build
