package display

import sys "golang.org/x/sys/unix"

// ioctl mirrors v4l2/syscalls.go's and dmaheap/syscalls.go's EINTR-retrying
// raw ioctl wrapper — this package talks to its own device node (the DRM
// mode-setting device) rather than the V4L2 node, so it keeps its own copy
// rather than reaching into v4l2's unexported helper.
func ioctl(fd, req, arg uintptr) sys.Errno {
	for {
		_, _, errno := sys.Syscall(sys.SYS_IOCTL, fd, req, arg)
		switch errno {
		case 0:
			return 0
		case sys.EINTR:
			continue
		default:
			return errno
		}
	}
}
