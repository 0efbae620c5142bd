package dmaheap

import sys "golang.org/x/sys/unix"

// ioctl wraps Syscall(SYS_IOCTL), retrying on EINTR. Mirrors the v4l2
// package's own ioctl/send helpers — the same kernel ioctl contract applies
// to any character device, DMA heap nodes included.
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
