package dmaheap

/*
#cgo linux CFLAGS: -I/usr/include

#include <linux/dma-heap.h>
*/
import "C"

// This file centralizes all CGO compiler directives for the dmaheap package.
//
// The default configuration uses the system-provided DMA heap UAPI header from
// /usr/include, typically shipped by the linux-libc-dev (Debian/Ubuntu),
// kernel-headers (RHEL/Fedora), or linux-headers (Arch Linux) package.
//
// To use custom or newer kernel headers, override the include path using the
// CGO_CFLAGS environment variable:
//
//	CGO_CFLAGS="-I/path/to/custom/headers" go build
//
// For cross-compilation, point CGO_CFLAGS to your target's sysroot headers:
//
//	CGO_CFLAGS="-I/path/to/sysroot/usr/include" \
//	CC=aarch64-linux-gnu-gcc \
//	GOOS=linux GOARCH=arm64 \
//	go build
