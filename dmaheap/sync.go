package dmaheap

/*
#include <linux/dma-buf.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const (
	syncRead  = C.DMA_BUF_SYNC_READ
	syncWrite = C.DMA_BUF_SYNC_WRITE
	syncStart = C.DMA_BUF_SYNC_START
	syncEnd   = C.DMA_BUF_SYNC_END
)

func sync(fd int32, flags uint64) error {
	var s C.struct_dma_buf_sync
	s.flags = C.__u64(flags)
	if errno := ioctl(uintptr(fd), uintptr(C.DMA_BUF_IOCTL_SYNC), uintptr(unsafe.Pointer(&s))); errno != 0 {
		return fmt.Errorf("dmaheap: dma-buf sync: %v", errno)
	}
	return nil
}

// SyncStart brackets the start of a CPU read-write access to a dma-buf fd,
// required before writing an access unit into an input slot's mapping
// (spec.md §4.7 step 6, §5's cache-coherency rule).
func SyncStart(fd int32) error {
	return sync(fd, uint64(syncStart|syncRead|syncWrite))
}

// SyncEnd brackets the end of a CPU read-write access to a dma-buf fd.
func SyncEnd(fd int32) error {
	return sync(fd, uint64(syncEnd|syncRead|syncWrite))
}
