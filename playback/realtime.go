package playback

/*
#include <sched.h>
*/
import "C"

import "fmt"

// raiseToRealtimeFIFO attempts to move the calling OS thread to SCHED_FIFO
// at the maximum available priority (spec.md §4.8). The caller must have
// called runtime.LockOSThread() first, since the scheduling policy is a
// per-thread, not per-goroutine, kernel attribute. Failure is never fatal —
// the decode thread works correctly at the default policy, just with worse
// worst-case latency.
func raiseToRealtimeFIFO() error {
	maxPrio := C.sched_get_priority_max(C.SCHED_FIFO)
	if maxPrio < 0 {
		return fmt.Errorf("playback: sched_get_priority_max: unavailable")
	}

	var param C.struct_sched_param
	param.sched_priority = maxPrio

	if rc := C.sched_setscheduler(0, C.SCHED_FIFO, &param); rc != 0 {
		return fmt.Errorf("playback: sched_setscheduler(SCHED_FIFO, %d) failed", int(maxPrio))
	}
	return nil
}
