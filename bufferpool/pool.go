// Package bufferpool implements C3, the Buffer Pool: a fixed-count pool of
// shared kernel buffer objects bound to one decoder queue (input or
// output). It tracks per-slot ownership (free vs. in the driver) and hands
// out free slots with a rolling, round-robin cursor so no slot starves.
//
// A Pool owns no kernel device handle itself; callers pass a Device (the
// video device handle, package device) into RequestOnDevice/ReleaseOnDevice
// so the pool remains the single owner of allocate/deallocate lifecycle
// while the device only learns about buffer counts.
package bufferpool

import (
	"fmt"

	"github.com/buldo/RtpDrmPlayer/dmaheap"
)

// Kind distinguishes the decoder's two independent mem2mem queues.
type Kind int

const (
	KindInput Kind = iota
	KindOutput
)

// Slot is one entry of the pool (spec data model §3, PoolSlot).
type Slot struct {
	Index  int
	Object dmaheap.BufferObject
	InUse  bool // true iff currently owned by the kernel driver
}

// Pool is C3.
type Pool struct {
	kind      Kind
	allocator *dmaheap.Allocator
	slots     []Slot
	cursor    int
}

// New constructs an empty pool of count slots for the given queue kind.
// Call Allocate before using it.
func New(kind Kind, allocator *dmaheap.Allocator, count int) *Pool {
	return &Pool{kind: kind, allocator: allocator, slots: make([]Slot, 0, count)}
}

// Count returns the number of slots in the pool.
func (p *Pool) Count() int { return len(p.slots) }

// Kind returns which decoder queue this pool serves.
func (p *Pool) Kind() Kind { return p.kind }

// Slot returns a copy of the slot at index, and whether index was in range.
func (p *Pool) Slot(index int) (Slot, bool) {
	if index < 0 || index >= len(p.slots) {
		return Slot{}, false
	}
	return p.slots[index], true
}

// Allocate pre-allocates and maps count slots of at least bufferSize bytes
// each (spec.md §4.3). Partial failure releases everything allocated so far.
func (p *Pool) Allocate(count int, bufferSize uint64) error {
	p.slots = make([]Slot, 0, count)
	for i := 0; i < count; i++ {
		obj, err := p.allocator.Allocate(bufferSize, fmt.Sprintf("bufferpool-%d-%d", p.kind, i))
		if err != nil {
			p.Deallocate()
			return fmt.Errorf("bufferpool: allocate slot %d: %w", i, err)
		}
		if err := p.allocator.Map(&obj); err != nil {
			_ = p.allocator.Release(&obj)
			p.Deallocate()
			return fmt.Errorf("bufferpool: map slot %d: %w", i, err)
		}
		p.slots = append(p.slots, Slot{Index: i, Object: obj})
	}
	p.cursor = 0
	return nil
}

// Deallocate unmaps and releases every slot's kernel resources, then clears
// the pool (spec.md §4.3). Idempotent.
func (p *Pool) Deallocate() {
	for i := range p.slots {
		_ = p.allocator.Unmap(&p.slots[i].Object)
		_ = p.allocator.Release(&p.slots[i].Object)
	}
	p.slots = p.slots[:0]
	p.cursor = 0
}

// GetFreeBufferIndex is a pure peek: it returns the first free slot index
// found scanning from the rolling cursor, without mutating any state. A
// caller commits the choice via MarkInUse.
func (p *Pool) GetFreeBufferIndex() (int, bool) {
	n := len(p.slots)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if !p.slots[idx].InUse {
			return idx, true
		}
	}
	return 0, false
}

// MarkInUse marks the slot at index as owned by the driver. Advances the
// rolling cursor only when index equals the current cursor, so the cursor
// distributes reuse round-robin without starving any slot. Out-of-range
// indices are silent no-ops (spec.md §4.3 tolerates driver-side surprises).
func (p *Pool) MarkInUse(index int) {
	if index < 0 || index >= len(p.slots) {
		return
	}
	p.slots[index].InUse = true
	if index == p.cursor {
		p.cursor = (p.cursor + 1) % len(p.slots)
	}
}

// MarkFree marks the slot at index as owned by userspace again.
// Out-of-range indices are silent no-ops.
func (p *Pool) MarkFree(index int) {
	if index < 0 || index >= len(p.slots) {
		return
	}
	p.slots[index].InUse = false
}

// InUseCount returns how many slots are currently marked in-use.
func (p *Pool) InUseCount() int {
	n := 0
	for _, s := range p.slots {
		if s.InUse {
			n++
		}
	}
	return n
}

// ResetUsage marks every slot free and rewinds the rolling cursor, used by
// the pipeline's reset_buffers procedure (spec.md §4.7 step 4) to clear
// bookkeeping before the pool's kernel resources are deallocated.
func (p *Pool) ResetUsage() {
	for i := range p.slots {
		p.slots[i].InUse = false
	}
	p.cursor = 0
}
