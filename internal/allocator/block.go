package allocator

import (
	"fmt"
	"unsafe"
)

// maxNormalAllocSize is the largest data size servable out of a normal
// region; anything bigger gets a dedicated jumbo region.
func maxNormalAllocSize(regionSize uintptr) uintptr {
	return regionSize - (regionHeaderSize + chunkHeaderSize)
}

// BlockAllocator is a region-based allocator serving alloc/realloc/free
// out of a handful of large OS-backed regions, using two free lists: a
// LIFO master stack of never-recycled region frontiers, and a
// self-adjusting circular recycler of chunks that have been freed at
// least once. It is not safe for concurrent use from multiple
// goroutines without an external lock.
type BlockAllocator struct {
	regionSize uintptr
	regions    regionList

	masterHead   uintptr
	recyclerHead uintptr

	regionCount int
	debug       bool

	totalAllocated uintptr
	totalFreed     uintptr
	allocCount     uint64
	freeCount      uint64

	freedAllBeforeCleanup bool
}

// NewBlockAllocator creates a block allocator that carves OS regions of
// the given size (DefaultRegionSize if zero).
func NewBlockAllocator(regionSize uintptr, debug bool) *BlockAllocator {
	if regionSize == 0 {
		regionSize = DefaultRegionSize
	}

	return &BlockAllocator{
		regionSize: regionSize,
		debug:      debug,
	}
}

// Alloc returns a pointer to at least size bytes, or nil for size 0. The
// memory is not zeroed: reused chunks keep their old contents, and the
// first bytes of any chunk taken from a free list still hold that list's
// links.
func (a *BlockAllocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if size > maxNormalAllocSize(a.regionSize) {
		ptr := a.allocJumbo(size)
		a.trackAlloc(size)
		if a.debug {
			a.checkInvariants()
		}
		return ptr
	}

	var chunk uintptr

	if a.recyclerHead != 0 && chunkDataLen(a.recyclerHead) >= size {
		chunk = a.recyclerHead
	} else {
		if a.masterHead != 0 && chunkDataLen(a.masterHead) < size {
			chunk = a.masterHead
			a.popMaster()
			a.insertRecycler(chunk)
		}

		if a.masterHead == 0 {
			a.newNormalRegion()
		}

		chunk = a.masterHead
	}

	a.splitFreeChunk(chunk, size)

	if a.recyclerHead != 0 {
		a.cycleRecycler()
	}

	setChunkUsed(chunk, true)
	a.trackAlloc(size)

	if a.debug {
		a.checkInvariants()
	}

	return chunkToData(chunk)
}

// Free releases a chunk previously returned by Alloc.
func (a *BlockAllocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	chunk := dataToChunk(uintptr(ptr))

	if chunkJumbo(chunk) {
		a.freeJumbo(chunk)
		a.freeCount++
		if a.debug {
			a.checkInvariants()
		}
		return
	}

	if a.debug && !chunkUsed(chunk) {
		panic("allocator: double free")
	}

	setChunkUsed(chunk, false)
	a.mergeFree(chunk)
	a.freeCount++

	if a.debug {
		a.checkInvariants()
	}
}

// Realloc grows or shrinks a chunk in place when adjacent free space
// allows it, otherwise falls back to alloc+copy+free.
func (a *BlockAllocator) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return a.Alloc(size)
	}

	if size == 0 {
		a.Free(ptr)
		return nil
	}

	chunk := dataToChunk(uintptr(ptr))

	if chunkJumbo(chunk) {
		out := a.reallocJumbo(chunk, size)
		if a.debug {
			a.checkInvariants()
		}
		return out
	}

	if a.debug && !chunkUsed(chunk) {
		panic("allocator: realloc of a freed chunk")
	}

	dataLen := chunkDataLen(chunk)

	switch {
	case size > dataLen:
		next := chunkNext(chunk)
		if next != 0 && !chunkUsed(next) && size < dataLen+chunkLen(next) {
			splitSize := size - dataLen
			if splitSize < chunkHeaderSize {
				splitSize = 0
			} else {
				splitSize -= chunkHeaderSize
			}

			a.splitFreeChunk(next, splitSize)

			setChunkLen(chunk, chunkLen(chunk)+chunkLen(next))
			setChunkLast(chunk, chunkLast(next))

			if nn := chunkNext(chunk); nn != 0 {
				setChunkPrevOffset(nn, chunkLen(chunk))
			}

			if a.debug {
				a.checkInvariants()
			}
			return ptr
		}

		newPtr := a.Alloc(size)
		copyMemory(newPtr, ptr, dataLen)
		a.Free(ptr)
		return newPtr

	case size < dataLen:
		a.splitUsedChunk(chunk, size)
		if a.debug {
			a.checkInvariants()
		}
		return ptr

	default:
		return ptr
	}
}

// FreeAll discards every live allocation and resets each owned region to
// a single fresh free chunk, releasing jumbo regions back to the OS
// entirely. Existing free lists become meaningless and are rebuilt from
// scratch.
func (a *BlockAllocator) FreeAll() {
	a.masterHead = 0
	a.recyclerHead = 0

	cur := a.regions.head
	for cur != nil {
		next := cur.next
		if cur.jumbo {
			a.regions.remove(cur)
			a.regionCount--
			rawFree(cur.base, cur.size)
		} else {
			chunk := cur.initChunk()
			a.pushMaster(chunk)
		}
		cur = next
	}

	a.freedAllBeforeCleanup = true

	if a.debug {
		a.checkInvariants()
	}
}

// GC walks owned regions, returning any region that is a single whole
// free chunk (i.e. entirely unused) to the OS, and keeps the rest.
func (a *BlockAllocator) GC() {
	cur := a.regions.head

	for cur != nil {
		next := cur.next
		chunk := cur.firstChunk()

		if !cur.jumbo && !chunkUsed(chunk) && chunkLast(chunk) {
			a.unlinkFree(chunk)
			a.regions.remove(cur)
			a.regionCount--
			rawFree(cur.base, cur.size)
		}

		cur = next
	}

	if a.debug {
		a.checkInvariants()
	}
}

// unlinkFree removes chunk (known free) from whichever list holds it,
// using chunk's own overlay links directly rather than walking either
// list — used by GC where chunk is always a whole, listable region.
func (a *BlockAllocator) unlinkFree(chunk uintptr) {
	fl := freeLinkAt(chunk)

	if fl.next != 0 {
		freeLinkAt(fl.next).prev = fl.prev
	}
	if fl.prev != 0 {
		freeLinkAt(fl.prev).next = fl.next
	}

	switch {
	case a.recyclerHead == chunk:
		if fl.next == chunk {
			a.recyclerHead = 0
		} else {
			a.recyclerHead = fl.next
		}
	case a.masterHead == chunk:
		a.masterHead = fl.next
	}
}

// Cleanup releases all remaining regions to the OS. In debug mode it
// asserts FreeAll was called immediately prior, matching the contract
// that cleanup only ever runs after a final free_all.
func (a *BlockAllocator) Cleanup() {
	if a.debug && !a.freedAllBeforeCleanup {
		panic("allocator: Cleanup called without a preceding FreeAll")
	}

	cur := a.regions.head
	for cur != nil {
		next := cur.next
		rawFree(cur.base, cur.size)
		cur = next
	}

	a.regions = regionList{}
	a.regionCount = 0
	a.masterHead = 0
	a.recyclerHead = 0
}

func (a *BlockAllocator) trackAlloc(size uintptr) {
	a.totalAllocated += size
	a.allocCount++
	a.freedAllBeforeCleanup = false
}

// TotalAllocated returns the cumulative number of bytes ever requested
// through Alloc, including the Alloc calls Realloc makes for nil pointers
// and for growth that cannot happen in place (not the live working set).
// Realloc calls resized in place, and jumbo reallocs, do not add to it.
func (a *BlockAllocator) TotalAllocated() uintptr {
	return a.totalAllocated
}

// TotalFreed returns the number of Free calls serviced, not a byte
// count: the allocator doesn't track per-allocation size separately
// from the chunk header, so this mirrors FreeCount for API parity.
func (a *BlockAllocator) TotalFreed() uintptr {
	return uintptr(a.freeCount)
}

// ActiveAllocations returns the number of Alloc calls not yet balanced
// by a Free.
func (a *BlockAllocator) ActiveAllocations() int {
	return int(a.allocCount - a.freeCount)
}

// Stats returns allocator statistics for the shared Allocator interface.
// TotalFreed, PeakAllocations and BytesInUse are not tracked and are
// always zero, so a Runtime's GC threshold check never fires for a
// BlockAllocator.
func (a *BlockAllocator) Stats() AllocatorStats {
	return AllocatorStats{
		TotalAllocated:    a.totalAllocated,
		ActiveAllocations: a.ActiveAllocations(),
		AllocationCount:   a.allocCount,
		FreeCount:         a.freeCount,
		SystemMemory:      uintptr(a.regionCount) * a.regionSize,
	}
}

// Reset implements the shared Allocator interface by calling FreeAll.
func (a *BlockAllocator) Reset() {
	a.FreeAll()
}

var _ Allocator = (*BlockAllocator)(nil)

// RegionCount reports how many OS-backed regions (normal + jumbo) this
// allocator currently owns, for diagnostics and tests.
func (a *BlockAllocator) RegionCount() int {
	return a.regionCount
}

func (a *BlockAllocator) String() string {
	return fmt.Sprintf("BlockAllocator{regions=%d, active=%d}", a.regionCount, a.ActiveAllocations())
}
