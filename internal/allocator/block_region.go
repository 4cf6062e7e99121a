package allocator

import "unsafe"

// DefaultRegionSize is the recommended OS-region size: 8MiB, a power of two.
const DefaultRegionSize uintptr = 8 * 1024 * 1024

// region is the allocator's Go-level descriptor for one OS-backed region.
// It deliberately lives outside the region's own raw bytes (prev/next are
// ordinary Go pointers, not byte offsets into the buffer) so that a jumbo
// region's raw_realloc, which may move the underlying bytes, never needs to
// fix up neighbor links: the descriptor's address never changes, only its
// base/size fields do. See SPEC_FULL.md §3 for the rationale.
//
// A region's raw bytes still carry a regionHeaderSize-byte prefix holding
// the uintptr address of this descriptor ("self"), so that a chunk address
// can recover its owning region without a side table. This is used only by
// the jumbo free/realloc paths, mirroring WMEM_CHUNK_TO_BLOCK.
type region struct {
	prev, next *region
	base       uintptr
	size       uintptr
	jumbo      bool
}

func (r *region) writeSelf() {
	*(*uintptr)(unsafe.Pointer(r.base)) = uintptr(unsafe.Pointer(r))
}

// regionFromChunk recovers the owning region descriptor from the address of
// a chunk that occupies the whole region (only valid for jumbo chunks,
// which always begin at base+regionHeaderSize).
func regionFromChunk(chunkAddr uintptr) *region {
	base := chunkAddr - regionHeaderSize
	self := *(*uintptr)(unsafe.Pointer(base))
	return (*region)(unsafe.Pointer(self))
}

// regionList is the doubly-linked list of all regions an allocator owns.
type regionList struct {
	head *region
}

// add prepends r to the list.
func (l *regionList) add(r *region) {
	r.prev = nil
	r.next = l.head
	if l.head != nil {
		l.head.prev = r
	}
	l.head = r
}

// remove detaches r from the list, fixing up the head if necessary.
func (l *regionList) remove(r *region) {
	if r.prev != nil {
		r.prev.next = r.next
	} else {
		l.head = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	}
}

// firstChunk returns the address of a (non-jumbo) region's first chunk.
func (r *region) firstChunk() uintptr {
	return r.base + regionHeaderSize
}

// initChunk lays down a single free chunk spanning the whole usable area of
// a freshly allocated (or reset) normal region.
func (r *region) initChunk() uintptr {
	addr := r.firstChunk()
	setChunkPrevOffset(addr, 0)
	setChunkLen(addr, r.size-regionHeaderSize)
	setChunkLast(addr, true)
	setChunkUsed(addr, false)
	setChunkJumbo(addr, false)
	return addr
}

// newNormalRegion allocates a fresh OS-backed region, registers it, pushes
// its single whole-region free chunk onto the master list, and returns
// that chunk's address.
func (a *BlockAllocator) newNormalRegion() uintptr {
	base, size := rawAlloc(a.regionSize)
	r := &region{base: base, size: size}
	r.writeSelf()
	a.regions.add(r)
	a.regionCount++

	chunk := r.initChunk()
	a.pushMaster(chunk)

	return chunk
}

// newJumboRegion allocates a region sized exactly for one oversized
// allocation and returns the address of its single used chunk.
func (a *BlockAllocator) newJumboRegion(size uintptr) uintptr {
	total := regionHeaderSize + chunkHeaderSize + alignSize(size)
	base, actual := rawAlloc(total)
	r := &region{base: base, size: actual, jumbo: true}
	r.writeSelf()
	a.regions.add(r)
	a.regionCount++

	addr := r.firstChunk()
	setChunkPrevOffset(addr, 0)
	setChunkLen(addr, 0) // irrelevant for jumbo chunks; size lives on the region
	setChunkLast(addr, true)
	setChunkUsed(addr, true)
	setChunkJumbo(addr, true)
	return addr
}
