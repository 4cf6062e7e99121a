package allocator

import "unsafe"

// allocJumbo services a request too large for a normal region: it gets a
// dedicated region sized to fit exactly, and is freed/grown by returning
// that region to the OS rather than through the split/merge machinery.
func (a *BlockAllocator) allocJumbo(size uintptr) unsafe.Pointer {
	return chunkToData(a.newJumboRegion(size))
}

// freeJumbo returns a jumbo chunk's whole region to the OS.
func (a *BlockAllocator) freeJumbo(chunk uintptr) {
	r := regionFromChunk(chunk)
	a.regions.remove(r)
	a.regionCount--
	rawFree(r.base, r.size)
}

// reallocJumbo grows or shrinks a jumbo allocation by resizing its
// dedicated region. The region descriptor's address never changes, so
// neighboring regions never need their links fixed up — only base/size.
func (a *BlockAllocator) reallocJumbo(chunk uintptr, size uintptr) unsafe.Pointer {
	r := regionFromChunk(chunk)
	total := regionHeaderSize + chunkHeaderSize + alignSize(size)

	newBase, actual := rawRealloc(r.base, r.size, total)
	r.base = newBase
	r.size = actual
	r.writeSelf()

	addr := r.firstChunk()
	setChunkPrevOffset(addr, 0)
	setChunkLen(addr, 0)
	setChunkLast(addr, true)
	setChunkUsed(addr, true)
	setChunkJumbo(addr, true)
	return chunkToData(addr)
}
