package allocator

// The master list is a LIFO stack of free chunks that have never been
// recycled: the frontier of fresh region space. At most one chunk per
// region ever sits on it, and it is always that region's rightmost chunk.

// pushMaster makes chunk the new master head.
func (a *BlockAllocator) pushMaster(chunk uintptr) {
	fl := freeLinkAt(chunk)
	fl.prev = 0
	fl.next = a.masterHead
	if fl.next != 0 {
		freeLinkAt(fl.next).prev = chunk
	}
	a.masterHead = chunk
}

// popMaster removes the current master head.
func (a *BlockAllocator) popMaster() {
	chunk := a.masterHead
	fl := freeLinkAt(chunk)
	a.masterHead = fl.next
	if fl.next != 0 {
		freeLinkAt(fl.next).prev = 0
	}
}
