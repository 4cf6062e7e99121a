package allocator

import "fmt"

// checkInvariants walks every region's chunk list and both free lists,
// panicking on the first inconsistency found. Only ever called when
// EnableDebug is set: it's O(n) in the number of live chunks and not
// meant to run on a production hot path.
func (a *BlockAllocator) checkInvariants() {
	a.checkRegions()
	a.checkRecycler()
	a.checkMaster()
}

// checkRegions walks each region's chunk chain front to back, verifying
// header consistency: prevOff/len agree with neighbors, no two adjacent
// chunks are both free, the chain ends at a chunk marked last, and a
// jumbo region's chunk is used, last and jumbo.
func (a *BlockAllocator) checkRegions() {
	for r := a.regions.head; r != nil; r = r.next {
		addr := r.firstChunk()
		if r.jumbo {
			if !chunkJumbo(addr) || !chunkUsed(addr) || !chunkLast(addr) {
				panic("allocator: jumbo region invariant violated")
			}
			continue
		}

		var prev uintptr
		seenFree := false

		for {
			if chunkJumbo(addr) {
				panic("allocator: jumbo chunk found inside a normal region")
			}

			if prev != 0 && chunkPrev(addr) != prev {
				panic(fmt.Sprintf("allocator: chunk %#x has wrong prevOff", addr))
			}

			if !chunkUsed(addr) {
				if seenFree && chunkPrev(addr) != 0 && !chunkUsed(chunkPrev(addr)) {
					panic(fmt.Sprintf("allocator: adjacent free chunks %#x and %#x were not merged", chunkPrev(addr), addr))
				}
				seenFree = true
			} else {
				seenFree = false
			}

			next := chunkNext(addr)
			if next == 0 {
				if !chunkLast(addr) {
					panic("allocator: region chunk chain missing a last chunk")
				}
				break
			}

			prev = addr
			addr = next
		}
	}
}

// checkRecycler walks the recycler ring and confirms it closes back on
// its head within a bounded walk, that its head is a local length-maximum relative to
// its immediate neighbor (the rotation invariant), and that every member
// is actually free and listable.
func (a *BlockAllocator) checkRecycler() {
	if a.recyclerHead == 0 {
		return
	}

	head := a.recyclerHead
	cur := head
	count := 0
	maxWalk := 1 << 20

	for {
		if chunkUsed(cur) {
			panic(fmt.Sprintf("allocator: used chunk %#x found on recycler", cur))
		}
		if !listable(cur) {
			panic(fmt.Sprintf("allocator: unlistable chunk %#x found on recycler", cur))
		}

		fl := freeLinkAt(cur)
		if freeLinkAt(fl.next).prev != cur {
			panic(fmt.Sprintf("allocator: recycler link broken at %#x", cur))
		}

		cur = fl.next
		count++
		if count > maxWalk {
			panic("allocator: recycler ring does not close (corrupt or unbounded)")
		}
		if cur == head {
			break
		}
	}

	headNext := freeLinkAt(head).next
	if headNext != head && chunkLen(headNext) > chunkLen(head) {
		panic("allocator: recycler head is not a local maximum")
	}
}

// checkMaster walks the master stack and confirms every member is free
// and that the chain terminates. It does not check that a member is
// absent from the recycler.
func (a *BlockAllocator) checkMaster() {
	cur := a.masterHead
	count := 0
	maxWalk := 1 << 20

	for cur != 0 {
		if chunkUsed(cur) {
			panic(fmt.Sprintf("allocator: used chunk %#x found on master", cur))
		}

		count++
		if count > maxWalk {
			panic("allocator: master stack does not terminate (corrupt or unbounded)")
		}

		cur = freeLinkAt(cur).next
	}
}
