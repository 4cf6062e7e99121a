//go:build unix

package allocator

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const pageSize uintptr = 4096

func pageRoundUp(n uintptr) uintptr {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// rawAlloc requests anonymous, private, page-rounded memory from the OS.
// The returned size is always >= n and a multiple of the page size.
func rawAlloc(n uintptr) (base uintptr, size uintptr) {
	size = pageRoundUp(n)

	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		panic(fmt.Sprintf("allocator: mmap %d bytes: %v", size, err))
	}

	return uintptr(unsafe.Pointer(unsafe.SliceData(b))), size
}

// rawFree returns previously mmap'd memory to the OS.
func rawFree(base uintptr, size uintptr) {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	if err := unix.Munmap(b); err != nil {
		panic(fmt.Sprintf("allocator: munmap %d bytes: %v", size, err))
	}
}

// rawRealloc grows or shrinks a region by mapping fresh memory, copying
// the overlapping prefix, and unmapping the old range. mremap isn't
// exposed portably across the unix targets x/sys covers, so this trades
// an extra copy for portability; jumbo reallocs are rare enough that
// this is the right tradeoff.
func rawRealloc(oldBase uintptr, oldSize uintptr, newSize uintptr) (base uintptr, size uintptr) {
	base, size = rawAlloc(newSize)

	n := oldSize
	if newSize < n {
		n = newSize
	}
	copyMemory(unsafe.Pointer(base), unsafe.Pointer(oldBase), n)

	rawFree(oldBase, oldSize)
	return base, size
}
