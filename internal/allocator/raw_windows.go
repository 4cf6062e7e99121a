//go:build windows

package allocator

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const pageSize uintptr = 4096

func pageRoundUp(n uintptr) uintptr {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// rawAlloc reserves and commits page-rounded memory via VirtualAlloc.
func rawAlloc(n uintptr) (base uintptr, size uintptr) {
	size = pageRoundUp(n)

	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		panic(fmt.Sprintf("allocator: VirtualAlloc %d bytes: %v", size, err))
	}

	return addr, size
}

// rawFree releases memory reserved with rawAlloc.
func rawFree(base uintptr, size uintptr) {
	_ = size
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		panic(fmt.Sprintf("allocator: VirtualFree: %v", err))
	}
}

// rawRealloc has no in-place growth primitive on this path (VirtualAlloc
// reservations aren't resizable), so it allocates fresh, copies the
// overlapping prefix, and frees the old range, mirroring raw_unix.go.
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
