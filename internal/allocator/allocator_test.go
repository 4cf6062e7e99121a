package allocator

import (
	"testing"
	"unsafe"
)

func TestSystemAllocator(t *testing.T) {
	t.Run("AllocWriteFree", func(t *testing.T) {
		sa := NewSystemAllocator(defaultConfig())

		ptr := sa.Alloc(64)
		if ptr == nil {
			t.Fatal("allocation failed")
		}

		data := (*[64]byte)(ptr)
		for i := range data {
			data[i] = byte(i)
		}

		if sa.ActiveAllocations() != 1 {
			t.Fatalf("expected 1 active allocation, got %d", sa.ActiveAllocations())
		}

		sa.Free(ptr)
		if sa.ActiveAllocations() != 0 {
			t.Fatalf("expected 0 active allocations after free, got %d", sa.ActiveAllocations())
		}
	})

	t.Run("ZeroSizeReturnsNil", func(t *testing.T) {
		sa := NewSystemAllocator(defaultConfig())
		if ptr := sa.Alloc(0); ptr != nil {
			t.Error("zero-size allocation should return nil")
		}
	})

	t.Run("ReallocGrowsAndPreservesData", func(t *testing.T) {
		sa := NewSystemAllocator(defaultConfig())

		ptr := sa.Alloc(16)
		data := (*[16]byte)(ptr)
		for i := range data {
			data[i] = byte(i + 1)
		}

		grown := sa.Realloc(ptr, 64)
		if grown == nil {
			t.Fatal("realloc failed")
		}

		newData := (*[16]byte)(grown)
		for i := range newData {
			if newData[i] != byte(i+1) {
				t.Fatalf("data corruption after realloc at %d", i)
			}
		}
	})

	t.Run("MemoryLimitRejectsOversizedAlloc", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.MemoryLimit = 128
		sa := NewSystemAllocator(cfg)

		if ptr := sa.Alloc(256); ptr != nil {
			t.Error("allocation exceeding MemoryLimit should fail")
		}
	})
}

func TestInitializeRegistersAllocatorKind(t *testing.T) {
	t.Run("System", func(t *testing.T) {
		if err := Initialize(SystemAllocatorKind); err != nil {
			t.Fatalf("Initialize(SystemAllocatorKind): %v", err)
		}
		if _, ok := GlobalAllocator.(*SystemAllocatorImpl); !ok {
			t.Fatalf("GlobalAllocator is %T, want *SystemAllocatorImpl", GlobalAllocator)
		}
	})

	t.Run("Block", func(t *testing.T) {
		if err := Initialize(BlockAllocatorKind, WithRegionSize(testRegionSize), WithDebug(true)); err != nil {
			t.Fatalf("Initialize(BlockAllocatorKind): %v", err)
		}
		if _, ok := GlobalAllocator.(*BlockAllocator); !ok {
			t.Fatalf("GlobalAllocator is %T, want *BlockAllocator", GlobalAllocator)
		}

		ptr := Alloc(128)
		if ptr == nil {
			t.Fatal("global Alloc failed")
		}
		Free(ptr)
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := Initialize(AllocatorKind(99)); err == nil {
			t.Error("expected an error for an unknown allocator kind")
		}
	})
}

// newTestRuntime wires a Runtime to a fresh BlockAllocator, the way
// InitializeRuntime wires GlobalRuntime, without touching the global.
func newTestRuntime(t *testing.T, threshold uintptr) *Runtime {
	t.Helper()

	a := newTestBlockAllocator()

	r := &Runtime{
		allocator:   a,
		gcEnabled:   true,
		gcThreshold: threshold,
		stringPool:  NewStringPool(),
		slicePool:   NewSlicePool(),
	}

	return r
}

func TestRuntimeBlockAllocatorGC(t *testing.T) {
	r := newTestRuntime(t, 0)
	a := r.allocator.(*BlockAllocator)

	ptr := r.AllocObject(256)
	if ptr == nil {
		t.Fatal("AllocObject failed")
	}
	a.Free(ptr)

	regionsBeforeGC := a.RegionCount()

	// AllocObject starts runGC asynchronously only when Stats().BytesInUse
	// exceeds the threshold; BlockAllocator.Stats leaves BytesInUse at
	// zero, so that never happens here. Call runGC directly instead.
	r.runGC()

	if a.RegionCount() >= regionsBeforeGC {
		t.Errorf("expected runGC to reclaim the now-empty region via BlockAllocator.GC, regions before=%d after=%d", regionsBeforeGC, a.RegionCount())
	}

	if r.gcStats.Collections != 1 {
		t.Errorf("expected 1 recorded collection, got %d", r.gcStats.Collections)
	}
}

func TestRuntimeAllocStringAndSlice(t *testing.T) {
	r := newTestRuntime(t, 32*1024*1024)

	s := r.AllocString("hello")
	if s == nil {
		t.Fatal("AllocString failed")
	}

	got := (*[5]byte)(s)
	if string(got[:]) != "hello" {
		t.Fatalf("AllocString corrupted data: got %q", string(got[:]))
	}

	header := r.AllocSlice(unsafe.Sizeof(byte(0)), 3, 8)
	if header == nil || header.Data == nil {
		t.Fatal("AllocSlice failed")
	}
	if header.Len != 3 || header.Cap != 8 {
		t.Fatalf("AllocSlice header wrong: len=%d cap=%d", header.Len, header.Cap)
	}
}
