package allocator

import "unsafe"

// Configuration for allocators.
type Config struct {
	RegionSize      uintptr
	MaxAllocations  int
	MemoryLimit     uintptr
	AlignmentSize   uintptr
	EnableTracking  bool
	EnableDebug     bool
	EnableLeakCheck bool
}

type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		EnableTracking:  true,
		EnableDebug:     false,
		RegionSize:      DefaultRegionSize,
		MaxAllocations:  1000000,
		MemoryLimit:     1024 * 1024 * 1024, // 1GB limit
		EnableLeakCheck: true,
		AlignmentSize:   8, // 8-byte alignment
	}
}

// Option functions.
func WithTracking(enabled bool) Option {
	return func(c *Config) { c.EnableTracking = enabled }
}

func WithDebug(enabled bool) Option {
	return func(c *Config) { c.EnableDebug = enabled }
}

func WithRegionSize(size uintptr) Option {
	return func(c *Config) { c.RegionSize = size }
}

func WithMemoryLimit(limit uintptr) Option {
	return func(c *Config) { c.MemoryLimit = limit }
}

func WithLeakCheck(enabled bool) Option {
	return func(c *Config) { c.EnableLeakCheck = enabled }
}

func WithAlignment(alignment uintptr) Option {
	return func(c *Config) { c.AlignmentSize = alignment }
}

// alignUp aligns a size up to the nearest multiple of alignment.
func alignUp(size, alignment uintptr) uintptr {
	return (size + alignment - 1) &^ (alignment - 1)
}

// copyMemory copies memory from src to dst.
func copyMemory(dst, src unsafe.Pointer, size uintptr) {
	dstSlice := (*[1 << 30]byte)(dst)[:size:size]
	srcSlice := (*[1 << 30]byte)(src)[:size:size]
	copy(dstSlice, srcSlice)
}
