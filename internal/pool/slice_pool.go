package pool

import "sync"

// Slice pools for scratch arrays reused across VBs: int32 word-index
// buffers, uint32 repeat-count buffers and int64 offset/delta buffers. No
// package in this module calls the getters below outside their own tests.
var (
	int32SlicePool = sync.Pool{
		New: func() any { return &[]int32{} },
	}
	uint32SlicePool = sync.Pool{
		New: func() any { return &[]uint32{} },
	}
	int64SlicePool = sync.Pool{
		New: func() any { return &[]int64{} },
	}
)

// GetInt32Slice retrieves and resizes a word-index scratch slice from the
// pool.
//
// The returned slice has length exactly size. The caller must call the
// returned cleanup function (typically via defer) to return it to the pool.
func GetInt32Slice(size int) ([]int32, func()) {
	ptr, _ := int32SlicePool.Get().(*[]int32)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]int32, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { int32SlicePool.Put(ptr) }
}

// GetUint32Slice retrieves and resizes a repeat-count scratch slice from the
// pool.
func GetUint32Slice(size int) ([]uint32, func()) {
	ptr, _ := uint32SlicePool.Get().(*[]uint32)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]uint32, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { uint32SlicePool.Put(ptr) }
}

// GetInt64Slice retrieves and resizes an int64 offset/delta scratch slice
// from the pool; seclist decodes with plain local deltas and does not call it.
func GetInt64Slice(size int) ([]int64, func()) {
	ptr, _ := int64SlicePool.Get().(*[]int64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]int64, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { int64SlicePool.Put(ptr) }
}
