// Package hash provides the content hash used to dedup dictionary snips.
package hash

import "github.com/cespare/xxhash/v2"

// Snip computes the xxHash64 of a candidate dictionary snip. append_snip uses
// this to decide, in O(1) amortized time, whether bytes being appended to a
// context's dict already have a word index, instead of a linear scan of dict.
func Snip(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ID computes the xxHash64 of a printable dict id or tag string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}
