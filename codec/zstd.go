package codec

// Zstd is the ratio-optimized dispatch table entry (§4.6), the usual choice
// for dictionary and local streams that compress large MAIN/PRIM VB runs.
// Its Compress/Decompress/EstimateSize methods live in zstd_pure.go (used
// when built with cgo disabled) or zstd_cgo.go (used whenever cgo is
// enabled); both satisfy
// the same Codec interface so callers never branch on which is active.
type Zstd struct{}

var _ Codec = Zstd{}

// NewZstd returns the ZSTD codec.
func NewZstd() Zstd { return Zstd{} }
