//go:build cgo

package codec

import "github.com/valyala/gozstd"

// gozstd links libzstd via cgo; it is noticeably faster than the pure-Go
// port at high compression levels, which matters for the one-time sampling
// pass over ≈100KiB candidates (§4.6) repeated per context.
const zstdLevel = 3

func (Zstd) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, zstdLevel), nil
}

func (Zstd) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}

func (Zstd) EstimateSize(data []byte) int {
	return len(data)/2 + 64
}
