package codec

import (
	"errors"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4CompressorPool pools lz4.Compressor instances: they hold a hash table
// sized for CompressBlockBound that is wasteful to reallocate per call.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4 is the fast, low-ratio dispatch table entry (§4.6). Sample picks it
// only when it produces the smallest output; the generated-component
// router always uses it to compress offloaded DEPN batches.
type LZ4 struct{}

var _ Codec = LZ4{}

// NewLZ4 returns the LZ4 codec.
func NewLZ4() LZ4 { return LZ4{} }

func (LZ4) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// incompressible block: lz4 signals this by writing nothing
		return append([]byte(nil), data...), nil
	}

	return dst[:n], nil
}

// Decompress grows its scratch buffer geometrically until UncompressBlock
// stops complaining about a short destination, since LZ4 blocks don't
// self-describe their uncompressed size.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	bufSize := len(data) * 4
	const maxSize = 128 * 1024 * 1024

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}

			return nil, err
		}

		return buf[:n], nil
	}

	return nil, lz4.ErrInvalidSourceShortBuffer
}

func (LZ4) EstimateSize(data []byte) int {
	return lz4.CompressBlockBound(len(data))
}
