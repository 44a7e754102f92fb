package codec

import "github.com/klauspost/compress/s2"

// S2 is Snappy's faster, slightly-higher-ratio successor; a balanced middle
// entry in the dispatch table between LZ4 (speed) and ZSTD (ratio).
type S2 struct{}

var _ Codec = S2{}

// NewS2 returns the S2 codec.
func NewS2() S2 { return S2{} }

func (S2) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

func (S2) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Decode(nil, data)
}

func (S2) EstimateSize(data []byte) int {
	return s2.MaxEncodedLen(len(data))
}
