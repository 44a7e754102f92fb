package codec

// NoOp is the identity codec: its Compress/Decompress return the input
// unchanged. It is always in the dispatch table so a context can be forced
// to skip entropy coding entirely (already-compressed payloads, debugging).
type NoOp struct{}

var _ Codec = NoOp{}

// NewNoOp returns the identity codec.
func NewNoOp() NoOp { return NoOp{} }

func (NoOp) Compress(data []byte) ([]byte, error) { return data, nil }

func (NoOp) Decompress(data []byte) ([]byte, error) { return data, nil }

func (NoOp) EstimateSize(data []byte) int { return len(data) }
