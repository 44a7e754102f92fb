// Package codec implements the general-purpose entropy codecs used for
// context local/b250/dict payloads (§4.6), plus the dispatch table and
// best-codec sampler that picks among them per context at compress time.
//
// Compound codecs (ACGT+XCGT and friends) are not registered here: they
// produce a correlated primary/dependent pair rather than a single byte
// stream, so they implement their own interface in codec/acgt instead of
// Codec.
package codec

import "fmt"

// ID names one entry of the dispatch table (§4.6's "static table indexed by
// codec id"). Values are stable once assigned: they are persisted verbatim
// into the z-file's per-context codec field.
type ID uint8

const (
	None ID = iota
	LZ4
	S2
	Zstd
	// ACGT and XCGT name the compound nucleotide codec's primary
	// (2-bit-packed) and dependent (exception stream) halves. They are not
	// registered in table: package codec/acgt implements them directly,
	// since a compound codec produces a correlated pair of byte streams
	// rather than one (§4.6, §4.7).
	ACGT
	XCGT
)

func (id ID) String() string {
	switch id {
	case None:
		return "NONE"
	case LZ4:
		return "LZ4"
	case S2:
		return "S2"
	case Zstd:
		return "ZSTD"
	case ACGT:
		return "ACGT"
	case XCGT:
		return "XCGT"
	default:
		return fmt.Sprintf("ID(%d)", uint8(id))
	}
}

// Compressor compresses a single payload.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a single payload produced by the matching Compressor.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines compression and decompression for one dispatch table entry.
type Codec interface {
	Compressor
	Decompressor

	// EstimateSize returns a fast, conservative estimate of the compressed
	// size of data without actually compressing it. The best-codec sampler
	// (Sample) does not consult it: Sample runs a real Compress call for
	// every candidate on the ≈100KiB sample (§4.6).
	EstimateSize(data []byte) int
}

// entry is one row of the dispatch table: a codec id, its human name, and
// whether it is a "simple" codec (single byte stream, no paired dependent
// section) - every codec registered in this package is simple by
// construction, since ACGT-style compound codecs live in codec/acgt.
type entry struct {
	id       ID
	name     string
	isSimple bool
	codec    Codec
}

var table = []entry{
	{None, "NONE", true, NewNoOp()},
	{LZ4, "LZ4", true, NewLZ4()},
	{S2, "S2", true, NewS2()},
	{Zstd, "ZSTD", true, NewZstd()},
}

// Get retrieves the registered Codec for id.
func Get(id ID) (Codec, error) {
	for _, e := range table {
		if e.id == id {
			return e.codec, nil
		}
	}

	return nil, fmt.Errorf("codec: unknown id %s", id)
}

// Name returns the dispatch table name for id, or "ID(n)" if unregistered.
func Name(id ID) string {
	for _, e := range table {
		if e.id == id {
			return e.name
		}
	}

	return id.String()
}

// sampleIDs is the candidate set the best-codec sampler tries; None is
// deliberately excluded since it is never smaller than the input and is
// only chosen when no real candidate shrinks the sample.
var sampleIDs = []ID{LZ4, S2, Zstd}

// sampleSize caps how much of a context's accumulated local/dict bytes the
// best-codec sampler compresses per candidate, matching §4.6's "≈100 KiB".
const sampleSize = 100 * 1024

// Sample compresses up to sampleSize bytes of data with each candidate codec
// and returns the id producing the smallest output, falling back to None if
// no candidate produces output strictly smaller than the sample (or every
// candidate errors), or data is empty. Callers persist the
// winning id to the context so later VBs skip the search (§4.6).
func Sample(data []byte) (ID, error) {
	if len(data) == 0 {
		return None, nil
	}

	probe := data
	if len(probe) > sampleSize {
		probe = probe[:sampleSize]
	}

	best := None
	bestSize := len(probe)

	for _, id := range sampleIDs {
		c, err := Get(id)
		if err != nil {
			return None, err
		}

		out, err := c.Compress(probe)
		if err != nil {
			continue // a candidate that errors on the sample is simply not chosen
		}

		if len(out) < bestSize {
			best = id
			bestSize = len(out)
		}
	}

	return best, nil
}
