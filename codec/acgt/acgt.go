// Package acgt implements the compound ACGT+XCGT codec (§4.6, §4.7): 2-bit
// packing of nucleotide sequence data, plus its correlated XCGT dependent
// exception stream that carries everything the 2-bit packing cannot
// represent (lowercase, IUPAC ambiguity codes, and anything that isn't
// A/C/G/T at all).
//
// This is a compound codec, not a codec.Codec: compressing a sequence
// produces two correlated byte streams (Pair.Packed and Pair.Exceptions)
// rather than one, so it is not registered in codec's dispatch table.
package acgt

// EncodeTable maps each input byte to its packed 2-bit code (0..3). A, C, G,
// T map to 0, 1, 2, 3 in both cases; IUPAC ambiguity codes map to the
// alphabetically-lowest of their participating bases (VCF spec 1.6.1-REF);
// everything else, including 'N', maps to 0.
var EncodeTable = buildEncodeTable()

// ComplementTable is EncodeTable's independent counterpart for
// reverse-complement sequences (SAM reverse-strand reads): each entry is the
// code of the complementary base, derived the same alphabetically-lowest
// rule applied to the complemented IUPAC set.
var ComplementTable = buildComplementTable()

func buildEncodeTable() [256]byte {
	var t [256]byte // zero value covers N and every unlisted byte: code 0

	t['A'], t['a'] = 0, 0
	t['C'], t['c'] = 1, 1
	t['G'], t['g'] = 2, 2
	t['T'], t['t'] = 3, 3

	t['U'], t['u'] = 3, 3
	t['R'], t['r'] = 0, 0
	t['Y'], t['y'] = 1, 1
	t['S'], t['s'] = 1, 1
	t['W'], t['w'] = 0, 0
	t['K'], t['k'] = 2, 2
	t['M'], t['m'] = 0, 0
	t['B'], t['b'] = 1, 1
	t['D'], t['d'] = 0, 0
	t['H'], t['h'] = 0, 0
	t['V'], t['v'] = 0, 0
	t['N'], t['n'] = 0, 0

	return t
}

func buildComplementTable() [256]byte {
	var t [256]byte

	t['A'], t['a'] = 3, 3
	t['C'], t['c'] = 2, 2
	t['G'], t['g'] = 1, 1
	t['T'], t['t'] = 0, 0
	t['U'], t['u'] = 0, 0

	t['R'], t['r'] = 1, 1
	t['Y'], t['y'] = 0, 0
	t['S'], t['s'] = 1, 1
	t['W'], t['w'] = 0, 0
	t['K'], t['k'] = 0, 0
	t['M'], t['m'] = 2, 2
	t['B'], t['b'] = 0, 0
	t['D'], t['d'] = 0, 0
	t['H'], t['h'] = 0, 0
	t['V'], t['v'] = 1, 1
	t['N'], t['n'] = 0, 0

	return t
}

// bases maps a packed 2-bit code back to its canonical uppercase base.
var bases = [4]byte{'A', 'C', 'G', 'T'}

// lowerBases is bases with the case flipped, used when Exceptions recorded
// the lowercase marker for a position.
var lowerBases = [4]byte{'a', 'c', 'g', 't'}

// Pack squeezes seq into a 2-bit-per-base packed byte slice, 4 bases per
// output byte, base i occupying bits [2*(i%4), 2*(i%4)+2) of byte i/4 with
// the first base of each group of four in the low bits. This bit order is
// this package's own choice: no bit-array source file was available to copy
// a layout from, so any order that Pack/Unpack agree on is equally valid.
func Pack(seq []byte) []byte {
	return pack(seq, EncodeTable[:])
}

// PackComplement is Pack using ComplementTable, for reverse-complement
// sequences (SAM reverse-strand reads).
func PackComplement(seq []byte) []byte {
	return pack(seq, ComplementTable[:])
}

func pack(seq []byte, table []byte) []byte {
	out := make([]byte, (len(seq)+3)/4)
	for i, b := range seq {
		out[i/4] |= table[b] << uint((i%4)*2)
	}

	return out
}

// Unpack expands a Pack-produced byte slice back into n 2-bit codes (each
// byte of the result holds one code, 0..3, not yet mapped to an ASCII base).
func Unpack(packed []byte, n int) []byte {
	codes := make([]byte, n)
	for i := 0; i < n; i++ {
		codes[i] = (packed[i/4] >> uint((i%4)*2)) & 0x3
	}

	return codes
}

// acgtExceptions is the XOR table codec_acgt_compress builds: an uppercase
// A/C/G/T XORs with itself (producing 0, "no exception"); a lowercase
// a/c/g/t XORs with itself-XOR-1 (producing 1, "lowercase, same base");
// everything else is left unchanged by an absent table entry (XORs with 0),
// so it passes through verbatim as the literal exception byte.
var acgtExceptions = buildExceptionsTable()

func buildExceptionsTable() [256]byte {
	var t [256]byte
	for _, b := range []byte("ACGT") {
		t[b] = b // XOR with self -> 0
	}
	for _, b := range []byte("acgt") {
		t[b] = b ^ 1 // XOR with self^1 -> 1
	}

	return t
}

// Exceptions returns the XCGT dependent stream for seq: same length as seq,
// 0 for an exact uppercase A/C/G/T, 1 for a lowercase a/c/g/t, or the
// original byte itself for anything else (IUPAC ambiguity codes, N,
// whitespace, ...), marking a position the 2-bit packing cannot represent
// exactly.
func Exceptions(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, b := range seq {
		out[i] = b ^ acgtExceptions[b]
	}

	return out
}

// Reconstruct rebuilds the original ASCII sequence from 2-bit codes (as
// produced by Unpack) and their correlated exception stream (as produced by
// Exceptions): an exception byte of 0 or 1 selects the upper/lowercase form
// of codes[i]'s base; any other exception byte is emitted verbatim,
// overriding the packed code entirely.
func Reconstruct(codes, exceptions []byte) []byte {
	out := make([]byte, len(codes))
	for i, c := range codes {
		switch exceptions[i] {
		case 0:
			out[i] = bases[c]
		case 1:
			out[i] = lowerBases[c]
		default:
			out[i] = exceptions[i]
		}
	}

	return out
}

// Pair is the result of compressing one SEQ payload: the 2-bit-packed
// primary stream and its correlated XCGT exception stream, which the caller
// persists as two sections (LOCAL with lcodec=ACGT, and a dependent LOCAL
// with subcodec=XCGT per §4.7) sharing NumBases.
type Pair struct {
	Packed     []byte
	Exceptions []byte
	NumBases   int
}

// Codec implements the compound compress/decompress pair for nucleotide
// sequence data; unlike codec.Codec it operates on full sequences, not
// arbitrary byte payloads, since packing requires knowing the base count
// rather than just an opaque stream.
type Codec struct{}

// CompressSeq packs seq and computes its exception stream in one pass.
func (Codec) CompressSeq(seq []byte) Pair {
	return Pair{
		Packed:     Pack(seq),
		Exceptions: Exceptions(seq),
		NumBases:   len(seq),
	}
}

// DecompressSeq is the inverse of CompressSeq.
func (Codec) DecompressSeq(p Pair) []byte {
	return Reconstruct(Unpack(p.Packed, p.NumBases), p.Exceptions)
}
