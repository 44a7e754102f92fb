// Package dictid implements the 8-byte packed dictionary identifier used to
// name every context in a z-file.
//
// A DictId is formed by taking up to 8 characters of a field's name (VCF
// CHROM, SAM FLAG, the FORMAT subfield "DP", ...) and packing them into a
// little-endian uint64 view, with the top two bits of the first byte
// repurposed to tag the field's class. Two fields with the same 8-character
// prefix share a dictionary (and therefore a context) — this is a deliberate
// and documented collision in the original format, not a bug.
package dictid

import (
	"encoding/base64"

	"github.com/arloliu/gnzcore/errs"
)

// Len is the fixed byte length of a DictId, matching dict_id.h's DICT_ID_LEN.
const Len = 8

// Class tags the field kind encoded in the top two bits of id[0].
type Class uint8

const (
	// ClassField is a primary record field (VCF CHROM/POS/REF/ALT, SAM FLAG, ...).
	ClassField Class = 0 // id[0] >> 6 == 0b00
	// ClassFormatSubfield is a VCF FORMAT / SAM optional-tag subfield.
	ClassFormatSubfield Class = 1 // id[0] >> 6 == 0b01
	// ClassInfoSubfield is a VCF INFO / SAM QNAME subfield.
	ClassInfoSubfield Class = 3 // id[0] >> 6 == 0b11
)

// DictId is the packed 8-byte identifier. Equality is via the plain uint64
// view (Num); it is NOT byte-order sensitive in the way a wire integer is —
// it is simply 8 raw bytes reinterpreted, matching the original's union of
// {uint64 num; uint8 id[8]}.
type DictId struct {
	id [Len]byte
}

// Make packs up to Len bytes of name into a DictId. Names longer than Len
// are truncated to their first Len bytes (two fields sharing an 8-character
// prefix deliberately collide onto one dictionary, per §3 of the spec).
func Make(name string) DictId {
	var d DictId
	n := copy(d.id[:], name)
	_ = n

	return d
}

// Num returns the raw 8-byte identifier reinterpreted as a little-endian
// uint64, used for fast map-key comparisons.
func (d DictId) Num() uint64 {
	var n uint64
	for i := Len - 1; i >= 0; i-- {
		n = (n << 8) | uint64(d.id[i])
	}

	return n
}

// Bytes returns the raw 8-byte identifier.
func (d DictId) Bytes() [Len]byte {
	return d.id
}

// FromBytes rebuilds a DictId from its raw 8-byte form, the inverse of
// Bytes. Used by binary decoders (container items, section list entries)
// that store a DictId as a fixed 8-byte field rather than base64 text.
func FromBytes(b [Len]byte) DictId {
	return DictId{id: b}
}

// Class returns the field class tagged in the top two bits of the first byte.
func (d DictId) Class() Class {
	return Class(d.id[0] >> 6)
}

// WithClass returns a copy of d with its class bits set to c, leaving the
// remaining 6 bits of id[0] and all of id[1:] untouched.
func (d DictId) WithClass(c Class) DictId {
	out := d
	out.id[0] = (out.id[0] & 0x3f) | (byte(c) << 6)

	return out
}

// IsField reports whether d names a primary record field.
func (d DictId) IsField() bool { return d.Class() == ClassField }

// IsInfoSubfield reports whether d names a VCF INFO / SAM QNAME subfield.
func (d DictId) IsInfoSubfield() bool { return d.Class() == ClassInfoSubfield }

// IsFormatSubfield reports whether d names a VCF FORMAT / SAM optional-tag subfield.
func (d DictId) IsFormatSubfield() bool { return d.Class() == ClassFormatSubfield }

// Printable returns a copy of d guaranteed to be ASCII-printable in its
// first byte: it clears bit 7 and sets bit 6, i.e. (id[0] & 0x7f) | 0x40,
// mirroring dict_id_printable in the original dict_id.h. This is used only
// for display/debug — it is a distinct value from d and must not be used as
// a dictionary lookup key.
func (d DictId) Printable() DictId {
	out := d
	out.id[0] = (out.id[0] & 0x7f) | 0x40

	return out
}

// String renders the printable form, trimming trailing NUL padding.
func (d DictId) String() string {
	p := d.Printable()
	n := Len
	for n > 0 && p.id[n-1] == 0 {
		n--
	}

	return string(p.id[:n])
}

// Base64 encodes the raw 8 bytes of d as the 11-byte base64 form embedded in
// snip payloads that reference another context (§6 "Snip wire format").
//
// This is plain base64.RawStdEncoding; use EncodeSuffixed when the embedding
// snip also needs a small suffix value.
func (d DictId) Base64() string {
	return base64.RawStdEncoding.EncodeToString(d.id[:])
}

// ParseBase64 decodes the 11-byte base64 form produced by Base64 back into a DictId.
func ParseBase64(s string) (DictId, error) {
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil || len(raw) != Len {
		return DictId{}, errs.ErrInvalidDictIDBase64
	}

	var d DictId
	copy(d.id[:], raw)

	return d, nil
}

// suffixBits is the number of low bits of the trailing base64 character that
// are unused by the 64 bits of a DictId (11 chars * 6 bits = 66 bits, 64 of
// which carry the id, leaving 2 spare low bits in the last char). §6 of the
// spec exploits exactly these spare bits to carry a short suffix instead of
// always padding them with zero.
const suffixBits = 2

// EncodeSuffixed encodes d the same way as Base64, but packs a small suffix
// (0..3) into the otherwise-zero low bits of the trailing character. This is
// how OTHER_LOOKUP/OTHER_DELTA/REDIRECTION snips distinguish, e.g., a plain
// context reference from a same-context-but-different-sample-index variant
// without spending an extra payload byte.
func EncodeSuffixed(d DictId, suffix uint8) string {
	enc := base64.RawStdEncoding.EncodeToString(d.id[:])
	if suffix == 0 {
		return enc
	}

	last := []byte(enc)
	idx := int(stdAlphabetIndex(last[len(last)-1]))
	idx |= int(suffix&((1<<suffixBits)-1))
	last[len(last)-1] = stdAlphabetChar(idx)

	return string(last)
}

// DecodeSuffixed is the inverse of EncodeSuffixed: it returns the DictId and
// the suffix packed into the trailing character's spare low bits.
func DecodeSuffixed(s string) (DictId, uint8, error) {
	if len(s) == 0 {
		return DictId{}, 0, errs.ErrInvalidDictIDBase64
	}

	raw := []byte(s)
	suffix := stdAlphabetIndex(raw[len(raw)-1]) & ((1 << suffixBits) - 1)
	raw[len(raw)-1] = stdAlphabetChar(int(stdAlphabetIndex(raw[len(raw)-1])) &^ ((1 << suffixBits) - 1))

	d, err := ParseBase64(string(raw))
	if err != nil {
		return DictId{}, 0, err
	}

	return d, suffix, nil
}

const stdAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func stdAlphabetIndex(c byte) uint8 {
	for i := 0; i < len(stdAlphabet); i++ {
		if stdAlphabet[i] == c {
			return uint8(i)
		}
	}

	return 0
}

func stdAlphabetChar(idx int) byte {
	return stdAlphabet[idx&0x3f]
}
