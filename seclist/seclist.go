// Package seclist implements the z-file's section list (§4.9): the ordered
// table of contents of every section written to disk. It is built per-VB
// with VB-relative offsets, concatenated by the writer, which assigns
// absolute offsets (seclist itself takes no lock and resolves no offsets),
// written last, and read first by a reader before anything else in the file.
package seclist

import (
	"encoding/binary"

	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/errs"
)

// SectionType names one of the section kinds listed in the file-format
// external interface (§6): TXT_HEADER, VB_HEADER, DICT, B250, LOCAL, and so
// on. Only the handful that seclist itself needs to special-case are named;
// everything else round-trips opaquely through Other.
type SectionType uint8

const (
	Other SectionType = iota
	TxtHeader
	VBHeader
	Dict
	B250
	Local
	Counts
	SubDicts
	Huffman
	ReconPlan
)

// CompNone marks a section that does not belong to any text-file component
// (e.g. REFERENCE, GENOZIP_HEADER), mirroring genozip's COMP_NONE sentinel.
const CompNone = -1

// dictedTypes are the section kinds whose SectionEnt.DictID field is
// meaningful (sections.c's IS_DICTED_SEC): dictionary, b250, local and the
// per-context auxiliary sections. Every other type stores NumLines in the
// same union slot instead.
var dictedTypes = map[SectionType]bool{
	Dict:     true,
	B250:     true,
	Local:    true,
	Counts:   true,
	SubDicts: true,
	Huffman:  true,
}

// IsDicted reports whether sections of type st carry a DictId.
func IsDicted(st SectionType) bool { return dictedTypes[st] }

// SectionEnt is one entry of the in-memory section list: the absolute byte
// offset and size of a section, which VB and component it belongs to, its
// type, and — depending on type — either the dictionary it names or the
// running line count of the VB header it belongs to (the two share a slot
// on disk exactly as they do in the original union).
type SectionEnt struct {
	Offset   int64
	Size     int64
	VBlockI  int32 // 0 for non-VB sections (TXT_HEADER, REFERENCE, ...)
	CompI    int32 // CompNone for sections outside any component
	Type     SectionType
	DictID   dictid.DictId // meaningful iff IsDicted(Type)
	NumLines int32         // meaningful iff Type == VBHeader
	Flags    byte
}

// SectionList is the full ordered table of contents plus the three indexes
// described in §4.9: by vblock_i (header/last section), by comp_i (header,
// bgzf, recon-plan, first/last vb, vb-count, vb linked list), and by section
// type (first/last occurrence, for accelerated type-filtered iteration).
type SectionList struct {
	Entries []SectionEnt

	byVB   map[int32]vbIndex
	byComp map[int32]*compIndex
	byType map[SectionType]typeIndex
}

type vbIndex struct {
	HeaderIdx int
	LastIdx   int
}

type typeIndex struct {
	FirstIdx int
	LastIdx  int
}

// compIndex mirrors SectionsCompIndexEnt: per-component anchors plus the
// vb_i linked list threaded through NextVB, used to walk a component's VBs
// in file order without rescanning the whole list.
type compIndex struct {
	TxtHeaderIdx  int
	BgzfIdx       int
	ReconPlanIdx  int
	FirstVB       int32
	LastVB        int32
	NumVBs        int32
	NextVB        map[int32]int32 // vb_i -> next vb_i in this component, -1 if last
}

// New returns an empty SectionList ready for Append.
func New() *SectionList {
	return &SectionList{
		byVB:   make(map[int32]vbIndex),
		byComp: make(map[int32]*compIndex),
		byType: make(map[SectionType]typeIndex),
	}
}

// Append records one more section at the end of the list and threads it
// into all three indexes. Offsets must already be absolute; seclist does
// not itself resolve VB-relative offsets (that is the writer's job, done
// once under the writer lock per §5's locking discipline).
func (sl *SectionList) Append(e SectionEnt) {
	idx := len(sl.Entries)
	sl.Entries = append(sl.Entries, e)

	if e.VBlockI > 0 {
		vi := sl.byVB[e.VBlockI]
		if e.Type == VBHeader {
			vi.HeaderIdx = idx
		}
		vi.LastIdx = idx
		sl.byVB[e.VBlockI] = vi
	}

	if e.CompI != CompNone {
		ci, ok := sl.byComp[e.CompI]
		if !ok {
			ci = &compIndex{TxtHeaderIdx: -1, BgzfIdx: -1, ReconPlanIdx: -1, NextVB: map[int32]int32{}}
			sl.byComp[e.CompI] = ci
		}

		switch e.Type {
		case TxtHeader:
			if ci.TxtHeaderIdx == -1 {
				ci.TxtHeaderIdx = idx
			}
		case ReconPlan:
			ci.ReconPlanIdx = idx
		case VBHeader:
			ci.NextVB[e.VBlockI] = -1
			if ci.FirstVB == 0 {
				ci.FirstVB = e.VBlockI
			} else {
				ci.NextVB[ci.LastVB] = e.VBlockI
			}
			ci.LastVB = e.VBlockI
			ci.NumVBs++
		}
	}

	ti, ok := sl.byType[e.Type]
	if !ok {
		ti.FirstIdx = idx
	}
	ti.LastIdx = idx
	sl.byType[e.Type] = ti
}

// VBHeaderSection returns the VB_HEADER entry for vbI, or ok=false if vbI
// was never indexed.
func (sl *SectionList) VBHeaderSection(vbI int32) (SectionEnt, bool) {
	vi, ok := sl.byVB[vbI]
	if !ok {
		return SectionEnt{}, false
	}

	return sl.Entries[vi.HeaderIdx], true
}

// VBLastSection returns the last section belonging to vbI (its trailing
// LOCAL/B250 section, typically), or ok=false if vbI was never indexed.
func (sl *SectionList) VBLastSection(vbI int32) (SectionEnt, bool) {
	vi, ok := sl.byVB[vbI]
	if !ok {
		return SectionEnt{}, false
	}

	return sl.Entries[vi.LastIdx], true
}

// NextVB returns the next vb_i after vbI within the same component, in the
// order VBs were appended to this list (not necessarily consecutive vb_i
// values), or ok=false if vbI is the component's last VB or unknown.
func (sl *SectionList) NextVB(compI, vbI int32) (int32, bool) {
	ci, ok := sl.byComp[compI]
	if !ok {
		return 0, false
	}
	next, ok := ci.NextVB[vbI]
	if !ok || next == -1 {
		return 0, false
	}

	return next, true
}

// ComponentVBCount returns how many VBs belong to compI.
func (sl *SectionList) ComponentVBCount(compI int32) int32 {
	ci, ok := sl.byComp[compI]
	if !ok {
		return 0
	}

	return ci.NumVBs
}

// FirstOfType returns the first entry of type st in the list, or ok=false
// if no such section exists.
func (sl *SectionList) FirstOfType(st SectionType) (SectionEnt, bool) {
	ti, ok := sl.byType[st]
	if !ok {
		return SectionEnt{}, false
	}

	return sl.Entries[ti.FirstIdx], true
}

// LastOfType returns the last entry of type st in the list, or ok=false if
// no such section exists.
func (sl *SectionList) LastOfType(st SectionType) (SectionEnt, bool) {
	ti, ok := sl.byType[st]
	if !ok {
		return SectionEnt{}, false
	}

	return sl.Entries[ti.LastIdx], true
}

// Encode serializes sl into the delta/interlace wire form described in
// §4.9. Across all dict-carrying entries, whatever their section type, only
// the first occurrence of a dict_id carries its full 8 bytes; later
// occurrences carry a 4-byte back-reference to that first entry's position
// in the list.
func (sl *SectionList) Encode() []byte {
	out := make([]byte, 0, len(sl.Entries)*24)

	firstOccurrence := make(map[dictid.DictId]int)
	var prevOffset int64
	var prevVBlockI int32
	var prevCompI int32 = CompNone
	var prevNumLines int32

	for i, e := range sl.Entries {
		offsetDelta := e.Offset - prevOffset
		out = binary.AppendUvarint(out, uint64(offsetDelta))
		prevOffset = e.Offset

		out = binary.AppendUvarint(out, interlace32(e.VBlockI-prevVBlockI))
		prevVBlockI = e.VBlockI

		if e.CompI == prevCompI {
			out = binary.AppendUvarint(out, 0)
		} else {
			out = binary.AppendUvarint(out, uint64(e.CompI)+2) // +2: reserve 0=same, 1=CompNone
			prevCompI = e.CompI
		}

		out = append(out, byte(e.Type))
		out = append(out, e.Flags)
		out = binary.AppendUvarint(out, uint64(e.Size))

		if IsDicted(e.Type) {
			if first, ok := firstOccurrence[e.DictID]; ok {
				out = append(out, 0) // marker: back-reference follows
				var idxBuf [4]byte
				binary.BigEndian.PutUint32(idxBuf[:], uint32(first))
				out = append(out, idxBuf[:]...)
			} else {
				firstOccurrence[e.DictID] = i
				out = append(out, 1) // marker: full id follows
				b := e.DictID.Bytes()
				out = append(out, b[:]...)
			}
		} else if e.Type == VBHeader {
			out = binary.AppendUvarint(out, interlace32(e.NumLines-prevNumLines))
			prevNumLines = e.NumLines
		}
	}

	return out
}

// Decode is the inverse of Encode: it rebuilds a fully indexed SectionList
// from its wire form. Offsets and the dict-id back-references in data are
// expected to be absolute / list-relative respectively, exactly as Encode
// produces them.
func Decode(data []byte) (*SectionList, error) {
	sl := New()

	var prevOffset int64
	var prevVBlockI int32
	var prevCompI int32 = CompNone
	var prevNumLines int32

	off := 0
	for off < len(data) {
		offsetDelta, n, err := readUvarint(data, off)
		if err != nil {
			return nil, err
		}
		off += n
		prevOffset += int64(offsetDelta)

		vbDelta, n, err := readUvarint(data, off)
		if err != nil {
			return nil, err
		}
		off += n
		prevVBlockI += deinterlace32(vbDelta)

		compTag, n, err := readUvarint(data, off)
		if err != nil {
			return nil, err
		}
		off += n
		if compTag != 0 {
			prevCompI = int32(compTag) - 2
		}

		if off >= len(data) {
			return nil, errs.ErrInvalidSectionList
		}
		st := SectionType(data[off])
		off++

		if off >= len(data) {
			return nil, errs.ErrInvalidSectionList
		}
		flags := data[off]
		off++

		size, n, err := readUvarint(data, off)
		if err != nil {
			return nil, err
		}
		off += n

		e := SectionEnt{
			Offset:  prevOffset,
			Size:    int64(size),
			VBlockI: prevVBlockI,
			CompI:   prevCompI,
			Type:    st,
			Flags:   flags,
		}

		if IsDicted(st) {
			if off >= len(data) {
				return nil, errs.ErrInvalidSectionList
			}
			marker := data[off]
			off++

			switch marker {
			case 1:
				if off+8 > len(data) {
					return nil, errs.ErrInvalidSectionList
				}
				var b [8]byte
				copy(b[:], data[off:off+8])
				off += 8
				e.DictID = dictid.FromBytes(b)
			case 0:
				if off+4 > len(data) {
					return nil, errs.ErrInvalidSectionList
				}
				firstIdx := int(binary.BigEndian.Uint32(data[off : off+4]))
				off += 4
				if firstIdx < 0 || firstIdx >= len(sl.Entries) {
					return nil, errs.ErrDictIDIndexOutOfRange
				}
				e.DictID = sl.Entries[firstIdx].DictID
			default:
				return nil, errs.ErrInvalidSectionList
			}
		} else if st == VBHeader {
			delta, n, err := readUvarint(data, off)
			if err != nil {
				return nil, err
			}
			off += n
			prevNumLines += deinterlace32(delta)
			e.NumLines = prevNumLines
		}

		sl.Append(e)
	}

	return sl, nil
}

func readUvarint(data []byte, off int) (uint64, int, error) {
	v, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return 0, 0, errs.ErrInvalidSectionList
	}

	return v, n, nil
}

// interlace32 zigzag-encodes a signed delta so small negative and small
// positive values both produce small unsigned varints (mirrors genozip's
// INTERLACE macro used for vblock_i_delta and num_lines_delta in §4.9).
func interlace32(v int32) uint64 {
	return uint64(uint32((v << 1) ^ (v >> 31)))
}

// deinterlace32 is the inverse of interlace32.
func deinterlace32(u uint64) int32 {
	v := uint32(u)

	return int32(v>>1) ^ -int32(v&1)
}
