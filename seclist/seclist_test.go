package seclist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/gnzcore/dictid"
)

func sample() *SectionList {
	sl := New()
	chromID := dictid.Make("CHROM")
	posID := dictid.Make("POS")

	sl.Append(SectionEnt{Offset: 0, Size: 100, CompI: CompNone, Type: TxtHeader})
	sl.Append(SectionEnt{Offset: 100, Size: 40, VBlockI: 1, CompI: 0, Type: VBHeader, NumLines: 1000})
	sl.Append(SectionEnt{Offset: 140, Size: 30, VBlockI: 1, CompI: 0, Type: Dict, DictID: chromID})
	sl.Append(SectionEnt{Offset: 170, Size: 20, VBlockI: 1, CompI: 0, Type: B250, DictID: chromID})
	sl.Append(SectionEnt{Offset: 190, Size: 25, VBlockI: 1, CompI: 0, Type: Dict, DictID: posID})
	sl.Append(SectionEnt{Offset: 215, Size: 50, VBlockI: 2, CompI: 0, Type: VBHeader, NumLines: 850})
	sl.Append(SectionEnt{Offset: 265, Size: 20, VBlockI: 2, CompI: 0, Type: B250, DictID: chromID})

	return sl
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	sl := sample()

	decoded, err := Decode(sl.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Entries, len(sl.Entries))

	for i, want := range sl.Entries {
		got := decoded.Entries[i]
		assert.Equal(t, want.Offset, got.Offset, "entry %d offset", i)
		assert.Equal(t, want.Size, got.Size, "entry %d size", i)
		assert.Equal(t, want.VBlockI, got.VBlockI, "entry %d vblock_i", i)
		assert.Equal(t, want.CompI, got.CompI, "entry %d comp_i", i)
		assert.Equal(t, want.Type, got.Type, "entry %d type", i)
		if IsDicted(want.Type) {
			assert.Equal(t, want.DictID, got.DictID, "entry %d dict_id", i)
		}
		if want.Type == VBHeader {
			assert.Equal(t, want.NumLines, got.NumLines, "entry %d num_lines", i)
		}
	}
}

func TestEncode_SecondOccurrenceOfDictIDIsBackReferenced(t *testing.T) {
	sl := sample()
	encoded := sl.Encode()

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	// entries 2 and 6 both name CHROM; the decoded copy must still compare
	// equal even though only entry 2 carried the full 8 bytes on the wire.
	assert.Equal(t, decoded.Entries[2].DictID, decoded.Entries[6].DictID)
}

func TestVBHeaderSection_AndVBLastSection(t *testing.T) {
	sl := sample()

	hdr, ok := sl.VBHeaderSection(1)
	require.True(t, ok)
	assert.Equal(t, int64(100), hdr.Offset)

	last, ok := sl.VBLastSection(1)
	require.True(t, ok)
	assert.Equal(t, int64(190), last.Offset)

	_, ok = sl.VBHeaderSection(99)
	assert.False(t, ok)
}

func TestNextVB_WalksLinkedListInAppendOrder(t *testing.T) {
	sl := sample()

	next, ok := sl.NextVB(0, 1)
	require.True(t, ok)
	assert.Equal(t, int32(2), next)

	_, ok = sl.NextVB(0, 2)
	assert.False(t, ok, "vb_i 2 is the last VB of component 0")

	assert.Equal(t, int32(2), sl.ComponentVBCount(0))
}

func TestFirstOfType_AndLastOfType(t *testing.T) {
	sl := sample()

	first, ok := sl.FirstOfType(B250)
	require.True(t, ok)
	assert.Equal(t, int64(170), first.Offset)

	last, ok := sl.LastOfType(B250)
	require.True(t, ok)
	assert.Equal(t, int64(265), last.Offset)

	_, ok = sl.FirstOfType(Huffman)
	assert.False(t, ok)
}

func TestInterlace_RoundTripsSignedDeltas(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 1000, -1000, 1 << 20, -(1 << 20)} {
		assert.Equal(t, v, deinterlace32(interlace32(v)), "value %d", v)
	}
}

func TestDecode_TruncatedInputReturnsError(t *testing.T) {
	sl := sample()
	encoded := sl.Encode()

	_, err := Decode(encoded[:len(encoded)-1])
	require.Error(t, err)
}

func TestDecode_EmptyListRoundTrips(t *testing.T) {
	sl := New()
	decoded, err := Decode(sl.Encode())
	require.NoError(t, err)
	assert.Empty(t, decoded.Entries)
}
