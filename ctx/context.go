// Package ctx implements the per-variable-block context: the named stream of
// dict/b250/local arrays, flags, and per-line registers described in §3 and
// §4.1 of the specification, plus the append/rollback primitives Seg uses to
// build them and the cursor state Piz uses to walk them back out.
package ctx

import (
	"math"

	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/endian"
	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/internal/hash"
	"github.com/arloliu/gnzcore/internal/pool"
	"github.com/arloliu/gnzcore/ltype"
)

// Word index sentinels. MISSING/EMPTY never appear as a byte offset into
// dict; ONE_UP only ever appears on the wire (§4.1) and is resolved to a
// concrete index by the b250 codec before reaching this package.
//
// localLookup is a third, gnzcore-internal sentinel distinct from both: it
// marks a b250 entry produced by append_integer/append_float/
// append_text_to_local, whose snip content is implicitly a bare LOOKUP
// opcode. The original engine interns that single LOOKUP byte into dict
// like any other snip and so never needs a third value; gnzcore skips that
// interning as a pure allocation optimization (every numeric/text column
// would otherwise dedup to the exact same one-byte dict entry anyway), but
// that shortcut only stays correct if "implicit LOOKUP" cannot collide with
// a real EMPTY/MISSING snip on the wire - hence the distinct value.
const (
	Empty       int32 = -1
	Missing     int32 = -2
	localLookup int32 = -3
)

// Store selects what, if anything, reconstruction should remember in
// LastValue after processing a snip for this context (§3 Context.flags).
type Store uint8

const (
	StoreNone Store = iota
	StoreInt
	StoreFloat
	StoreIndex
)

// Flags mirrors the packed flags field of §3's Context data model.
type Flags struct {
	Store        Store
	StorePerLine bool // last_value is meaningful after every line, not just at VB end
	StoreDelta   bool // last_delta is meaningful
	Paired       bool // context has an R1 counterpart (FASTQ --pair, §5)
	AllTheSame   bool // every b250 entry is the same word index
	SplCustom    bool // a SPECIAL handler owns non-standard reconstruction

	// RenderLuft selects which of a DUAL snip's two sub-snips reconstruction
	// emits: primary coordinates (false) or rejected/"luft" coordinates
	// (true), per the VB-wide --luft render flag (§4.2 DUAL, §5 flags). This
	// is unrelated to Paired, which distinguishes FASTQ R1/R2 mates - a
	// paired FASTQ context can be reconstructed in either coordinate system,
	// and a DUAL-coordinates VCF context is never R1/R2 paired.
	RenderLuft bool
}

// Value is the tagged union backing Context.LastValue: last_value.i is valid
// iff Store == StoreInt and the snip that set it was integer-shaped; the
// float arm is analogous for StoreFloat. Holding both in one struct instead
// of an interface{} keeps append_integer/append_float allocation-free.
type Value struct {
	I int64
	F float64
}

// TxtRef locates a run of bytes already written to a VB's txt_data output
// buffer, as recorded in Context.LastTxt by COPY/DIFF base contexts.
type TxtRef struct {
	Index int
	Len   int
}

// snipEntry records where one interned snip lives in dict, for word-index -> bytes lookups.
type snipEntry struct {
	offset int
	length int
}

// savepoint is the state append_snip-family rollback restores to, captured
// by Save and consumed by Rollback. It exists so a container parser that
// fails partway through a record can undo everything it appended to this
// context and re-segment the raw bytes under a different strategy.
type savepoint struct {
	dictLen       int
	b250Len       int
	localLen      int
	entriesLen    int
	singletons    int
	numericOnly   bool
	lastValue     Value
	lastDelta     int64
	lastDeltaSet  bool
	lastTxt       TxtRef
}

// Context holds one named stream's dict/b250/local arrays and the
// reconstruction registers that ride alongside them, for exactly one VB. A
// z-file-wide aggregate (global dict, persisted best-codec choice) is merged
// in from many VB-local Contexts at VB-completion time by the caller; that
// merge step lives outside this package (§5 "per-context in-zfile state").
type Context struct {
	DictID dictid.DictId
	DidI   int

	dict    *pool.ByteBuffer // concatenated snips, NUL-separated, in word-index order
	entries []snipEntry      // word index -> (offset, length) into dict
	byHash  map[uint64][]int32

	b250  []int32
	local *pool.ByteBuffer

	LType ltype.LType
	Flags Flags

	LastValue                    Value
	LastDelta                    int64
	lastDeltaSet                 bool
	LastTxt                      TxtRef
	LastLineI                    int
	LastEncounterWasReconstructed bool

	// NextLocal is the read cursor into local during reconstruction.
	NextLocal int

	// NextB250 is the read cursor into b250 during reconstruction: the
	// container engine advances it by one per repeat per item, the same way
	// NextLocal advances per LOOKUP (§4.1, §4.3).
	NextB250 int

	singletonCount int
	numericOnly    bool // true iff every b250 entry so far came from append_integer

	// ConCache memoizes, per VB, containers and sibling context lookups this
	// context's CONTAINER snips have already resolved. Keyed by word index.
	// The container package populates it; ctx only owns the map's lifetime.
	ConCache map[int32]any

	// Lookback is non-nil when this context also serves as a lookback ring
	// (§4.5); owned and written by the lookback package.
	Lookback any
}

// New creates an empty Context for the given dictionary id and did_i,
// writing to freshly pooled dict/local buffers.
func New(id dictid.DictId, didI int, lt ltype.LType) *Context {
	return &Context{
		DictID:   id,
		DidI:     didI,
		LType:    lt,
		dict:     pool.GetContextBuffer(),
		local:    pool.GetContextBuffer(),
		byHash:   make(map[uint64][]int32),
		ConCache: make(map[int32]any),
	}
}

// Release returns the context's pooled buffers. The Context must not be used afterward.
func (c *Context) Release() {
	pool.PutContextBuffer(c.dict)
	pool.PutContextBuffer(c.local)
}

// Dict returns the raw, NUL-separated dictionary bytes in word-index order.
func (c *Context) Dict() []byte { return c.dict.Bytes() }

// Local returns the raw local buffer.
func (c *Context) Local() []byte { return c.local.Bytes() }

// B250 returns the word-index stream.
func (c *Context) B250() []int32 { return c.b250 }

// NumSnips returns the number of distinct snips interned in dict so far.
func (c *Context) NumSnips() int { return len(c.entries) }

// NextWordIndex returns the next unconsumed b250 entry and advances
// NextB250 past it. Used by the container engine to pull exactly one child
// snip per item per repeat (§4.3).
func (c *Context) NextWordIndex() (int32, error) {
	if c.NextB250 >= len(c.b250) {
		return 0, errs.ErrWordIndexOutOfRange
	}
	wi := c.b250[c.NextB250]
	c.NextB250++

	return wi, nil
}

// NumericOnly reports whether every b250 entry appended so far came from
// append_integer, i.e. the context never fell back to a dictionary snip.
func (c *Context) NumericOnly() bool { return c.numericOnly }

// SnipAt returns the bytes of the interned snip at the given word index.
// Returns ErrWordIndexOutOfRange if idx is not in [0, NumSnips).
func (c *Context) SnipAt(idx int32) ([]byte, error) {
	if idx < 0 || int(idx) >= len(c.entries) {
		return nil, errs.ErrWordIndexOutOfRange
	}
	e := c.entries[idx]

	return c.dict.Bytes()[e.offset : e.offset+e.length], nil
}

// Save captures a rollback point before a speculative append sequence.
func (c *Context) Save() savepoint {
	return savepoint{
		dictLen:      c.dict.Len(),
		b250Len:      len(c.b250),
		localLen:     c.local.Len(),
		entriesLen:   len(c.entries),
		singletons:   c.singletonCount,
		numericOnly:  c.numericOnly,
		lastValue:    c.LastValue,
		lastDelta:    c.LastDelta,
		lastDeltaSet: c.lastDeltaSet,
		lastTxt:      c.LastTxt,
	}
}

// Rollback restores the context to the state captured by Save, undoing every
// append_snip/append_integer/append_float/append_text_to_local call made
// since. Word indices handed out after the savepoint are invalidated; the
// caller must not have leaked them into another context's b250.
func (c *Context) Rollback(sp savepoint) {
	c.dict.SetLength(sp.dictLen)
	c.b250 = c.b250[:sp.b250Len]
	c.local.SetLength(sp.localLen)

	for i := sp.entriesLen; i < len(c.entries); i++ {
		e := c.entries[i]
		key := hashOf(c.dict.Bytes()[e.offset : e.offset+e.length])
		c.byHash[key] = removeIndex(c.byHash[key], int32(i))
	}
	c.entries = c.entries[:sp.entriesLen]

	c.singletonCount = sp.singletons
	c.numericOnly = sp.numericOnly
	c.LastValue = sp.lastValue
	c.LastDelta = sp.lastDelta
	c.lastDeltaSet = sp.lastDeltaSet
	c.LastTxt = sp.lastTxt
}

func removeIndex(s []int32, v int32) []int32 {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}

	return s
}

func hashOf(b []byte) uint64 { return hash.Snip(b) }

// intern finds or creates a dict entry for data, returning its stable word
// index. Equal byte content always maps to the same index within a VB.
func (c *Context) intern(data []byte) int32 {
	key := hashOf(data)
	for _, idx := range c.byHash[key] {
		e := c.entries[idx]
		if e.length == len(data) && bytesEqual(c.dict.Bytes()[e.offset:e.offset+e.length], data) {
			return idx
		}
	}

	offset := c.dict.Len()
	c.dict.ExtendOrGrow(len(data) + 1) // +1 for the NUL separator
	buf := c.dict.Bytes()
	copy(buf[offset:], data)
	buf[offset+len(data)] = 0

	idx := int32(len(c.entries))
	c.entries = append(c.entries, snipEntry{offset: offset, length: len(data)})
	c.byHash[key] = append(c.byHash[key], idx)

	return idx
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// AppendSnip interns bytes in the dictionary (deduplicating identical
// content within the VB) and appends the resulting word index to b250.
// addBytes is added to the context's accounted reconstructed-size counter
// (tracked by the caller, typically a VB-wide stats accumulator); gnzcore
// exposes it via the return value rather than a hidden side counter so
// callers can batch the accounting however they see fit.
//
// A snip consisting of exactly one LOOKUP opcode byte is a singleton
// candidate: the first time such bytes are interned, the singleton counter
// is incremented, in case the caller later wants to demote it into local
// text instead of paying per-VB dictionary overhead for a word used once.
func (c *Context) AppendSnip(data []byte) (wordIndex int32, addBytes int) {
	before := len(c.entries)
	idx := c.intern(data)
	if int(idx) >= before && isSingletonLookup(data) {
		c.singletonCount++
	}
	c.b250 = append(c.b250, idx)
	c.numericOnly = false

	return idx, len(data)
}

func isSingletonLookup(data []byte) bool {
	return len(data) == 1 && data[0] == lookupOpcode
}

// lookupOpcode mirrors snip.Lookup without importing the snip package
// (which imports ctx), avoiding an import cycle; both packages agree on the
// numeric value by construction (see snip.Lookup's doc comment).
const lookupOpcode = 0

// AppendKnownIndex appends an already-resolved word index to b250 without
// touching the dictionary — the "same as previous" fast path used when Seg
// already knows the index (e.g. ONE_UP chains).
func (c *Context) AppendKnownIndex(wordIndex int32, addBytes int) {
	c.b250 = append(c.b250, wordIndex)
	c.numericOnly = false
}

// AppendInteger appends value to local in the width/signedness/endianness
// implied by c.LType, and appends a LOOKUP word index to b250.
// numeric_only stays true only as long as every b250 entry has been this form.
func (c *Context) AppendInteger(engine endian.EndianEngine, value int64) {
	width := c.LType.Width()
	if width == 0 {
		width = 8
	}
	start := c.local.Len()
	c.local.ExtendOrGrow(width)
	buf := c.local.Bytes()[start : start+width]

	switch width {
	case 1:
		buf[0] = byte(value)
	case 2:
		engine.PutUint16(buf, uint16(value))
	case 4:
		engine.PutUint32(buf, uint32(value))
	case 8:
		engine.PutUint64(buf, uint64(value))
	}

	if len(c.b250) == 0 {
		c.numericOnly = true
	}
	c.b250 = append(c.b250, lookupWordIndexSentinel)

	c.LastValue.I = value
	c.Flags.Store = StoreInt
}

// lookupWordIndexSentinel is the b250 value recorded for entries whose data
// lives in local rather than dict: reconstruction always re-derives the
// bytes via a LOOKUP snip, so the exact word index value is never consulted
// for equality - only its presence as "this is a LOOKUP-backed entry" is.
const lookupWordIndexSentinel = localLookup

// IsLocalLookup reports whether a b250 entry (as returned by B250) is the
// implicit-LOOKUP sentinel append_integer/append_float/append_text_to_local
// produce, as opposed to a real dictionary word index or an EMPTY/MISSING
// wire sentinel. The snip package uses this to route reconstruction without
// a dict lookup.
func IsLocalLookup(wordIndex int32) bool { return wordIndex == localLookup }

// AppendFloat appends value to local as float32/float64 per c.LType. The
// format template used to re-render the original ASCII (width, trailing
// zero handling, exponent form) is the caller's responsibility to capture in
// the snip it also appends - AppendFloat only owns the local payload.
func (c *Context) AppendFloat(engine endian.EndianEngine, value float64) {
	start := c.local.Len()
	if c.LType == ltype.Float32 {
		c.local.ExtendOrGrow(4)
		engine.PutUint32(c.local.Bytes()[start:start+4], math.Float32bits(float32(value)))
	} else {
		c.local.ExtendOrGrow(8)
		engine.PutUint64(c.local.Bytes()[start:start+8], math.Float64bits(value))
	}
	c.b250 = append(c.b250, lookupWordIndexSentinel)
	c.numericOnly = false
	c.LastValue.F = value
	c.Flags.Store = StoreFloat
}

// AppendTextToLocal pushes a NUL-terminated string to local and a LOOKUP
// word index to b250 - the path used for per-line free text that doesn't
// benefit from dictionary dedup (e.g. already-unique identifiers).
func (c *Context) AppendTextToLocal(text []byte) {
	start := c.local.Len()
	c.local.ExtendOrGrow(len(text) + 1)
	buf := c.local.Bytes()
	copy(buf[start:], text)
	buf[start+len(text)] = 0

	c.b250 = append(c.b250, lookupWordIndexSentinel)
	c.numericOnly = false
}

// SetLastDelta records the delta produced by a SELF_DELTA/OTHER_DELTA snip so
// a following empty-payload SELF_DELTA ("negate previous delta", §4.2) can
// find it.
func (c *Context) SetLastDelta(d int64) {
	c.LastDelta = d
	c.lastDeltaSet = true
}

// HasLastDelta reports whether SetLastDelta has been called since the last
// Rollback/New, distinguishing "delta is zero" from "no delta recorded yet".
func (c *Context) HasLastDelta() bool { return c.lastDeltaSet }

// SetLastTxt records where the bytes just written to a VB's txt_data output
// live, for a later COPY or DIFF snip (possibly from another context) to
// reference.
func (c *Context) SetLastTxt(index, length int) {
	c.LastTxt = TxtRef{Index: index, Len: length}
}
