// Package snip implements the snip instruction set (§4.2): the small byte
// programs stored as dictionary entries that reconstruct_one_snip executes
// to turn a context's b250 stream back into text.
package snip

import (
	"strconv"
	"strings"

	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/internal/pool"
	"github.com/arloliu/gnzcore/ltype"
)

// Opcode tags the first byte of a snip. Values below 32 are reserved for
// opcodes (§6 "Snip wire format"); any other leading byte means the whole
// snip is literal text with no opcode.
type Opcode byte

const (
	Lookup Opcode = iota
	OtherLookup
	Numeric
	Container
	SelfDelta
	OtherDelta
	Copy
	Special
	Diff
	Redirection
	Dual
	Lookback
	DontStore
)

// maxOpcode is the highest assigned Opcode value; any leading byte above
// this (but still < 32) is a reserved-but-unused opcode and a format error.
const maxOpcode = DontStore

// dualSeparator splits a DUAL snip's two sub-snips (§4.2).
const dualSeparator = 0xff

// ContextLookup resolves a dict id to the context instance live in the
// current VB, used by every opcode that references "another context".
type ContextLookup interface {
	Get(id dictid.DictId) (*ctx.Context, bool)
}

// ContainerEngine reconstructs a CONTAINER snip's body. Defined here rather
// than imported from package container to avoid an import cycle (container
// reconstructs child snips via Engine.Reconstruct, so container must depend
// on snip, not the other way around); package container implements this
// interface and is wired in by the caller that owns both (vblock/reconplan).
type ContainerEngine interface {
	Reconstruct(out *pool.ByteBuffer, c *ctx.Context, wordIndex int32, body []byte) error
}

// LookbackRing answers §4.5 peek queries for the LOOKBACK opcode. Like
// ContainerEngine, this is an inversion seam: package lookback implements it.
type LookbackRing interface {
	// Get returns the text stored n positions back in the ring belonging to
	// the lookback context lb.
	Get(lb *ctx.Context, n int) ([]byte, error)
}

// SpecialHandler implements one data-type-specific SPECIAL opcode handler
// (§4.2, §9 "per-data-type hooks"). body is the snip bytes after the kind
// byte. Handlers may write to out, call e.Reconstruct for child snips, or
// register a deferred insertion via a mechanism the caller supplies through
// closures captured at registration time - this package does not know about
// package deferred, keeping the dependency one-directional.
type SpecialHandler func(e *Engine, out *pool.ByteBuffer, c *ctx.Context, body []byte) error

// Engine holds everything reconstruct_one_snip needs beyond the dictionary
// entry itself: how to find sibling contexts, how to recurse into
// containers, how to peek the lookback ring, and the data type's SPECIAL
// handler table. One Engine is built per VB (data-type hooks are selected
// once at VB init, per §9).
type Engine struct {
	Contexts   ContextLookup
	Containers ContainerEngine
	Lookbacks  LookbackRing
	Specials   map[byte]SpecialHandler
}

// Reconstruct executes the snip at wordIndex in c against out, the VB's
// txt_data output buffer. wordIndex may be ctx.Empty, ctx.Missing, or the
// implicit-LOOKUP sentinel as well as a real dictionary index.
//
// Every non-empty reconstruction records the range of out it just wrote into
// c.LastTxt before returning, regardless of which opcode produced it: COPY
// and DIFF reference a sibling (or the same) context's last_txt (§8 "COPY
// emits bytes byte-identical to the referenced context's last_txt"), and
// that reference is only ever satisfiable if every reconstruction path keeps
// last_txt current, not just the ones COPY/DIFF happen to target.
func (e *Engine) Reconstruct(out *pool.ByteBuffer, c *ctx.Context, wordIndex int32) error {
	switch wordIndex {
	case ctx.Empty:
		return nil
	case ctx.Missing:
		return nil
	}

	start := out.Len()

	if ctx.IsLocalLookup(wordIndex) {
		if err := e.reconstructLookup(out, c, nil); err != nil {
			return err
		}
		c.SetLastTxt(start, out.Len()-start)

		return nil
	}

	body, err := c.SnipAt(wordIndex)
	if err != nil {
		return err
	}

	if err := e.reconstructBytes(out, c, wordIndex, body); err != nil {
		return err
	}
	c.SetLastTxt(start, out.Len()-start)

	return nil
}

// reconstructBytes dispatches one already-resolved snip body. wordIndex is
// threaded through (rather than re-derived) so opContainer can key its
// per-context-per-VB container cache (ctx.Context.ConCache) by the same word
// index DUAL/DONT_STORE recursion preserves across their sub-snip.
func (e *Engine) reconstructBytes(out *pool.ByteBuffer, c *ctx.Context, wordIndex int32, snipBody []byte) error {
	if len(snipBody) == 0 {
		return e.reconstructLookup(out, c, nil)
	}

	if snipBody[0] >= 32 {
		// no opcode: literal reconstruction
		out.MustWrite(snipBody)
		if c.Flags.Store == ctx.StoreInt || c.Flags.Store == ctx.StoreFloat {
			e.captureLastValue(c, snipBody)
		}

		return nil
	}

	op := Opcode(snipBody[0])
	if op > maxOpcode {
		return errs.ErrInvalidSnipOpcode
	}
	body := snipBody[1:]

	switch op {
	case Lookup:
		return e.reconstructLookup(out, c, body)
	case OtherLookup:
		return e.opOtherLookup(out, c, body)
	case Numeric:
		return e.opNumeric(out, c, body)
	case Container:
		return e.opContainer(out, c, wordIndex, body)
	case SelfDelta:
		return e.opSelfDelta(out, c, body)
	case OtherDelta:
		return e.opOtherDelta(out, c, body)
	case Copy:
		return e.opCopy(out, c, body)
	case Special:
		return e.opSpecial(out, c, body)
	case Diff:
		return e.opDiff(out, c, body)
	case Redirection:
		return e.opRedirection(out, c, body)
	case Dual:
		return e.opDual(out, c, wordIndex, body)
	case Lookback:
		return e.opLookback(out, c, body)
	case DontStore:
		return e.opDontStore(out, c, wordIndex, body)
	default:
		return errs.ErrInvalidSnipOpcode
	}
}

// reconstructLookup reads the next value out of c.local per c.LType and
// writes its ASCII form to out, updating c.LastValue/NextLocal. A nonempty
// body overrides nothing in the base LOOKUP form; genozip's optional
// "length text" variant is not otherwise distinguished here.
func (e *Engine) reconstructLookup(out *pool.ByteBuffer, c *ctx.Context, _ []byte) error {
	if c.LType.IsInteger() {
		v, err := readLocalInt(c)
		if err != nil {
			return err
		}

		if !c.LType.IsSigned() && uint64(v) == c.LType.MaxInt() {
			out.MustWrite([]byte{'.'})
			c.LastValue.I = 0
			c.Flags.Store = ctx.StoreInt

			return nil
		}

		writeInt(out, v, c.LType.IsHex(), false)
		c.LastValue.I = v
		c.Flags.Store = ctx.StoreInt

		return nil
	}

	if c.LType == ltype.Float32 || c.LType == ltype.Float64 {
		f, err := readLocalFloat(c)
		if err != nil {
			return err
		}
		out.MustWrite([]byte(strconv.FormatFloat(f, 'g', -1, 64)))
		c.LastValue.F = f
		c.Flags.Store = ctx.StoreFloat

		return nil
	}

	text, err := readLocalText(c)
	if err != nil {
		return err
	}
	out.MustWrite(text)

	return nil
}

func (e *Engine) opOtherLookup(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	other, rest, err := e.resolveDictIDPrefix(body)
	if err != nil {
		return err
	}

	return e.reconstructLookup(out, other, rest)
}

// opNumeric reads an integer from local and renders it zero-padded to width
// in the requested base (§4.2 NUMERIC row).
func (e *Engine) opNumeric(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	if len(body) < 2 {
		return errs.ErrTruncatedSnip
	}
	baseCode := body[0]
	width := int(body[1])

	v, err := readLocalInt(c)
	if err != nil {
		return err
	}

	var s string
	switch baseCode {
	case 0:
		s = strconv.FormatInt(v, 10)
	case 1:
		s = strconv.FormatUint(uint64(v), 16)
	case 2:
		s = strings.ToUpper(strconv.FormatUint(uint64(v), 16))
	default:
		return errs.ErrInvalidSnipOpcode
	}

	for len(s) < width {
		s = "0" + s
	}
	out.MustWrite([]byte(s))
	c.LastValue.I = v
	c.Flags.Store = ctx.StoreInt

	return nil
}

func (e *Engine) opContainer(out *pool.ByteBuffer, c *ctx.Context, wordIndex int32, body []byte) error {
	if e.Containers == nil {
		return errs.ErrContainerNotCached
	}

	return e.Containers.Reconstruct(out, c, wordIndex, body)
}

// opSelfDelta implements SELF_DELTA's three forms: a signed ASCII (or hex,
// "x"-prefixed) delta, "-" meaning "negate the base value", and empty
// meaning "negate the previous delta" (§4.2, §8 snip ISA laws).
func (e *Engine) opSelfDelta(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	if c.Flags.Store != ctx.StoreInt {
		return errs.ErrBaseContextNotInt
	}

	var delta int64
	hex := false

	switch {
	case len(body) == 0:
		if !c.HasLastDelta() {
			return errs.ErrTruncatedSnip
		}
		delta = -c.LastDelta
	case len(body) == 1 && body[0] == '-':
		delta = -c.LastValue.I
	case body[0] == 'x':
		hex = true
		v, err := strconv.ParseInt(string(body[1:]), 16, 64)
		if err != nil {
			return errs.ErrTruncatedSnip
		}
		delta = v
	default:
		v, err := strconv.ParseInt(string(body), 10, 64)
		if err != nil {
			return errs.ErrTruncatedSnip
		}
		delta = v
	}

	newValue := c.LastValue.I + delta
	writeInt(out, newValue, hex, false)
	c.LastValue.I = newValue
	c.SetLastDelta(delta)

	return nil
}

func (e *Engine) opOtherDelta(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	base, rest, err := e.resolveDictIDPrefix(body)
	if err != nil {
		return err
	}
	if base.Flags.Store != ctx.StoreInt {
		return errs.ErrBaseContextNotInt
	}

	delta, err := strconv.ParseInt(string(rest), 10, 64)
	if err != nil {
		return errs.ErrTruncatedSnip
	}

	newValue := base.LastValue.I + delta
	writeInt(out, newValue, false, false)
	c.LastValue.I = newValue

	return nil
}

// opCopy reconstructs the referenced context's last_txt verbatim and
// propagates its last_value, per §4.2 and the "COPY emits bytes
// byte-identical to the referenced context's last_txt" law (§8).
func (e *Engine) opCopy(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	target := c
	if len(body) > 0 {
		other, _, err := e.resolveDictIDPrefix(body)
		if err != nil {
			return err
		}
		target = other
	}

	txt := out.Bytes()
	ref := target.LastTxt
	if ref.Index < 0 || ref.Index+ref.Len > len(txt) {
		return errs.ErrTruncatedSnip
	}
	out.MustWrite(txt[ref.Index : ref.Index+ref.Len])
	c.LastValue = target.LastValue

	return nil
}

func (e *Engine) opSpecial(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	if len(body) == 0 {
		return errs.ErrTruncatedSnip
	}
	kind := body[0] - 32

	h, ok := e.Specials[kind]
	if !ok {
		return errs.ErrInvalidSnipOpcode
	}

	return h(e, out, c, body[1:])
}

// opDiff reconstructs from the base context's last_txt: a negative length
// copies it whole, any other length copies its first length bytes. No
// mask is applied to the copied bytes: neither the pre-v14 XOR form nor the
// v14+ substitute-if-nonzero form is implemented.
func (e *Engine) opDiff(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	base := c
	rest := body

	// The dict id prefix is optional and, unlike OTHER_LOOKUP/OTHER_DELTA,
	// not flagged elsewhere in the snip: try to resolve one greedily and
	// fall back to treating the whole body as the bare signed length if
	// that fails, since a literal "-3" or "12" is never valid base64 of a
	// resolvable context.
	if other, r, err := e.resolveDictIDPrefix(body); err == nil {
		base, rest = other, r
	}

	length, err := strconv.Atoi(string(rest))
	if err != nil {
		return errs.ErrTruncatedSnip
	}

	txt := out.Bytes()
	ref := base.LastTxt
	if length < 0 {
		// exact copy
		if ref.Index < 0 || ref.Index+ref.Len > len(txt) {
			return errs.ErrTruncatedSnip
		}
		out.MustWrite(txt[ref.Index : ref.Index+ref.Len])

		return nil
	}

	if ref.Index < 0 || ref.Index+length > len(txt) {
		return errs.ErrTruncatedSnip
	}
	out.MustWrite(txt[ref.Index : ref.Index+length])

	return nil
}

// opRedirection reconstructs another context's next b250 entry in full
// (§4.2's "reconstruct that other context in full"), pulling and advancing
// the other context's own cursor exactly as the container engine does for
// its repeated children.
func (e *Engine) opRedirection(out *pool.ByteBuffer, _ *ctx.Context, body []byte) error {
	other, _, err := e.resolveDictIDPrefix(body)
	if err != nil {
		return err
	}

	wi, err := other.NextWordIndex()
	if err != nil {
		return err
	}

	return e.Reconstruct(out, other, wi)
}

// opDual picks between a DUAL snip's two sub-snips by the VB-wide
// render-coordinate flag (§4.2 DUAL row): primary coordinates select the
// first sub-snip, --luft coordinates select the second. This is unrelated
// to c.Flags.Paired, which only distinguishes a FASTQ R1/R2 mate.
func (e *Engine) opDual(out *pool.ByteBuffer, c *ctx.Context, wordIndex int32, body []byte) error {
	for i, b := range body {
		if b == dualSeparator {
			chosen := body[:i]
			if c.Flags.RenderLuft {
				chosen = body[i+1:]
			}

			return e.reconstructBytes(out, c, wordIndex, chosen)
		}
	}

	return errs.ErrTruncatedSnip
}

func (e *Engine) opLookback(out *pool.ByteBuffer, c *ctx.Context, body []byte) error {
	if e.Lookbacks == nil || len(body) == 0 {
		return errs.ErrLookbackEmpty
	}

	lb, rest, err := e.resolveDictIDPrefix(body)
	if err != nil {
		return err
	}

	n := 1
	if len(rest) > 0 {
		v, err := strconv.Atoi(string(rest))
		if err != nil {
			return errs.ErrTruncatedSnip
		}
		n = v
	}

	val, err := e.Lookbacks.Get(lb, n)
	if err != nil {
		return err
	}
	out.MustWrite(val)

	return nil
}

func (e *Engine) opDontStore(out *pool.ByteBuffer, c *ctx.Context, wordIndex int32, body []byte) error {
	savedStore := c.Flags.Store
	savedStoreDelta := c.Flags.StoreDelta
	c.Flags.Store = ctx.StoreNone
	c.Flags.StoreDelta = false

	err := e.reconstructBytes(out, c, wordIndex, body)

	c.Flags.Store = savedStore
	c.Flags.StoreDelta = savedStoreDelta

	return err
}

// resolveDictIDPrefix decodes the leading base64 dict id embedded in a snip
// body (§6), returning the resolved context and the remaining bytes.
func (e *Engine) resolveDictIDPrefix(body []byte) (*ctx.Context, []byte, error) {
	if e.Contexts == nil {
		return nil, nil, errs.ErrNoSuchContext
	}

	const encodedLen = 11
	if len(body) < encodedLen {
		return nil, nil, errs.ErrTruncatedSnip
	}

	id, _, err := dictid.DecodeSuffixed(string(body[:encodedLen]))
	if err != nil {
		return nil, nil, err
	}

	other, ok := e.Contexts.Get(id)
	if !ok {
		return nil, nil, errs.ErrNoSuchContext
	}

	return other, body[encodedLen:], nil
}

func (e *Engine) captureLastValue(c *ctx.Context, literal []byte) {
	if c.Flags.Store == ctx.StoreInt {
		if v, err := strconv.ParseInt(string(literal), 10, 64); err == nil {
			c.LastValue.I = v
		}
	} else if c.Flags.Store == ctx.StoreFloat {
		if f, err := strconv.ParseFloat(string(literal), 64); err == nil {
			c.LastValue.F = f
		}
	}
}
