// Package vblock ties together everything a single compute task needs to
// reconstruct one Variant Block (§3, §4.10): the context table, the growing
// txt_data output buffer, the wired snip/container/lookback engines, the
// deferred-insertion queue, and the peek stack (§4.11).
//
// One VB is built per compute task and released back to its pools once the
// task's output has been handed off to the writer.
package vblock

import (
	"github.com/arloliu/gnzcore/container"
	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/deferred"
	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/internal/pool"
	"github.com/arloliu/gnzcore/lookback"
	"github.com/arloliu/gnzcore/snip"
)

// VB holds one Variant Block's full live state during reconstruction.
type VB struct {
	VBlockI int32
	CompI   int32

	contexts map[dictid.DictId]*ctx.Context

	// TxtData is the growing reconstructed output buffer (§3 "growing
	// output buffer"), written to by Snips.Reconstruct and read back by the
	// caller once the VB is complete.
	TxtData *pool.ByteBuffer

	Snips      *snip.Engine
	Containers *container.Engine
	Lookbacks  *lookback.Registry
	Deferred   *deferred.Queue

	peek peekStack
}

// New allocates an empty VB for the given vblock_i/comp_i and wires its
// engines together: Snips.Contexts/Containers/Lookbacks point back at vb and
// the freshly built Containers/Lookbacks instances, closing the three
// dependency-inversion seams snip.Engine declares.
func New(vblockI, compI int32) *VB {
	vb := &VB{
		VBlockI:  vblockI,
		CompI:    compI,
		contexts: make(map[dictid.DictId]*ctx.Context),
		TxtData:  pool.GetVBlockBuffer(),
		Deferred: deferred.New(),
	}

	lb := lookback.NewRegistry()
	se := &snip.Engine{Contexts: vb, Lookbacks: lb}
	ce := &container.Engine{Snips: se}
	se.Containers = ce

	vb.Snips = se
	vb.Containers = ce
	vb.Lookbacks = lb

	return vb
}

// Release returns every context's pooled buffers and the VB's own txt_data
// buffer to their pools. The VB must not be used afterward.
func (vb *VB) Release() {
	for _, c := range vb.contexts {
		c.Release()
	}
	pool.PutVBlockBuffer(vb.TxtData)
}

// AddContext registers c as live in this VB, keyed by its dict id.
func (vb *VB) AddContext(c *ctx.Context) {
	vb.contexts[c.DictID] = c
}

// Context returns the live context for id, or ok=false if none was added.
func (vb *VB) Context(id dictid.DictId) (*ctx.Context, bool) {
	c, ok := vb.contexts[id]

	return c, ok
}

// Get implements snip.ContextLookup.
func (vb *VB) Get(id dictid.DictId) (*ctx.Context, bool) {
	return vb.Context(id)
}

// Contexts returns every context registered in this VB, for callers that
// need to iterate all of them (e.g. uncompressing all contexts per §4.10
// step 1, or binding lookback rings per step 2).
func (vb *VB) Contexts() map[dictid.DictId]*ctx.Context {
	return vb.contexts
}

// peekFrame captures the subset of a context's cursor state that a peek
// must save and later restore: the b250/local read cursors and the last
// decoded value/text reference. last_delta is deliberately not included —
// peeking never re-derives a delta, only SELF_DELTA append/reconstruct does.
type peekFrame struct {
	c         *ctx.Context
	nextB250  int
	nextLocal int
	lastValue ctx.Value
	lastTxt   ctx.TxtRef
}

// peekStack is a LIFO of peekFrame, letting peeks nest across distinct
// contexts while remaining non-reentrant per context (§4.11).
type peekStack struct {
	frames  []peekFrame
	peeking map[*ctx.Context]bool
}

// Peek saves c's reconstruction cursor so a SPECIAL handler can read a
// sibling context's upcoming value without consuming it. Pair with Unpeek,
// most naturally via defer.
func (vb *VB) Peek(c *ctx.Context) error {
	if vb.peek.peeking == nil {
		vb.peek.peeking = make(map[*ctx.Context]bool)
	}
	if vb.peek.peeking[c] {
		return errs.ErrPeekReentrant
	}

	vb.peek.peeking[c] = true
	vb.peek.frames = append(vb.peek.frames, peekFrame{
		c:         c,
		nextB250:  c.NextB250,
		nextLocal: c.NextLocal,
		lastValue: c.LastValue,
		lastTxt:   c.LastTxt,
	})

	return nil
}

// Unpeek restores the most recently pushed peek frame. Frames may belong to
// different contexts and are popped in LIFO order regardless of which
// context they name, since a handler may peek several siblings before
// unpeeking any of them.
func (vb *VB) Unpeek() error {
	n := len(vb.peek.frames)
	if n == 0 {
		return errs.ErrPeekStackEmpty
	}

	f := vb.peek.frames[n-1]
	vb.peek.frames = vb.peek.frames[:n-1]
	delete(vb.peek.peeking, f.c)

	f.c.NextB250 = f.nextB250
	f.c.NextLocal = f.nextLocal
	f.c.LastValue = f.lastValue
	f.c.LastTxt = f.lastTxt

	return nil
}
