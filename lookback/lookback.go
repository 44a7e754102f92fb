// Package lookback implements the fixed-capacity per-context ring buffer of
// §4.5: a small history of recently reconstructed values that the LOOKBACK
// snip opcode (and Seg-time equality probes) can address by line distance.
package lookback

import (
	"golang.org/x/exp/constraints"

	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/errs"
)

// clampNonNegative floors a capacity/distance value to zero; local.param is
// a wire-supplied int and a corrupt or adversarial file could hand us a
// negative one.
func clampNonNegative[T constraints.Integer](v T) T {
	if v < 0 {
		return 0
	}

	return v
}

// entry is one slot of the ring: the text pushed for a line, and the
// resolved word index that produced it (lookback_get_index, §4.5).
type entry struct {
	text      []byte
	wordIndex int32
}

// Ring is a fixed-capacity circular buffer of recent values for one
// lookback context. Capacity is written into the owning context's
// local.param at Seg time so reconstruction allocates an identically sized
// ring (§4.5); gnzcore stores that parameter as Ring.Capacity instead of
// overloading ctx.Context.Local for it, keeping the ring's own state out of
// the generic dict/b250/local model.
type Ring struct {
	buf   []entry
	head  int // index of the most recently pushed entry
	count int
}

// New creates a ring with the given capacity, matching the size recorded in
// the lookback context's local.param.
func New(capacity int) *Ring {
	return &Ring{buf: make([]entry, clampNonNegative(capacity)), head: -1}
}

// Capacity returns the ring's fixed size.
func (r *Ring) Capacity() int { return len(r.buf) }

// Insert pushes text (and the word index that produced it, if any) as the
// newest entry, evicting the oldest once the ring is full.
func (r *Ring) Insert(text []byte, wordIndex int32) {
	if len(r.buf) == 0 {
		return
	}

	r.head = (r.head + 1) % len(r.buf)
	r.buf[r.head] = entry{text: append([]byte(nil), text...), wordIndex: wordIndex}
	if r.count < len(r.buf) {
		r.count++
	}
}

// slot returns the ring index holding the entry n positions back from the
// newest (n=1 is the immediately preceding push), or an error if n exceeds
// the ring's capacity or the entry was never written.
func (r *Ring) slot(n int) (int, error) {
	if len(r.buf) == 0 || n < 1 || n > len(r.buf) {
		return 0, errs.ErrLookbackOutOfRange
	}
	if n > r.count {
		return 0, errs.ErrLookbackEmpty
	}

	return (r.head - n + 1 + len(r.buf)) % len(r.buf), nil
}

// GetValue returns the text stored n positions back.
func (r *Ring) GetValue(n int) ([]byte, error) {
	i, err := r.slot(n)
	if err != nil {
		return nil, err
	}

	return r.buf[i].text, nil
}

// GetIndex returns the word index stored n positions back.
func (r *Ring) GetIndex(n int) (int32, error) {
	i, err := r.slot(n)
	if err != nil {
		return 0, err
	}

	return r.buf[i].wordIndex, nil
}

// IsSameText reports whether the entry n positions back has text identical
// to text, the equality probe Seg uses to decide whether emitting a
// LOOKBACK snip is cheaper than a fresh dictionary entry (§4.5).
func (r *Ring) IsSameText(n int, text []byte) bool {
	got, err := r.GetValue(n)
	if err != nil {
		return false
	}

	return bytesEqual(got, text)
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

// Registry maps lookback contexts to their Ring, keyed by *ctx.Context; it
// implements snip.LookbackRing so the reconstruction engine can serve
// LOOKBACK opcodes without importing this package directly.
type Registry struct {
	rings map[*ctx.Context]*Ring
}

// NewRegistry creates an empty per-VB lookback registry.
func NewRegistry() *Registry {
	return &Registry{rings: make(map[*ctx.Context]*Ring)}
}

// Bind associates a Ring with its owning lookback context, sized from
// local.param (the capacity Seg recorded for it).
func (reg *Registry) Bind(c *ctx.Context, capacity int) *Ring {
	r := New(capacity)
	reg.rings[c] = r
	c.Lookback = r

	return r
}

// Get implements snip.LookbackRing.
func (reg *Registry) Get(lb *ctx.Context, n int) ([]byte, error) {
	r, ok := reg.rings[lb]
	if !ok {
		if ring, ok := lb.Lookback.(*Ring); ok {
			r = ring
		} else {
			return nil, errs.ErrLookbackEmpty
		}
	}

	return r.GetValue(n)
}
