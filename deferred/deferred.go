// Package deferred implements the deferred-insertion protocol of §4.4: a
// SPECIAL handler reserves a placeholder of estimated width in the VB's
// output buffer before the real value is known (e.g. VCF INFO/DP as the sum
// of per-sample FORMAT/DP), and a later hook finalizes it by writing the
// real value and shifting everything after it.
package deferred

import (
	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/internal/pool"
)

// FinalizeFunc computes the real bytes for a deferred field once enough of
// the record has been reconstructed to know them.
type FinalizeFunc func() ([]byte, error)

// slot is one registered placeholder: where it lives in the output buffer,
// how much space was reserved for it, and how to compute its real value.
type slot struct {
	ctx              *ctx.Context
	placeholderStart int
	reservedLen      int
	finalize         FinalizeFunc
	done             bool
}

// Queue is the per-VB set of outstanding deferred insertions (§4.4 step 1).
// It is reset (via New) once per VB.
type Queue struct {
	slots []*slot
}

// New returns an empty deferred-insertion queue for one VB.
func New() *Queue {
	return &Queue{}
}

// Reserve writes reservedLen zero bytes into out as a placeholder and
// registers finalize to be called later via FinalizeAll/FinalizeAt. It
// returns a handle (index into the queue) the caller can pass to FinalizeAt
// for insertion orders other than strict registration order (e.g. a
// per-sample callback that finalizes a different field than the one most
// recently reserved).
func (q *Queue) Reserve(out *pool.ByteBuffer, c *ctx.Context, reservedLen int, finalize FinalizeFunc) int {
	start := out.Len()
	out.ExtendOrGrow(reservedLen)
	buf := out.Bytes()
	for i := start; i < start+reservedLen; i++ {
		buf[i] = 0
	}

	q.slots = append(q.slots, &slot{
		ctx:              c,
		placeholderStart: start,
		reservedLen:      reservedLen,
		finalize:         finalize,
	})

	return len(q.slots) - 1
}

// FinalizeAt computes the real value for the slot at handle and splices it
// into out in place of the reserved placeholder, shifting every
// byte after the placeholder and updating every other outstanding slot's
// recorded offset that points past this site (§4.4 step 4).
func (q *Queue) FinalizeAt(out *pool.ByteBuffer, handle int) error {
	if handle < 0 || handle >= len(q.slots) {
		return errs.ErrNoDeferredSlot
	}
	s := q.slots[handle]
	if s.done {
		return nil
	}

	value, err := s.finalize()
	if err != nil {
		return err
	}

	if err := insertField(out, s, value); err != nil {
		return err
	}

	delta := len(value) - s.reservedLen
	for i, other := range q.slots {
		if i == handle || other.done {
			continue
		}
		if other.placeholderStart > s.placeholderStart {
			other.placeholderStart += delta
		}
	}
	s.done = true

	return nil
}

// FinalizeAll finalizes every outstanding slot in registration order. This
// is the common case: most deferred fields are finalized exactly once, at
// the container callback hook that closes the record they belong to.
func (q *Queue) FinalizeAll(out *pool.ByteBuffer) error {
	for i := range q.slots {
		if err := q.FinalizeAt(out, i); err != nil {
			return err
		}
	}

	return nil
}

// Pending reports how many registered slots have not yet been finalized.
func (q *Queue) Pending() int {
	n := 0
	for _, s := range q.slots {
		if !s.done {
			n++
		}
	}

	return n
}

// insertField splices value into out at s.placeholderStart, replacing the
// s.reservedLen bytes reserved there, growing or shrinking out as needed
// (§4.4 step 4's "memmove the tail by value_len - reserved_len").
func insertField(out *pool.ByteBuffer, s *slot, value []byte) error {
	if s.placeholderStart < 0 || s.placeholderStart+s.reservedLen > out.Len() {
		return errs.ErrPlaceholderOverlap
	}

	delta := len(value) - s.reservedLen
	tailStart := s.placeholderStart + s.reservedLen

	switch {
	case delta == 0:
		copy(out.Bytes()[s.placeholderStart:], value)

	case delta > 0:
		oldLen := out.Len()
		out.ExtendOrGrow(delta)
		buf := out.Bytes()
		// shift the tail right by delta; copy handles this overlap correctly
		// because it behaves like memmove regardless of direction.
		copy(buf[tailStart+delta:oldLen+delta], buf[tailStart:oldLen])
		copy(buf[s.placeholderStart:], value)

	default: // delta < 0
		buf := out.Bytes()
		copy(buf[tailStart+delta:], buf[tailStart:out.Len()])
		out.SetLength(out.Len() + delta)
		copy(out.Bytes()[s.placeholderStart:], value)
	}

	return nil
}
