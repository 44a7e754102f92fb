package deferred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/internal/pool"
	"github.com/arloliu/gnzcore/ltype"
)

func newContext(t *testing.T) *ctx.Context {
	t.Helper()
	c := ctx.New(dictid.Make("DP"), 0, ltype.Int32)
	t.Cleanup(c.Release)

	return c
}

func TestReserveThenFinalize_ExactWidth(t *testing.T) {
	c := newContext(t)
	out := pool.NewByteBuffer(64)
	out.MustWrite([]byte("INFO=DP="))

	q := New()
	handle := q.Reserve(out, c, 3, func() ([]byte, error) { return []byte("123"), nil })
	out.MustWrite([]byte(";AF=0.5"))

	require.NoError(t, q.FinalizeAt(out, handle))
	assert.Equal(t, "INFO=DP=123;AF=0.5", string(out.Bytes()))
	assert.Equal(t, 0, q.Pending())
}

func TestFinalize_ValueWiderThanReservation_ShiftsTailRight(t *testing.T) {
	c := newContext(t)
	out := pool.NewByteBuffer(64)
	out.MustWrite([]byte("DP="))

	q := New()
	handle := q.Reserve(out, c, 1, func() ([]byte, error) { return []byte("123456"), nil })
	out.MustWrite([]byte(";END"))

	require.NoError(t, q.FinalizeAt(out, handle))
	assert.Equal(t, "DP=123456;END", string(out.Bytes()))
}

func TestFinalize_ValueNarrowerThanReservation_ShiftsTailLeft(t *testing.T) {
	c := newContext(t)
	out := pool.NewByteBuffer(64)
	out.MustWrite([]byte("DP="))

	q := New()
	handle := q.Reserve(out, c, 6, func() ([]byte, error) { return []byte("7"), nil })
	out.MustWrite([]byte(";END"))

	require.NoError(t, q.FinalizeAt(out, handle))
	assert.Equal(t, "DP=7;END", string(out.Bytes()))
}

func TestFinalizeAll_MultipleSlotsShiftEachOther(t *testing.T) {
	c := newContext(t)
	out := pool.NewByteBuffer(64)

	q := New()
	out.MustWrite([]byte("A="))
	hA := q.Reserve(out, c, 1, func() ([]byte, error) { return []byte("111"), nil })
	out.MustWrite([]byte(";B="))
	hB := q.Reserve(out, c, 1, func() ([]byte, error) { return []byte("22"), nil })
	out.MustWrite([]byte(";end"))

	assert.Equal(t, 2, q.Pending())
	require.NoError(t, q.FinalizeAt(out, hA))
	require.NoError(t, q.FinalizeAt(out, hB))

	assert.Equal(t, "A=111;B=22;end", string(out.Bytes()))
}

func TestFinalizeAll_RegistrationOrder(t *testing.T) {
	c := newContext(t)
	out := pool.NewByteBuffer(64)

	q := New()
	out.MustWrite([]byte("X="))
	q.Reserve(out, c, 1, func() ([]byte, error) { return []byte("99"), nil })
	out.MustWrite([]byte(";Y="))
	q.Reserve(out, c, 2, func() ([]byte, error) { return []byte("5"), nil })

	require.NoError(t, q.FinalizeAll(out))
	assert.Equal(t, "X=99;Y=5", string(out.Bytes()))
}

func TestFinalizeAt_UnknownHandle(t *testing.T) {
	q := New()
	out := pool.NewByteBuffer(16)
	err := q.FinalizeAt(out, 0)
	assert.Error(t, err)
}

func TestFinalizeAt_Idempotent(t *testing.T) {
	c := newContext(t)
	out := pool.NewByteBuffer(16)
	calls := 0
	q := New()
	h := q.Reserve(out, c, 1, func() ([]byte, error) {
		calls++
		return []byte("1"), nil
	})

	require.NoError(t, q.FinalizeAt(out, h))
	require.NoError(t, q.FinalizeAt(out, h))
	assert.Equal(t, 1, calls)
}
