package lookback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/ltype"

	gnzctx "github.com/arloliu/gnzcore/ctx"
)

func TestRing_InsertAndGetValue(t *testing.T) {
	r := New(3)
	r.Insert([]byte("a"), 0)
	r.Insert([]byte("b"), 1)
	r.Insert([]byte("c"), 2)

	v, err := r.GetValue(1)
	require.NoError(t, err)
	assert.Equal(t, "c", string(v))

	v, err = r.GetValue(3)
	require.NoError(t, err)
	assert.Equal(t, "a", string(v))
}

func TestRing_EvictsOldestBeyondCapacity(t *testing.T) {
	r := New(2)
	r.Insert([]byte("a"), 0)
	r.Insert([]byte("b"), 1)
	r.Insert([]byte("c"), 2)

	_, err := r.GetValue(3)
	assert.Error(t, err, "entry evicted past capacity must no longer be retrievable")

	v, err := r.GetValue(2)
	require.NoError(t, err)
	assert.Equal(t, "b", string(v))
}

func TestRing_OutOfRangeDistance(t *testing.T) {
	r := New(2)
	r.Insert([]byte("a"), 0)

	_, err := r.GetValue(0)
	assert.Error(t, err)

	_, err = r.GetValue(3)
	assert.Error(t, err)
}

func TestRing_GetIndex(t *testing.T) {
	r := New(2)
	r.Insert([]byte("x"), 42)

	idx, err := r.GetIndex(1)
	require.NoError(t, err)
	assert.Equal(t, int32(42), idx)
}

func TestRing_IsSameText(t *testing.T) {
	r := New(2)
	r.Insert([]byte("chr1"), 0)

	assert.True(t, r.IsSameText(1, []byte("chr1")))
	assert.False(t, r.IsSameText(1, []byte("chr2")))
	assert.False(t, r.IsSameText(5, []byte("chr1")), "out-of-range distance must not match")
}

func TestRegistry_BindAndGet(t *testing.T) {
	c := gnzctx.New(dictid.Make("LB"), 0, ltype.Text)
	defer c.Release()

	reg := NewRegistry()
	ring := reg.Bind(c, 4)
	ring.Insert([]byte("val1"), 0)

	got, err := reg.Get(c, 1)
	require.NoError(t, err)
	assert.Equal(t, "val1", string(got))
}
