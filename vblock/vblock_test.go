package vblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/ltype"
)

func TestNew_WiresEnginesTogether(t *testing.T) {
	vb := New(1, 0)
	t.Cleanup(vb.Release)

	assert.Same(t, vb.Containers, vb.Snips.Containers)
	assert.Same(t, vb.Lookbacks, vb.Snips.Lookbacks)
	assert.Same(t, vb.Snips, vb.Containers.Snips)
}

func TestAddContext_AndGet(t *testing.T) {
	vb := New(1, 0)
	t.Cleanup(vb.Release)

	c := ctx.New(dictid.Make("CHROM"), 0, ltype.Text)
	t.Cleanup(c.Release)
	vb.AddContext(c)

	got, ok := vb.Get(c.DictID)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = vb.Get(dictid.Make("NOPE"))
	assert.False(t, ok)

	assert.Len(t, vb.Contexts(), 1)
}

func TestPeekUnpeek_RestoresCursorsAndAllowsNesting(t *testing.T) {
	vb := New(1, 0)
	t.Cleanup(vb.Release)

	a := ctx.New(dictid.Make("A"), 0, ltype.Text)
	t.Cleanup(a.Release)
	a.AppendSnip([]byte("one"))
	a.AppendSnip([]byte("two"))
	_, _ = a.NextWordIndex() // advance cursor to 1, simulating a prior read

	b := ctx.New(dictid.Make("B"), 1, ltype.Text)
	t.Cleanup(b.Release)

	require.NoError(t, vb.Peek(a))
	require.NoError(t, vb.Peek(b))

	_, err := a.NextWordIndex() // speculative read while peeked
	require.NoError(t, err)
	assert.Equal(t, 2, a.NextB250)

	require.NoError(t, vb.Unpeek()) // pops b's frame first (LIFO)
	require.NoError(t, vb.Unpeek()) // pops a's frame, restoring NextB250 to 1

	assert.Equal(t, 1, a.NextB250, "peek must restore the cursor consumed during the speculative read")
}

func TestPeek_NonReentrantPerContext(t *testing.T) {
	vb := New(1, 0)
	t.Cleanup(vb.Release)

	a := ctx.New(dictid.Make("A"), 0, ltype.Text)
	t.Cleanup(a.Release)

	require.NoError(t, vb.Peek(a))
	err := vb.Peek(a)
	assert.Error(t, err)
}

func TestUnpeek_EmptyStackReturnsError(t *testing.T) {
	vb := New(1, 0)
	t.Cleanup(vb.Release)

	err := vb.Unpeek()
	assert.Error(t, err)
}
