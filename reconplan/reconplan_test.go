package reconplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/gnzcore/container"
	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/ltype"
	"github.com/arloliu/gnzcore/snip"
	"github.com/arloliu/gnzcore/vblock"
)

// internCont writes a CONTAINER-opcode snip (opcode byte + cont.Encode())
// into top's dict and returns the resulting word index, mirroring how Seg
// interns a top-level container once per VB.
func internCont(top *ctx.Context, cont *container.Container) int32 {
	body := append([]byte{byte(snip.Container)}, cont.Encode()...)
	idx, _ := top.AppendSnip(body)

	return idx
}

func newLineDriver(t *testing.T, lines []string) (*Driver, *ctx.Context) {
	t.Helper()

	vb := vblock.New(1, 0)
	t.Cleanup(vb.Release)

	line := ctx.New(dictid.Make("LINE"), 0, ltype.Text)
	for _, l := range lines {
		line.AppendSnip([]byte(l))
	}
	vb.AddContext(line)

	top := ctx.New(dictid.Make("TOPLEVEL"), 1, ltype.Text)
	vb.AddContext(top)

	cont := &container.Container{
		Repeats:    uint32(len(lines)),
		Items:      []container.Item{{DictID: line.DictID}},
		IsTopLevel: true,
	}
	internCont(top, cont)

	return New(vb, top), line
}

func TestRun_ReconstructsAllLinesAndMatchesSize(t *testing.T) {
	d, _ := newLineDriver(t, []string{"aaa", "bbb", "ccc"})

	err := d.Run(len("aaa") + len("bbb") + len("ccc"))
	require.NoError(t, err)
	assert.Equal(t, "aaabbbccc", string(d.VB.TxtData.Bytes()))
}

func TestRun_SizeMismatchReturnsError(t *testing.T) {
	d, _ := newLineDriver(t, []string{"aaa", "bbb"})

	err := d.Run(100)
	assert.Error(t, err)
}

func TestRun_DropLinePredicateDiscardsMatchingLines(t *testing.T) {
	d, _ := newLineDriver(t, []string{"keep1", "drop-me", "keep2"})
	d.DropLine = append(d.DropLine, func(vb *vblock.VB, lineIdx int) (bool, string) {
		return lineIdx == 1, "dropped for test"
	})

	err := d.Run(len("keep1") + len("keep2"))
	require.NoError(t, err)
	assert.Equal(t, "keep1keep2", string(d.VB.TxtData.Bytes()))
	assert.Equal(t, "dropped for test", d.LastDropReason)
}

func TestRun_NoDropPredicatesKeepsEveryLine(t *testing.T) {
	d, _ := newLineDriver(t, []string{"x", "y"})

	err := d.Run(2)
	require.NoError(t, err)
	assert.Empty(t, d.LastDropReason)
}
