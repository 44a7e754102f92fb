// Package reconplan implements the per-VB reconstruction driver of §4.10:
// a walk of an already-decompressed VB's top-level container, with
// drop-line filtering and a final declared-size check.
package reconplan

import (
	"fmt"

	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/vblock"
)

// DropLinePredicate implements one line filter (e.g. "snps-only", "samples",
// "regions" from §6's CLI surface). It runs after a record has been fully
// reconstructed and reports whether the line should be dropped, plus a short
// reason used in diagnostics — mirroring the original's vb->drop_curr_line
// reason string rather than a bare boolean.
type DropLinePredicate func(vb *vblock.VB, lineIndex int) (drop bool, reason string)

// Driver runs §4.10 steps 3-5 for one VB: it does not itself decompress
// contexts or bind lookback rings (steps 1-2), which happen earlier as part
// of building the vblock.VB and are driven by the caller per-data-type.
type Driver struct {
	VB       *vblock.VB
	TopLevel *ctx.Context // context holding the VB's single top-level CONTAINER snip

	DropLine []DropLinePredicate

	// LastDropReason records why the most recently dropped line was
	// dropped, for diagnostics. Empty after a run in which nothing was
	// dropped, or before any line has been dropped.
	LastDropReason string
}

// New returns a Driver wired to walk top's container using vb's already
// wired Snips/Containers engines.
func New(vb *vblock.VB, top *ctx.Context) *Driver {
	return &Driver{VB: vb, TopLevel: top}
}

// Run walks the top-level container (step 3), applying every registered
// DropLinePredicate after each repeat (step 4), then verifies the final
// txt_data length against reconSize (step 5).
func (d *Driver) Run(reconSize int) error {
	// RepeatFilter only engages for a Container whose own IsTopLevel flag
	// was set when it was interned (container.go's gating, §4.3) — the
	// top-level container is built with that flag set precisely so
	// per-line drop predicates apply here but never to an ordinary
	// nested container's repeats.
	d.VB.Containers.RepeatFilter = d.keepLine

	wordIndex, err := d.TopLevel.NextWordIndex()
	if err != nil {
		return fmt.Errorf("reconplan: vb=%d: reading top-level word index: %w", d.VB.VBlockI, err)
	}

	if err := d.VB.Snips.Reconstruct(d.VB.TxtData, d.TopLevel, wordIndex); err != nil {
		return fmt.Errorf("reconplan: vb=%d: reconstructing top-level container: %w", d.VB.VBlockI, err)
	}

	if got := d.VB.TxtData.Len(); got != reconSize {
		return fmt.Errorf(
			"%w: vb=%d got=%d want=%d (to inspect: extract vb_i=%d from the original input and re-run with --debug-recon-size)",
			errs.ErrReconSizeMismatch, d.VB.VBlockI, got, reconSize, d.VB.VBlockI,
		)
	}

	return nil
}

// keepLine implements container.RepeatFilter: it runs every registered
// predicate against the current line (repeat index) and reports false — so
// container.Engine discards that repeat's output — the moment any predicate
// votes to drop.
func (d *Driver) keepLine(c *ctx.Context, lineIndex int) bool {
	for _, pred := range d.DropLine {
		if drop, reason := pred(d.VB, lineIndex); drop {
			d.LastDropReason = reason

			return false
		}
	}

	return true
}
