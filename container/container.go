// Package container implements the container engine of §4.3: a small
// struct of repeats/items/separators interned as a CONTAINER snip, and the
// reconstruction loop that walks it, recursing into each item's own context
// for exactly one child snip per repeat.
package container

import (
	"encoding/binary"

	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/dictid"
	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/internal/pool"
	"github.com/arloliu/gnzcore/snip"
)

// maxRepeats bounds a single container's repeat count (§8 "maximum repeats
// per container is bounded; exceeding it is a format error").
const maxRepeats = 1 << 24

// Item is one child slot of a Container: which context to reconstruct, the
// separator byte(s) to emit after it, and an optional translator id for
// format-to-VCF style hooks consulted by the per-item callback.
type Item struct {
	DictID       dictid.DictId
	Seps         [2]byte
	TranslatorID uint8
}

// Container is the parsed form of a CONTAINER snip body (§3 GLOSSARY
// "Container").
type Container struct {
	Repeats   uint32
	Items     []Item
	RepSep    [2]byte
	HasRepSep bool

	Prefix       []byte
	ItemPrefixes [][]byte

	DropFinalItemSep   bool
	DropFinalRepeatSep bool
	FilterItems        bool
	IsTopLevel         bool
}

// flag bits for Container's binary encoding (Encode/Decode below).
const (
	flagDropFinalItemSep   = 1 << 0
	flagDropFinalRepeatSep = 1 << 1
	flagFilterItems        = 1 << 2
	flagIsTopLevel         = 1 << 3
	flagHasRepSep          = 1 << 4
)

// Encode serializes c to the byte form Seg interns as a CONTAINER snip's
// body (the byte after the CONTAINER opcode tag, which this package owns
// and snip.Engine never interprets directly).
func (c *Container) Encode() []byte {
	var flags byte
	if c.DropFinalItemSep {
		flags |= flagDropFinalItemSep
	}
	if c.DropFinalRepeatSep {
		flags |= flagDropFinalRepeatSep
	}
	if c.FilterItems {
		flags |= flagFilterItems
	}
	if c.IsTopLevel {
		flags |= flagIsTopLevel
	}
	if c.HasRepSep {
		flags |= flagHasRepSep
	}

	buf := make([]byte, 0, 32+len(c.Items)*16)
	buf = append(buf, flags)
	buf = binary.AppendUvarint(buf, uint64(c.Repeats))
	buf = binary.AppendUvarint(buf, uint64(len(c.Items)))
	if c.HasRepSep {
		buf = append(buf, c.RepSep[0], c.RepSep[1])
	}
	buf = binary.AppendUvarint(buf, uint64(len(c.Prefix)))
	buf = append(buf, c.Prefix...)

	for i, item := range c.Items {
		idBytes := item.DictID.Bytes()
		buf = append(buf, idBytes[:]...)
		buf = append(buf, item.Seps[0], item.Seps[1], item.TranslatorID)

		var prefix []byte
		if i < len(c.ItemPrefixes) {
			prefix = c.ItemPrefixes[i]
		}
		buf = binary.AppendUvarint(buf, uint64(len(prefix)))
		buf = append(buf, prefix...)
	}

	return buf
}

// Decode parses a Container from the bytes Encode produced.
func Decode(body []byte) (*Container, error) {
	if len(body) < 1 {
		return nil, errs.ErrTruncatedSnip
	}

	flags := body[0]
	off := 1

	repeats, n, err := readUvarint(body, off)
	if err != nil {
		return nil, err
	}
	off += n
	if repeats > maxRepeats {
		return nil, errs.ErrTooManyRepeats
	}

	nitems, n, err := readUvarint(body, off)
	if err != nil {
		return nil, err
	}
	off += n

	c := &Container{
		Repeats:            uint32(repeats),
		DropFinalItemSep:   flags&flagDropFinalItemSep != 0,
		DropFinalRepeatSep: flags&flagDropFinalRepeatSep != 0,
		FilterItems:        flags&flagFilterItems != 0,
		IsTopLevel:          flags&flagIsTopLevel != 0,
		HasRepSep:           flags&flagHasRepSep != 0,
	}

	if c.HasRepSep {
		if off+2 > len(body) {
			return nil, errs.ErrTruncatedSnip
		}
		c.RepSep = [2]byte{body[off], body[off+1]}
		off += 2
	}

	prefixLen, n, err := readUvarint(body, off)
	if err != nil {
		return nil, err
	}
	off += n
	if off+int(prefixLen) > len(body) {
		return nil, errs.ErrTruncatedSnip
	}
	c.Prefix = append([]byte(nil), body[off:off+int(prefixLen)]...)
	off += int(prefixLen)

	c.Items = make([]Item, nitems)
	c.ItemPrefixes = make([][]byte, nitems)

	for i := 0; i < int(nitems); i++ {
		if off+dictid.Len+3 > len(body) {
			return nil, errs.ErrTruncatedSnip
		}

		var idBytes [dictid.Len]byte
		copy(idBytes[:], body[off:off+dictid.Len])
		off += dictid.Len

		item := Item{
			DictID:       dictid.FromBytes(idBytes),
			Seps:         [2]byte{body[off], body[off+1]},
			TranslatorID: body[off+2],
		}
		off += 3

		itemPrefixLen, n, err := readUvarint(body, off)
		if err != nil {
			return nil, err
		}
		off += n
		if off+int(itemPrefixLen) > len(body) {
			return nil, errs.ErrTruncatedSnip
		}
		c.ItemPrefixes[i] = append([]byte(nil), body[off:off+int(itemPrefixLen)]...)
		off += int(itemPrefixLen)

		c.Items[i] = item
	}

	return c, nil
}

// writeSeparator emits seps[0] then seps[1], treating a zero byte as "no
// separator" rather than a literal NUL, matching the original engine's
// `char separator /* 0 if none */` convention for container item/repeat
// separators.
func writeSeparator(out *pool.ByteBuffer, seps [2]byte) {
	if seps[0] != 0 {
		out.MustWrite(seps[:1])
	}
	if seps[1] != 0 {
		out.MustWrite(seps[1:2])
	}
}

func readUvarint(body []byte, off int) (uint64, int, error) {
	if off >= len(body) {
		return 0, 0, errs.ErrTruncatedSnip
	}
	v, n := binary.Uvarint(body[off:])
	if n <= 0 {
		return 0, 0, errs.ErrTruncatedSnip
	}

	return v, n, nil
}

// ItemCallback runs after an item's child snip has been reconstructed, used
// for running-sum deferred fields, lookback inserts, and FORMAT-to-VCF
// translation hooks (§4.3 step 2.a).
type ItemCallback func(c *ctx.Context, item Item, repeat, itemIdx int, wasMissing bool) error

// RepeatFilter decides, for a top-level container with a VB-wide filter,
// whether to keep a given repeat (§4.3 step 1).
type RepeatFilter func(c *ctx.Context, repeat int) bool

// ItemFilter decides whether to skip a specific item within a repeat
// without consuming a child snip (§4.3 step 2.a, `filter_items`).
type ItemFilter func(c *ctx.Context, item Item, repeat, itemIdx int) bool

// Engine implements snip.ContainerEngine, parsing (and caching, per
// ctx.Context.ConCache) container bodies and running container_reconstruct.
type Engine struct {
	Snips *snip.Engine

	RepeatFilter RepeatFilter
	ItemFilter   ItemFilter
	OnItem       ItemCallback
}

var _ snip.ContainerEngine = (*Engine)(nil)

// Reconstruct implements snip.ContainerEngine. wordIndex keys c.ConCache so
// a container snip reused across many lines is parsed exactly once per VB.
func (e *Engine) Reconstruct(out *pool.ByteBuffer, c *ctx.Context, wordIndex int32, body []byte) error {
	cont, err := e.resolve(c, wordIndex, body)
	if err != nil {
		return err
	}

	return e.reconstruct(out, c, cont)
}

func (e *Engine) resolve(c *ctx.Context, wordIndex int32, body []byte) (*Container, error) {
	if cached, ok := c.ConCache[wordIndex]; ok {
		cont, ok := cached.(*Container)
		if !ok {
			return nil, errs.ErrContainerNotCached
		}

		return cont, nil
	}

	cont, err := Decode(body)
	if err != nil {
		return nil, err
	}
	c.ConCache[wordIndex] = cont

	return cont, nil
}

// reconstruct runs container_reconstruct (§4.3) for one parsed Container.
func (e *Engine) reconstruct(out *pool.ByteBuffer, c *ctx.Context, cont *Container) error {
	if e.Snips == nil || e.Snips.Contexts == nil {
		return errs.ErrNoSuchContext
	}

	out.MustWrite(cont.Prefix)

	for repeat := 0; repeat < int(cont.Repeats); repeat++ {
		repeatStart := out.Len()

		sepPos := -1 // offset in out.Bytes() of the separator pending elision

		lastActive := -1
		if cont.FilterItems && e.ItemFilter != nil {
			for i, item := range cont.Items {
				if e.ItemFilter(c, item, repeat, i) {
					lastActive = i
				}
			}
		} else {
			lastActive = len(cont.Items) - 1
		}

		for i, item := range cont.Items {
			if cont.FilterItems && e.ItemFilter != nil && !e.ItemFilter(c, item, repeat, i) {
				continue
			}

			itemStart := out.Len()
			if i < len(cont.ItemPrefixes) {
				out.MustWrite(cont.ItemPrefixes[i])
			}

			child, ok := e.Snips.Contexts.Get(item.DictID)
			if !ok {
				return errs.ErrNoSuchContext
			}

			nextIdx, err := child.NextWordIndex()
			if err != nil {
				return err
			}
			wasMissing := nextIdx == ctx.Missing
			if err := e.Snips.Reconstruct(out, child, nextIdx); err != nil {
				return err
			}

			if e.OnItem != nil {
				if err := e.OnItem(c, item, repeat, i, wasMissing); err != nil {
					return err
				}
			}

			if wasMissing {
				// The item produced nothing: drop its own (empty) output,
				// its prefix, and the preceding separator, so the absent
				// item leaves no trace in out (§4.3 step 2.a, §8 "the byte
				// immediately preceding ... is removed").
				truncateTo := itemStart
				if sepPos >= 0 {
					truncateTo = sepPos
				}
				out.SetLength(truncateTo)
				sepPos = -1

				continue
			}

			isLastItem := i == lastActive
			if !(isLastItem && cont.DropFinalItemSep) {
				sepPos = out.Len()
				writeSeparator(out, item.Seps)
			}
		}

		// The drop-line predicate runs only now, against the record this
		// repeat just reconstructed in full (§4.10 step 4: "after each
		// record ... invoke drop-line predicates"), not before - a
		// predicate like snps-only/indels-only needs to inspect the bytes
		// just written, not an empty buffer. A dropped repeat still spent
		// one child snip per item (it was segmented like any other
		// record; only reconstruction time decides not to emit it), so
		// every child context's NextB250 cursor stayed in sync; only the
		// output bytes are discarded now.
		keep := !cont.IsTopLevel || e.RepeatFilter == nil || e.RepeatFilter(c, repeat)
		if !keep {
			out.SetLength(repeatStart)

			continue
		}

		isLastRepeat := repeat == int(cont.Repeats)-1
		if cont.HasRepSep && !(isLastRepeat && cont.DropFinalRepeatSep) {
			writeSeparator(out, cont.RepSep)
		}
	}

	if c.Flags.Store == ctx.StoreInt && len(cont.Items) > 0 {
		if last, ok := e.Snips.Contexts.Get(cont.Items[len(cont.Items)-1].DictID); ok {
			c.LastValue = last.LastValue
		}
	}

	return nil
}
