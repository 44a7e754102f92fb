package gencomp

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/arloliu/gnzcore/codec"
	"github.com/arloliu/gnzcore/errs"
)

// offloadFile is the private DEPN scratch file of §4.8/§6: a sequence of
// {comp_i, num_lines, uncompressed_len} headers each followed by a
// fast-codec-compressed batch, written in flush order so dispatch can read
// them back sequentially without seeking backwards.
type offloadFile struct {
	path   string
	f      *os.File
	offset int64
	index  []offloadEntry
	read   int
}

type offloadEntry struct {
	compI      int32
	numLines   int
	uncompLen  int
	compLen    int
	fileOffset int64
}

const offloadHeaderSize = 4 + 4 + 4 // comp_i, num_lines, uncompressed_len

// offloadCodec is the fast entropy coder the router compresses offloaded
// DEPN batches with - LZ4 rather than ZSTD, since offload must never become
// the absorb path's bottleneck (§4.8: "compressed first with a fast entropy
// coder").
const offloadCodec = codec.LZ4

// defaultScratchDir is where NewRouter creates offload scratch files absent
// an explicit WithScratchDir.
func defaultScratchDir() string {
	return os.TempDir()
}

// newOffloadFile creates a uniquely-named scratch file under dir: the uuid
// suffix means two Router instances (or two runs racing on a shared tmp
// dir) never collide on the same path (§6 "Persisted state layout").
func newOffloadFile(dir string) (*offloadFile, error) {
	name := filepath.Join(dir, fmt.Sprintf("gnzcore-%s.DEPN", uuid.NewString()))

	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}

	return &offloadFile{path: name, f: f}, nil
}

// write appends one compressed batch to the scratch file and records it in
// the in-memory offload index.
func (o *offloadFile) write(b *Batch) error {
	c, err := codec.Get(offloadCodec)
	if err != nil {
		return err
	}

	compressed, err := c.Compress(b.TxtData)
	if err != nil {
		return err
	}

	header := make([]byte, offloadHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(b.CompI))
	binary.BigEndian.PutUint32(header[4:8], uint32(b.NumLines))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(b.TxtData)))

	n1, err := o.f.WriteAt(header, o.offset)
	if err != nil {
		return err
	}

	n2, err := o.f.WriteAt(compressed, o.offset+int64(n1))
	if err != nil {
		return err
	}

	o.index = append(o.index, offloadEntry{
		compI:      b.CompI,
		numLines:   b.NumLines,
		uncompLen:  len(b.TxtData),
		compLen:    len(compressed),
		fileOffset: o.offset,
	})

	o.offset += int64(n1 + n2)

	return nil
}

// next reads and decompresses the next not-yet-read batch in write order,
// or reports ok=false once every offloaded batch has been consumed.
func (o *offloadFile) next() (batch *Batch, ok bool, err error) {
	if o.read >= len(o.index) {
		return nil, false, nil
	}

	e := o.index[o.read]
	o.read++

	buf := make([]byte, offloadHeaderSize+e.compLen)
	if _, err := o.f.ReadAt(buf, e.fileOffset); err != nil {
		return nil, false, err
	}

	c, err := codec.Get(offloadCodec)
	if err != nil {
		return nil, false, err
	}

	txt, err := c.Decompress(buf[offloadHeaderSize:])
	if err != nil {
		return nil, false, err
	}
	if len(txt) != e.uncompLen {
		return nil, false, errs.ErrDecompressedSizeMismatch
	}

	return &Batch{CompI: e.compI, NumLines: e.numLines, TxtData: txt}, true, nil
}

func (o *offloadFile) hasMore() bool {
	return o.read < len(o.index)
}

// close removes the scratch file entirely; callers invoke it once dispatch
// has drained every offloaded batch.
func (o *offloadFile) close() error {
	path := o.path
	if err := o.f.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
