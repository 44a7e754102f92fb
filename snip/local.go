package snip

import (
	"math"
	"strconv"

	"github.com/arloliu/gnzcore/ctx"
	"github.com/arloliu/gnzcore/endian"
	"github.com/arloliu/gnzcore/errs"
	"github.com/arloliu/gnzcore/internal/pool"
)

// localEngine is the byte order used to read back everything append_integer/
// append_float wrote: endian.GetLittleEndianEngine, the engine package
// endian recommends for most users.
var localEngine = endian.GetLittleEndianEngine()

// readLocalInt advances c.NextLocal by c.LType's width and returns the
// integer found there, sign-extended per LType.IsSigned.
func readLocalInt(c *ctx.Context) (int64, error) {
	width := c.LType.Width()
	if width == 0 {
		width = 8
	}

	buf := c.Local()
	if c.NextLocal+width > len(buf) {
		return 0, errs.ErrLocalCursorPastEnd
	}
	chunk := buf[c.NextLocal : c.NextLocal+width]
	c.NextLocal += width

	var u uint64
	switch width {
	case 1:
		u = uint64(chunk[0])
	case 2:
		u = uint64(localEngine.Uint16(chunk))
	case 4:
		u = uint64(localEngine.Uint32(chunk))
	case 8:
		u = localEngine.Uint64(chunk)
	}

	if !c.LType.IsSigned() {
		return int64(u), nil
	}

	switch width {
	case 1:
		return int64(int8(u)), nil
	case 2:
		return int64(int16(u)), nil
	case 4:
		return int64(int32(u)), nil
	default:
		return int64(u), nil
	}
}

// readLocalFloat advances c.NextLocal past a float32/float64 per c.LType.
func readLocalFloat(c *ctx.Context) (float64, error) {
	buf := c.Local()

	if c.LType.Width() == 4 {
		if c.NextLocal+4 > len(buf) {
			return 0, errs.ErrLocalCursorPastEnd
		}
		bits := localEngine.Uint32(buf[c.NextLocal : c.NextLocal+4])
		c.NextLocal += 4

		return float64(math.Float32frombits(bits)), nil
	}

	if c.NextLocal+8 > len(buf) {
		return 0, errs.ErrLocalCursorPastEnd
	}
	bits := localEngine.Uint64(buf[c.NextLocal : c.NextLocal+8])
	c.NextLocal += 8

	return math.Float64frombits(bits), nil
}

// readLocalText advances c.NextLocal past the next NUL-terminated string.
func readLocalText(c *ctx.Context) ([]byte, error) {
	buf := c.Local()
	if c.NextLocal >= len(buf) {
		return nil, errs.ErrEmptyLocalOnLookup
	}

	start := c.NextLocal
	i := start
	for i < len(buf) && buf[i] != 0 {
		i++
	}
	if i >= len(buf) {
		return nil, errs.ErrLocalCursorPastEnd
	}
	c.NextLocal = i + 1

	return buf[start:i], nil
}

// writeInt renders v as ASCII decimal, or hex when hex is true. upper is
// reserved for callers that need uppercase hex digits (opNumeric handles
// that case itself via strings.ToUpper instead, so this always lowercases).
func writeInt(out *pool.ByteBuffer, v int64, hex bool, upper bool) {
	var s string
	if hex {
		if v < 0 {
			s = "-" + strconv.FormatUint(uint64(-v), 16)
		} else {
			s = strconv.FormatUint(uint64(v), 16)
		}
	} else {
		s = strconv.FormatInt(v, 10)
	}
	if upper {
		s = toUpperASCII(s)
	}
	out.MustWrite([]byte(s))
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}

	return string(b)
}
