package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated se devuelve cuando un campo excede el buffer declarado.
var ErrTruncated = errors.New("codec: truncated frame")

// Cursor is a bounds-checked big-endian reader over a payload.
// A failed read never moves the position.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

func (c *Cursor) Pos() int { return c.pos }
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

func (c *Cursor) take(n int, what string) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d (len=%d)", ErrTruncated, what, n, c.pos, len(c.buf))
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) U8(what string) (uint8, error) {
	b, err := c.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) U16(what string) (uint16, error) {
	b, err := c.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Cursor) U32(what string) (uint32, error) {
	b, err := c.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *Cursor) U64(what string) (uint64, error) {
	b, err := c.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// I32 reads a two's-complement signed 32-bit value.
func (c *Cursor) I32(what string) (int32, error) {
	v, err := c.U32(what)
	return int32(v), err
}

// Bytes returns a sub-slice of the underlying buffer; callers copy if they keep it.
func (c *Cursor) Bytes(n int, what string) ([]byte, error) {
	return c.take(n, what)
}

// Width reads an unsigned value of 1 or 2 bytes, the two widths the
// Codec 8 family uses for counts and IO ids.
func (c *Cursor) Width(w int, what string) (uint16, error) {
	if w == 1 {
		v, err := c.U8(what)
		return uint16(v), err
	}
	return c.U16(what)
}
