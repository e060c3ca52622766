package codec

import (
	"errors"
	"testing"
)

func TestCursorReadsBigEndian(t *testing.T) {
	c := NewCursor([]byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
		0xFF, 0xFF, 0xFF, 0xFE,
	})

	if v, err := c.U8("u8"); err != nil || v != 0x01 {
		t.Fatalf("U8 = %#x, %v", v, err)
	}
	if v, err := c.U16("u16"); err != nil || v != 0x0203 {
		t.Fatalf("U16 = %#x, %v", v, err)
	}
	if v, err := c.U32("u32"); err != nil || v != 0x04050607 {
		t.Fatalf("U32 = %#x, %v", v, err)
	}
	if v, err := c.U64("u64"); err != nil || v != 256 {
		t.Fatalf("U64 = %d, %v", v, err)
	}
	if v, err := c.I32("i32"); err != nil || v != -2 {
		t.Fatalf("I32 = %d, %v", v, err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", c.Remaining())
	}
}

func TestCursorTruncatedDoesNotAdvance(t *testing.T) {
	c := NewCursor([]byte{0xAA, 0xBB, 0xCC})
	if _, err := c.U8("first"); err != nil {
		t.Fatal(err)
	}

	_, err := c.U32("too wide")
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("U32 err = %v, want ErrTruncated", err)
	}
	if c.Pos() != 1 {
		t.Fatalf("Pos after failed read = %d, want 1", c.Pos())
	}
	if v, err := c.U16("rest"); err != nil || v != 0xBBCC {
		t.Fatalf("U16 after failure = %#x, %v", v, err)
	}
	if _, err := c.Bytes(1, "past end"); !errors.Is(err, ErrTruncated) {
		t.Fatalf("Bytes past end err = %v", err)
	}
}

func TestCursorWidth(t *testing.T) {
	c := NewCursor([]byte{0x07, 0x01, 0x02})
	if v, err := c.Width(1, "narrow"); err != nil || v != 7 {
		t.Fatalf("Width(1) = %d, %v", v, err)
	}
	if v, err := c.Width(2, "wide"); err != nil || v != 0x0102 {
		t.Fatalf("Width(2) = %d, %v", v, err)
	}
}
