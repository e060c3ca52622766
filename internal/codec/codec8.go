package codec

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedCodec = errors.New("codec: unsupported codec")
	// ErrLayout: the payload does not fit the layout its codec id declares.
	ErrLayout = errors.New("codec: layout mismatch")
)

// grupos de IO de tamaño fijo, en el orden del protocolo.
var fixedGroupSizes = [...]int{1, 2, 4, 8}

// Decode parses a CRC-validated AVL payload (codec id, N1, records, N2).
// A disagreeing or missing N2 is reported through CountMismatch, not as an error;
// bytes left after N2 are ErrLayout.
func Decode(payload []byte) (*Packet, error) {
	c := NewCursor(payload)

	id, err := c.U8("codec id")
	if err != nil {
		return nil, err
	}
	codec := Codec(id)
	if codec != Codec8 && codec != Codec8Extended {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnsupportedCodec, id)
	}

	n1, err := c.U8("record count")
	if err != nil {
		return nil, err
	}

	pkt := &Packet{
		Codec:    codec,
		Declared: n1,
		Records:  make([]AVLRecord, 0, n1),
	}
	for i := 0; i < int(n1); i++ {
		rec, err := decodeRecord(c, codec)
		if err != nil {
			return nil, fmt.Errorf("record %d/%d: %w", i+1, n1, err)
		}
		pkt.Records = append(pkt.Records, rec)
	}

	n2, err := c.U8("trailing record count")
	if err != nil {
		pkt.CountMismatch = true
		return pkt, nil
	}
	if c.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d bytes after trailing record count", ErrLayout, c.Remaining())
	}
	pkt.Trailing = n2
	pkt.CountMismatch = n2 != n1
	return pkt, nil
}

func decodeRecord(c *Cursor, codec Codec) (AVLRecord, error) {
	var rec AVLRecord
	var err error

	if rec.Timestamp, err = c.U64("timestamp"); err != nil {
		return rec, err
	}
	if rec.Priority, err = c.U8("priority"); err != nil {
		return rec, err
	}
	lon, err := c.I32("longitude")
	if err != nil {
		return rec, err
	}
	lat, err := c.I32("latitude")
	if err != nil {
		return rec, err
	}
	rec.GPS.Lon = float64(lon) / 1e7
	rec.GPS.Lat = float64(lat) / 1e7
	if rec.GPS.Altitude, err = c.U16("altitude"); err != nil {
		return rec, err
	}
	if rec.GPS.Heading, err = c.U16("heading"); err != nil {
		return rec, err
	}
	if rec.GPS.Satellites, err = c.U8("satellites"); err != nil {
		return rec, err
	}
	if rec.GPS.Speed, err = c.U16("speed"); err != nil {
		return rec, err
	}

	w := codec.width()
	if rec.EventID, err = c.Width(w, "event id"); err != nil {
		return rec, err
	}
	total, err := c.Width(w, "total io count")
	if err != nil {
		return rec, err
	}

	raw, err := decodeIO(c, codec)
	if err != nil {
		return rec, err
	}
	if got := len(raw.Fixed) + len(raw.XBytes); got != int(total) {
		return rec, fmt.Errorf("%w: total io count %d, groups hold %d", ErrLayout, total, got)
	}
	rec.IO = PostProcess(raw)
	return rec, nil
}

func decodeIO(c *Cursor, codec Codec) (RawIO, error) {
	var raw RawIO
	w := codec.width()

	for _, size := range fixedGroupSizes {
		count, err := c.Width(w, fmt.Sprintf("io%d count", size))
		if err != nil {
			return raw, err
		}
		if need := int(count) * (w + size); need > c.Remaining() {
			return raw, fmt.Errorf("%w: io%d group declares %d elements (%d bytes), %d left",
				ErrTruncated, size, count, need, c.Remaining())
		}
		for i := 0; i < int(count); i++ {
			id, err := c.Width(w, "io id")
			if err != nil {
				return raw, err
			}
			val, err := readFixed(c, size)
			if err != nil {
				return raw, err
			}
			raw.Fixed = append(raw.Fixed, FixedIO{ID: id, Size: size, Value: val})
		}
	}

	if codec != Codec8Extended {
		return raw, nil
	}

	// grupo X: id(2) + len(2) + valor
	count, err := c.U16("iox count")
	if err != nil {
		return raw, err
	}
	for i := 0; i < int(count); i++ {
		id, err := c.U16("iox id")
		if err != nil {
			return raw, err
		}
		n, err := c.U16("iox length")
		if err != nil {
			return raw, err
		}
		if int(n) > c.Remaining() {
			return raw, fmt.Errorf("%w: iox %d declares %d bytes, %d left", ErrTruncated, id, n, c.Remaining())
		}
		b, err := c.Bytes(int(n), "iox value")
		if err != nil {
			return raw, err
		}
		val := make([]byte, len(b))
		copy(val, b)
		raw.XBytes = append(raw.XBytes, XByteIO{ID: id, Value: val})
	}
	return raw, nil
}

func readFixed(c *Cursor, size int) (uint64, error) {
	switch size {
	case 1:
		v, err := c.U8("io value")
		return uint64(v), err
	case 2:
		v, err := c.U16("io value")
		return uint64(v), err
	case 4:
		v, err := c.U32("io value")
		return uint64(v), err
	default:
		return c.U64("io value")
	}
}
