package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"avl-svr/internal/codec/fmxxx"
)

// FixedIO is one element of the 1/2/4/8-byte groups as read off the wire.
type FixedIO struct {
	ID    uint16
	Size  int
	Value uint64
}

// XByteIO is one element of the Codec 8E variable-length group.
type XByteIO struct {
	ID    uint16
	Value []byte
}

// RawIO holds the IO section of a record before naming.
type RawIO struct {
	Fixed  []FixedIO
	XBytes []XByteIO
}

var ccidParts = [...]uint16{fmxxx.CCIDPart1, fmxxx.CCIDPart2, fmxxx.CCIDPart3}

// PostProcess names raw IO elements and adds the derived iButton and
// ICCID fields. It never fails: unknown ids are kept under their decimal id.
func PostProcess(raw RawIO) *IOMap {
	m := NewIOMap()

	for _, e := range raw.Fixed {
		if e.ID == fmxxx.IButton && e.Size == 8 {
			setIButton(m, e.Value)
			continue
		}
		m.Set(keyFor(e.ID), Integer(e.Value))
	}

	var (
		xparts [len(ccidParts)][]byte
		haveX  bool
	)
	for _, e := range raw.XBytes {
		if i := ccidIndex(e.ID); i >= 0 {
			xparts[i] = e.Value
			haveX = true
			continue
		}
		m.Set(keyFor(e.ID), HexBlob(strings.ToUpper(hex.EncodeToString(e.Value))))
	}

	if haveX {
		setICCIDFromText(m, xparts)
	} else {
		setICCIDFromIntegers(m)
	}
	return m
}

func keyFor(id uint16) IOKey {
	if name, ok := fmxxx.Name(id); ok {
		return NamedKey(name)
	}
	return RawKey(id)
}

func ccidIndex(id uint16) int {
	for i, p := range ccidParts {
		if p == id {
			return i
		}
	}
	return -1
}

// setIButton: 0 means no key on the reader.
func setIButton(m *IOMap, v uint64) {
	if v == 0 {
		m.Set(NamedKey(fmxxx.IButtonConnectedKey), Bool(false))
		return
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	m.Set(NamedKey(fmxxx.IButtonKey), Text(fmt.Sprintf("%016X", v)))

	var r [8]byte
	for i := range b {
		r[i] = b[len(b)-1-i]
	}
	m.Set(NamedKey(fmxxx.IButtonReverseKey), Text(strings.ToUpper(hex.EncodeToString(r[:]))))
	m.Set(NamedKey(fmxxx.IButtonConnectedKey), Bool(true))
}

// setICCIDFromText handles Codec 8E devices that send the ICCID as ASCII
// chunks in the X-byte group.
func setICCIDFromText(m *IOMap, parts [len(ccidParts)][]byte) {
	var sb strings.Builder
	decoded := make([]string, len(parts))
	for i, p := range parts {
		if p == nil {
			continue
		}
		decoded[i] = asciiTrim(p)
		sb.WriteString(decoded[i])
	}

	if sb.Len() == 0 {
		// nada legible: se conservan como hex
		for i, p := range parts {
			if p != nil {
				m.Set(keyFor(ccidParts[i]), HexBlob(strings.ToUpper(hex.EncodeToString(p))))
			}
		}
		return
	}
	for i, p := range parts {
		if p != nil {
			m.Set(keyFor(ccidParts[i]), Text(decoded[i]))
		}
	}
	m.Set(NamedKey(fmxxx.CCIDKey), Text(sb.String()))
}

// setICCIDFromIntegers handles Codec 8 devices: each part is an 8-byte
// integer whose big-endian bytes are ASCII digits.
func setICCIDFromIntegers(m *IOMap) {
	var sb strings.Builder
	for _, id := range ccidParts {
		name, _ := fmxxx.Name(id)
		v, ok := m.Get(name)
		if !ok {
			continue
		}
		u, ok := v.Uint()
		if !ok {
			continue
		}
		sb.WriteString(iccidDigits(u))
	}
	if sb.Len() > 0 {
		m.Set(NamedKey(fmxxx.CCIDKey), Text(sb.String()))
	}
}

// iccidDigits keeps only the ASCII digits of the 8 big-endian bytes of u.
// 4051327829469704249 -> "89520209"
func iccidDigits(u uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	var sb strings.Builder
	for _, b := range buf {
		if b >= '0' && b <= '9' {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

func asciiTrim(b []byte) string {
	b = bytes.Trim(b, "\x00")
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7F {
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}
