package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrEncode = errors.New("codec: cannot encode")

// Sample is one record as a device would send it, with IO still raw.
type Sample struct {
	Timestamp uint64
	Priority  uint8
	GPS       GNSSFix
	EventID   uint16
	IO        RawIO
}

// Encode builds an AVL payload (codec id through N2) for the given codec.
func Encode(codec Codec, samples []Sample) ([]byte, error) {
	if codec != Codec8 && codec != Codec8Extended {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnsupportedCodec, uint8(codec))
	}
	if len(samples) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d records, max %d", ErrEncode, len(samples), math.MaxUint8)
	}

	data := []byte{byte(codec), byte(len(samples))}
	for i := range samples {
		var err error
		data, err = appendRecord(data, codec, &samples[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	data = append(data, byte(len(samples)))
	return data, nil
}

// BuildFrame wraps a payload with preamble, length and CRC field.
func BuildFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+12)
	out = append(out, 0, 0, 0, 0)
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint32(out, uint32(CRC16IBM(payload)))
	return out
}

// KeepAliveFrame is the 8-byte zero-length frame.
func KeepAliveFrame() []byte { return make([]byte, 8) }

func appendRecord(data []byte, codec Codec, s *Sample) ([]byte, error) {
	data = binary.BigEndian.AppendUint64(data, s.Timestamp)
	data = append(data, s.Priority)
	data = binary.BigEndian.AppendUint32(data, uint32(int32(math.Round(s.GPS.Lon*1e7))))
	data = binary.BigEndian.AppendUint32(data, uint32(int32(math.Round(s.GPS.Lat*1e7))))
	data = binary.BigEndian.AppendUint16(data, s.GPS.Altitude)
	data = binary.BigEndian.AppendUint16(data, s.GPS.Heading)
	data = append(data, s.GPS.Satellites)
	data = binary.BigEndian.AppendUint16(data, s.GPS.Speed)

	w := codec.width()
	if codec == Codec8 && len(s.IO.XBytes) > 0 {
		return nil, fmt.Errorf("%w: codec8 has no variable-length group", ErrEncode)
	}

	var err error
	if data, err = appendWidth(data, w, int(s.EventID)); err != nil {
		return nil, err
	}
	if data, err = appendWidth(data, w, len(s.IO.Fixed)+len(s.IO.XBytes)); err != nil {
		return nil, err
	}

	for _, e := range s.IO.Fixed {
		if e.Size != 1 && e.Size != 2 && e.Size != 4 && e.Size != 8 {
			return nil, fmt.Errorf("%w: io %d has size %d", ErrEncode, e.ID, e.Size)
		}
	}
	for _, size := range fixedGroupSizes {
		var group []byte
		n := 0
		for _, e := range s.IO.Fixed {
			if e.Size != size {
				continue
			}
			if size < 8 && e.Value>>(8*size) != 0 {
				return nil, fmt.Errorf("%w: io %d value %d does not fit %d bytes", ErrEncode, e.ID, e.Value, size)
			}
			if group, err = appendWidth(group, w, int(e.ID)); err != nil {
				return nil, err
			}
			group = appendFixed(group, size, e.Value)
			n++
		}
		if data, err = appendWidth(data, w, n); err != nil {
			return nil, err
		}
		data = append(data, group...)
	}

	if codec == Codec8Extended {
		data = binary.BigEndian.AppendUint16(data, uint16(len(s.IO.XBytes)))
		for _, e := range s.IO.XBytes {
			if len(e.Value) > math.MaxUint16 {
				return nil, fmt.Errorf("%w: iox %d is %d bytes", ErrEncode, e.ID, len(e.Value))
			}
			data = binary.BigEndian.AppendUint16(data, e.ID)
			data = binary.BigEndian.AppendUint16(data, uint16(len(e.Value)))
			data = append(data, e.Value...)
		}
	}
	return data, nil
}

func appendWidth(data []byte, w, v int) ([]byte, error) {
	if w == 1 {
		if v > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %d does not fit one byte", ErrEncode, v)
		}
		return append(data, byte(v)), nil
	}
	if v > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d does not fit two bytes", ErrEncode, v)
	}
	return binary.BigEndian.AppendUint16(data, uint16(v)), nil
}

func appendFixed(data []byte, size int, v uint64) []byte {
	switch size {
	case 1:
		return append(data, byte(v))
	case 2:
		return binary.BigEndian.AppendUint16(data, uint16(v))
	case 4:
		return binary.BigEndian.AppendUint32(data, uint32(v))
	default:
		return binary.BigEndian.AppendUint64(data, v)
	}
}
