package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Codec identifies the AVL payload layout.
type Codec uint8

const (
	Codec8         Codec = 0x08
	Codec8Extended Codec = 0x8E
)

func (c Codec) String() string {
	switch c {
	case Codec8:
		return "codec8"
	case Codec8Extended:
		return "codec8e"
	default:
		return fmt.Sprintf("codec(0x%02X)", uint8(c))
	}
}

// width of event id, counts and IO ids.
func (c Codec) width() int {
	if c == Codec8Extended {
		return 2
	}
	return 1
}

type GNSSFix struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Altitude   uint16  `json:"altitude"`
	Heading    uint16  `json:"heading"`
	Satellites uint8   `json:"satellites"`
	Speed      uint16  `json:"speed_kph"`
}

type AVLRecord struct {
	Timestamp uint64  `json:"timestamp_ms"`
	Priority  uint8   `json:"priority"`
	GPS       GNSSFix `json:"gps"`
	EventID   uint16  `json:"event_id"`
	IO        *IOMap  `json:"io"`
}

func (r AVLRecord) Time() time.Time {
	return time.UnixMilli(int64(r.Timestamp)).UTC()
}

// Packet is one decoded AVL payload.
type Packet struct {
	Codec   Codec
	Records []AVLRecord
	// Declared is N1 from the header, Trailing is N2 after the records.
	Declared      uint8
	Trailing      uint8
	CountMismatch bool
}

// IOKey is either a resolved name or the raw numeric id.
type IOKey struct {
	name  string
	id    uint16
	named bool
}

func NamedKey(name string) IOKey { return IOKey{name: name, named: true} }
func RawKey(id uint16) IOKey { return IOKey{id: id} }

func (k IOKey) Named() bool { return k.named }
func (k IOKey) ID() uint16 { return k.id }

func (k IOKey) String() string {
	if k.named {
		return k.name
	}
	return strconv.FormatUint(uint64(k.id), 10)
}

type ValueKind uint8

const (
	KindInteger ValueKind = iota
	KindHex
	KindText
	KindBool
)

// IOValue is an integer or a hex blob; text and bool only appear on
// derived fields (ICCID, iButton).
type IOValue struct {
	kind ValueKind
	u    uint64
	s    string
	b    bool
}

func Integer(v uint64) IOValue { return IOValue{kind: KindInteger, u: v} }
func HexBlob(h string) IOValue { return IOValue{kind: KindHex, s: h} }
func Text(s string) IOValue { return IOValue{kind: KindText, s: s} }
func Bool(b bool) IOValue { return IOValue{kind: KindBool, b: b} }
func (v IOValue) Kind() ValueKind { return v.kind }

func (v IOValue) Uint() (uint64, bool) { return v.u, v.kind == KindInteger }
func (v IOValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Str returns the string payload of hex and text values.
func (v IOValue) Str() (string, bool) {
	return v.s, v.kind == KindHex || v.kind == KindText
}

func (v IOValue) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatUint(v.u, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

func (v IOValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return []byte(strconv.FormatUint(v.u, 10)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	default:
		return json.Marshal(v.s)
	}
}

type IOEntry struct {
	Key   IOKey
	Value IOValue
}

// IOMap keeps IO elements in decode order.
type IOMap struct {
	entries []IOEntry
	index   map[string]int
}

func NewIOMap() *IOMap {
	return &IOMap{index: make(map[string]int)}
}

// Set inserts or replaces the value stored under k.
func (m *IOMap) Set(k IOKey, v IOValue) {
	s := k.String()
	if i, ok := m.index[s]; ok {
		m.entries[i].Value = v
		return
	}
	m.index[s] = len(m.entries)
	m.entries = append(m.entries, IOEntry{Key: k, Value: v})
}

// Get looks a value up by its key string (name or decimal id).
func (m *IOMap) Get(key string) (IOValue, bool) {
	if m == nil {
		return IOValue{}, false
	}
	i, ok := m.index[key]
	if !ok {
		return IOValue{}, false
	}
	return m.entries[i].Value, true
}

func (m *IOMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

func (m *IOMap) Entries() []IOEntry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Flatten returns a plain map, for stores that want a document.
func (m *IOMap) Flatten() map[string]any {
	out := make(map[string]any, m.Len())
	for _, e := range m.Entries() {
		switch e.Value.kind {
		case KindInteger:
			out[e.Key.String()] = e.Value.u
		case KindBool:
			out[e.Key.String()] = e.Value.b
		default:
			out[e.Key.String()] = e.Value.s
		}
	}
	return out
}

func (m *IOMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key.String())
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
