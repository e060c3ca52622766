package codec

import (
	"bufio"
	"encoding/binary"
	"io"
)

// DefaultMaxPayload limits the declared length L; anything larger is noise.
const DefaultMaxPayload = 64 << 10

// Frame is one length-delimited unit read off a session.
type Frame struct {
	Payload  []byte
	CRCValid bool
}

// KeepAlive reports a zero-length frame.
func (f Frame) KeepAlive() bool { return len(f.Payload) == 0 }

type FrameOption func(*FrameReader)

func WithMaxPayload(n uint32) FrameOption {
	return func(fr *FrameReader) {
		if n > 0 {
			fr.max = n
		}
	}
}

// WithDiscardHook is called with the number of bytes skipped each time the
// reader drops noise while resynchronising.
func WithDiscardHook(fn func(n int)) FrameOption {
	return func(fr *FrameReader) { fr.onDiscard = fn }
}

// FrameReader splits a byte stream into frames:
// 4 zero bytes | L u32 | L bytes of payload | 4-byte CRC field.
type FrameReader struct {
	r         *bufio.Reader
	max       uint32
	discarded uint64
	onDiscard func(n int)
}

func NewFrameReader(r io.Reader, opts ...FrameOption) *FrameReader {
	fr := &FrameReader{r: bufio.NewReader(r), max: DefaultMaxPayload}
	for _, o := range opts {
		o(fr)
	}
	return fr
}

// Discarded is the total number of noise bytes skipped so far.
func (fr *FrameReader) Discarded() uint64 { return fr.discarded }

// Next blocks until a full frame is read. Read errors are returned unchanged
// and leave the reader in an undefined position.
func (fr *FrameReader) Next() (Frame, error) {
	var win [4]byte
	filled := 0
	for {
		if err := fr.sync(win, filled); err != nil {
			return Frame{}, err
		}

		var hdr [4]byte
		if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
			return Frame{}, err
		}
		l := binary.BigEndian.Uint32(hdr[:])
		if l == 0 {
			return Frame{}, nil
		}
		if l > fr.max {
			// el preámbulo era ruido; el campo de longitud vuelve a la ventana
			fr.note(4)
			win, filled = hdr, 4
			continue
		}

		buf := make([]byte, int(l)+4)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
		payload := buf[:l:l]
		field := binary.BigEndian.Uint32(buf[l:])
		return Frame{Payload: payload, CRCValid: CRCMatches(payload, field)}, nil
	}
}

// sync slides a 4-byte window until it holds the zero preamble.
func (fr *FrameReader) sync(win [4]byte, filled int) error {
	skipped := 0
	defer func() { fr.note(skipped) }()

	for filled < 4 || win != [4]byte{} {
		b, err := fr.r.ReadByte()
		if err != nil {
			return err
		}
		if filled < 4 {
			win[filled] = b
			filled++
			continue
		}
		copy(win[:3], win[1:])
		win[3] = b
		skipped++
	}
	return nil
}

func (fr *FrameReader) note(n int) {
	if n <= 0 {
		return
	}
	fr.discarded += uint64(n)
	if fr.onDiscard != nil {
		fr.onDiscard(n)
	}
}
