package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"avl-svr/internal/codec"
	"avl-svr/internal/link"
	"avl-svr/internal/observability"
	"avl-svr/internal/utilities"
)

var ErrHandshake = errors.New("handshake failed")

// maxIMEILen bounds the handshake length prefix.
const maxIMEILen = 32

type State int

const (
	StateAwaitingHandshake State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// DeviceSession is the per-connection device identity; never shared.
type DeviceSession struct {
	IMEI        string
	RemoteAddr  string
	LastFrameAt time.Time
}

type session struct {
	srv    *TcpServer
	conn   net.Conn
	dev    DeviceSession
	state  State
	logger *slog.Logger
}

func newSession(srv *TcpServer, conn net.Conn) *session {
	remote := conn.RemoteAddr().String()
	return &session{
		srv:    srv,
		conn:   conn,
		dev:    DeviceSession{RemoteAddr: remote},
		state:  StateAwaitingHandshake,
		logger: srv.logger.With("remote", remote),
	}
}

// deadlineReader renews the idle deadline before every read.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r deadlineReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}

func (s *session) serve(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
			s.logger.Error("session panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	rd := deadlineReader{conn: s.conn, timeout: s.srv.opts.ReadTimeout}

	imei, err := s.handshake(rd)
	if err != nil {
		observability.HandshakeFailed.Inc()
		return err
	}
	observability.HandshakeOK.Inc()
	s.dev.IMEI = imei
	s.state = StateActive
	s.logger = s.logger.With("imei", imei)
	s.logger.Info("handshake ok")

	s.touch(ctx)
	s.announce(ctx, link.DeviceStateConnect)

	fr := codec.NewFrameReader(rd,
		codec.WithMaxPayload(s.srv.opts.MaxPayload),
		codec.WithDiscardHook(func(n int) {
			observability.ResyncBytes.Add(float64(n))
			s.logger.Debug("resync: discarded bytes", "count", n)
		}),
	)

	for {
		f, err := fr.Next()
		if err != nil {
			return err
		}
		s.dev.LastFrameAt = time.Now()
		s.touch(ctx)

		if err := s.writeACK(s.handleFrame(ctx, f)); err != nil {
			return err
		}
	}
}

// handshake: u16 length, ASCII IMEI, reply 0x01.
func (s *session) handshake(r io.Reader) (string, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", fmt.Errorf("%w: read imei length: %w", ErrHandshake, err)
	}
	n := binary.BigEndian.Uint16(hdr[:])
	if n == 0 || n > maxIMEILen {
		return "", fmt.Errorf("%w: imei length %d", ErrHandshake, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: read imei: %w", ErrHandshake, err)
	}
	for _, b := range buf {
		if b < 0x21 || b > 0x7E {
			return "", fmt.Errorf("%w: imei is not printable ascii: % X", ErrHandshake, buf)
		}
	}

	if err := s.write([]byte{0x01}); err != nil {
		return "", fmt.Errorf("%w: reply: %w", ErrHandshake, err)
	}
	return string(buf), nil
}

// handleFrame returns the ACK value for one frame. Nothing here ends the
// session.
func (s *session) handleFrame(ctx context.Context, f codec.Frame) uint32 {
	observability.FramesRecv.Inc()

	if f.KeepAlive() {
		observability.KeepAlives.Inc()
		s.logger.Debug("keep-alive")
		return 0
	}

	if s.srv.opts.HexDump {
		err := utilities.HexDump(s.srv.opts.DumpDir, s.dev.IMEI, s.dev.RemoteAddr, f.CRCValid, f.Payload)
		if err != nil {
			s.logger.Warn("hex dump failed", "err", err)
		}
	}

	if !f.CRCValid {
		observability.CRCErrors.Inc()
		s.logger.Warn("crc mismatch, ack 0", "len", len(f.Payload))
		return 0
	}

	start := time.Now()
	pkt, err := codec.Decode(f.Payload)
	observability.ObserveParseLatency(start)
	if err != nil {
		observability.ParseErrors.WithLabelValues(decodeReason(err)).Inc()
		s.logger.Warn("decode failed, ack 0", "err", err, "len", len(f.Payload))
		return 0
	}
	if pkt.CountMismatch {
		observability.CountMismatch.Inc()
		s.logger.Warn("record count mismatch", "n1", pkt.Declared, "n2", pkt.Trailing)
	}

	res, err := s.srv.disp.Dispatch(ctx, s.dev.IMEI, pkt)
	if err != nil {
		s.logger.Error("dispatch failed, ack 0", "err", err, "records", len(pkt.Records))
		return 0
	}
	observability.RecordsAck.Add(float64(res.Accepted))
	s.logger.Debug("frame accepted", "codec", pkt.Codec.String(), "records", res.Accepted)
	return res.Accepted
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, codec.ErrUnsupportedCodec):
		return "unsupported_codec"
	case errors.Is(err, codec.ErrTruncated):
		return "truncated"
	case errors.Is(err, codec.ErrLayout):
		return "layout"
	default:
		return "other"
	}
}

func (s *session) writeACK(n uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return s.write(b[:])
}

func (s *session) write(b []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.srv.opts.WriteTimeout)); err != nil {
		return err
	}
	_, err := s.conn.Write(b)
	return err
}

func (s *session) touch(ctx context.Context) {
	c, cancel := context.WithTimeout(ctx, s.srv.opts.RequestTimeout)
	defer cancel()
	at := s.dev.LastFrameAt
	if at.IsZero() {
		at = time.Now()
	}
	if err := s.srv.opts.State.TouchSession(c, s.dev.IMEI, s.dev.RemoteAddr, at); err != nil {
		observability.DeviceStateErrors.Inc()
		s.logger.Debug("device state update failed", "err", err)
	}
}

func (s *session) announce(ctx context.Context, st link.DeviceState) {
	c, cancel := context.WithTimeout(ctx, s.srv.opts.RequestTimeout)
	defer cancel()
	if err := s.srv.opts.Feed.Device(c, link.NewDeviceInfo(s.dev.IMEI, s.dev.RemoteAddr, st)); err != nil {
		observability.PublishErrors.Inc()
		s.logger.Debug("device event publish failed", "state", st.String(), "err", err)
	}
}

func (s *session) logClose(ctx context.Context, err error) {
	if s.dev.IMEI != "" {
		// el contexto del servidor puede estar cancelado; el aviso sale igual
		s.announce(context.WithoutCancel(ctx), link.DeviceStateDisconnect)
	}

	var ne net.Error
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed) && ctx.Err() != nil:
		s.logger.Info("device disconnected", "last_frame", s.dev.LastFrameAt)
	case errors.As(err, &ne) && ne.Timeout():
		s.logger.Info("idle timeout, closing", "timeout", s.srv.opts.ReadTimeout)
	case errors.Is(err, ErrHandshake):
		s.logger.Warn("handshake rejected", "err", err)
	default:
		s.logger.Warn("session closed", "err", err)
	}
}
