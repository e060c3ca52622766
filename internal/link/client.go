package link

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"avl-svr/internal/pipeline"
)

var ErrNotConnected = errors.New("link: not connected")

// NDJSON keeps one TCP connection to the socket proxy and writes one JSON
// document per line. Run owns the reconnect loop.
type NDJSON struct {
	addr   string
	logger *slog.Logger

	redial time.Duration
	mu     sync.Mutex
	conn   net.Conn
}

func NewNDJSON(addr string, lg *slog.Logger) *NDJSON {
	return &NDJSON{
		addr:   addr,
		logger: lg.With("component", "link"),
		redial: 2 * time.Second,
	}
}

// Run dials, reads until the connection drops and dials again, until ctx
// is done.
func (l *NDJSON) Run(ctx context.Context) {
	var d net.Dialer
	for {
		c, err := d.DialContext(ctx, "tcp", l.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("link: dial failed", "addr", l.addr, "err", err)
			if !sleepCtx(ctx, l.redial) {
				return
			}
			continue
		}

		l.setConn(c)
		l.logger.Info("link: connected", "remote", c.RemoteAddr().String())

		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		l.readLoop(c)
		stop()

		l.clearConn(c)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("link: connection closed, reconnecting")
		if !sleepCtx(ctx, l.redial) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (l *NDJSON) setConn(c net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn = c
}

func (l *NDJSON) clearConn(c net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == c {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// el proxy todavía no manda comandos; sólo se registra lo que llega
func (l *NDJSON) readLoop(c net.Conn) {
	r := bufio.NewScanner(c)
	for r.Scan() {
		l.logger.Debug("link: incoming line", "line", r.Text())
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		l.logger.Warn("link: read error", "err", err)
	}
}

func (l *NDJSON) send(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return ErrNotConnected
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := l.conn.Write(append(b, '\n'))
	return err
}

func (l *NDJSON) Tracking(_ context.Context, tr *pipeline.TrackingObject) error {
	b, err := encodeTracking(tr)
	if err != nil {
		return err
	}
	return l.send(b)
}

func (l *NDJSON) Device(_ context.Context, info DeviceInfo) error {
	b, err := encodeDevice(info)
	if err != nil {
		return err
	}
	return l.send(b)
}

func (l *NDJSON) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		err := l.conn.Close()
		l.conn = nil
		return err
	}
	return nil
}
