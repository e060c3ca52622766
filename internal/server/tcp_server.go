package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"avl-svr/internal/codec"
	"avl-svr/internal/dispatcher"
	"avl-svr/internal/link"
	"avl-svr/internal/observability"
	"avl-svr/internal/store"
)

// Dispatcher persists one decoded packet and reports how many records to ACK.
type Dispatcher interface {
	Dispatch(ctx context.Context, imei string, pkt *codec.Packet) (dispatcher.Result, error)
}

type Options struct {
	ReadTimeout    time.Duration // idle timeout per read
	WriteTimeout   time.Duration
	RequestTimeout time.Duration // device state and feed calls
	MaxPayload     uint32
	HexDump        bool
	DumpDir        string
	State          store.DeviceState
	Feed           link.Publisher
	Logger         *slog.Logger
}

type TcpServer struct {
	opts   Options
	disp   Dispatcher
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(d Dispatcher, o Options) *TcpServer {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	if o.MaxPayload == 0 {
		o.MaxPayload = codec.DefaultMaxPayload
	}
	if o.DumpDir == "" {
		o.DumpDir = "logs"
	}
	if o.State == nil {
		o.State = store.Nop{}
	}
	if o.Feed == nil {
		o.Feed = link.Nop{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &TcpServer{opts: o, disp: d, logger: o.Logger.With("component", "tcp")}
}

func (srv *TcpServer) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	srv.logger.Info("TCP server listening", "addr", listener.Addr().String())
	return srv.Serve(ctx, listener)
}

// Serve accepts until ctx is done, then waits for every session to end.
func (srv *TcpServer) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()
	defer srv.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			srv.logger.Error("accept error", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		observability.TCPConnections.Inc()
		srv.wg.Add(1)
		go func(c net.Conn) {
			defer srv.wg.Done()
			srv.HandleConnection(ctx, c)
		}(conn)
	}
}

// HandleConnection runs one device session to completion. The socket is
// closed when the session ends or ctx is cancelled, whichever is first.
func (srv *TcpServer) HandleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}

	observability.ActiveSessions.Inc()
	defer observability.ActiveSessions.Dec()

	s := newSession(srv, conn)
	err := s.serve(ctx)
	s.state = StateClosed
	s.logClose(ctx, err)
}
