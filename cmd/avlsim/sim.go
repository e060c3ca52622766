package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"avl-svr/internal/codec"
	"avl-svr/internal/codec/fmxxx"
)

var errIMEIRejected = errors.New("IMEI no aceptado")

type simConfig struct {
	Host       string
	Port       int
	IMEI       string
	Lat, Lon   float64
	Speed      float64
	Count      int
	Records    int
	Codec      string
	Interval   time.Duration
	CorruptCRC bool
	KeepAlive  bool
}

func (c simConfig) codec() (codec.Codec, error) {
	switch strings.ToLower(c.Codec) {
	case "8", "08":
		return codec.Codec8, nil
	case "8e", "8ext", "extended":
		return codec.Codec8Extended, nil
	}
	return 0, fmt.Errorf("unknown codec %q", c.Codec)
}

// run plays one device session and prints every ACK to w.
func run(ctx context.Context, w io.Writer, cfg simConfig) error {
	cid, err := cfg.codec()
	if err != nil {
		return err
	}
	if cfg.Records < 1 {
		cfg.Records = 1
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := sendIMEI(conn, cfg.IMEI); err != nil {
		return err
	}
	fmt.Fprintf(w, "connected to %s as %s\n", addr, cfg.IMEI)

	if cfg.KeepAlive {
		n, err := exchange(conn, codec.KeepAliveFrame())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "keep-alive ACK: %d\n", n)
	}

	for i := 0; i < cfg.Count; i++ {
		if i > 0 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}

		frame, err := buildFrame(cid, cfg, time.Now())
		if err != nil {
			return err
		}
		n, err := exchange(conn, frame)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "ACK: %d\n", n)
	}
	return nil
}

func sendIMEI(conn net.Conn, imei string) error {
	msg := binary.BigEndian.AppendUint16(nil, uint16(len(imei)))
	if _, err := conn.Write(append(msg, imei...)); err != nil {
		return fmt.Errorf("send imei: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var reply [1]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return fmt.Errorf("%w: %w", errIMEIRejected, err)
	}
	if reply[0] != 0x01 {
		return fmt.Errorf("%w: reply %#x", errIMEIRejected, reply[0])
	}
	return nil
}

func exchange(conn net.Conn, frame []byte) (uint32, error) {
	if _, err := conn.Write(frame); err != nil {
		return 0, fmt.Errorf("send frame: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var ack [4]byte
	if _, err := io.ReadFull(conn, ack[:]); err != nil {
		return 0, fmt.Errorf("ACK incompleto: %w", err)
	}
	return binary.BigEndian.Uint32(ack[:]), nil
}

// buildFrame: records one second apart ending at now, altitude 650 m,
// 7 satellites, ignition on.
func buildFrame(cid codec.Codec, cfg simConfig, now time.Time) ([]byte, error) {
	samples := make([]codec.Sample, cfg.Records)
	for i := range samples {
		ts := now.Add(time.Duration(i-cfg.Records+1) * time.Second)
		samples[i] = codec.Sample{
			Timestamp: uint64(ts.UnixMilli()),
			GPS: codec.GNSSFix{
				Lat:        cfg.Lat,
				Lon:        cfg.Lon,
				Altitude:   650,
				Satellites: 7,
				Speed:      uint16(math.Round(math.Max(cfg.Speed, 0))),
			},
			IO: codec.RawIO{Fixed: []codec.FixedIO{
				{ID: fmxxx.Ignition, Size: 1, Value: 1},
				{ID: fmxxx.ExtVolt, Size: 2, Value: 12600},
			}},
		}
	}

	payload, err := codec.Encode(cid, samples)
	if err != nil {
		return nil, err
	}
	frame := codec.BuildFrame(payload)
	if cfg.CorruptCRC {
		frame[len(frame)-1] ^= 0xFF
	}
	return frame, nil
}
